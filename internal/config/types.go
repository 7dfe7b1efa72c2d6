package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	Cluster        bool                  `yaml:"cluster"`
	ClusterWorkers int                   `yaml:"cluster_workers"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	LogRotateSize  *int                  `yaml:"log_rotate_size_mb"`
	LogRotateKeep  *int                  `yaml:"log_rotate_keep"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	Timezone       string                `yaml:"timezone"`
	Remote         RemoteRuntimeConfig   `yaml:"remote"`
	Gateway        GatewayRuntimeConfig  `yaml:"gateway"`
	Backup         BackupRuntimeConfig   `yaml:"backup"`
	S3             S3RuntimeConfig       `yaml:"s3"`
	Notify         NotifyRuntimeConfig   `yaml:"notify"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

// RemoteRuntimeConfig tunes how the agent talks to the analysis service.
// The service base URL itself lives in the runtime Settings record, not here.
type RemoteRuntimeConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type GatewayRuntimeConfig struct {
	Enable bool `yaml:"enable"`
}

type BackupRuntimeConfig struct {
	Enable        bool   `yaml:"enable"`
	Path          string `yaml:"path"` // object key template, supports {Y} {m} {d} {filename}
	IntervalHours int    `yaml:"interval_hours"`
}

type S3RuntimeConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	CustomDomain    string `yaml:"custom_domain"`
	PathStyleAccess bool   `yaml:"path_style_access"`
}

// Enabled reports whether enough of the S3 target is configured to upload.
func (s S3RuntimeConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

type RuntimePathsConfig struct {
	Logs    string `yaml:"logs"`
	Backups string `yaml:"backups"`
	Web     string `yaml:"web"`
}

// NotifyRuntimeConfig configures operator alert channels.
type NotifyRuntimeConfig struct {
	AlertTo string            `yaml:"alert_to"` // email address for alerts
	Mail    MailRuntimeConfig `yaml:"mail"`
	Bark    BarkRuntimeConfig `yaml:"bark"`
}

type MailRuntimeConfig struct {
	Enable    bool   `yaml:"enable"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	UseResend bool   `yaml:"use_resend"`
	ResendKey string `yaml:"resend_key"`
}

type BarkRuntimeConfig struct {
	Enable    bool   `yaml:"enable"`
	Key       string `yaml:"key"`
	ServerURL string `yaml:"server_url"`
}

type rawAppConfig struct {
	Port               int               `yaml:"port"`
	DSN                string            `yaml:"dsn"`
	DatabaseURL        string            `yaml:"database_url"`
	RedisURL           string            `yaml:"redis_url"`
	Database           rawDatabaseConfig `yaml:"database"`
	Redis              rawRedisConfig    `yaml:"redis"`
	DBHost             string            `yaml:"db_host"`
	DBPort             int               `yaml:"db_port"`
	DBUser             string            `yaml:"db_user"`
	DBPassword         string            `yaml:"db_password"`
	DBName             string            `yaml:"db_name"`
	DBCharset          string            `yaml:"db_charset"`
	DBLoc              string            `yaml:"db_loc"`
	DBParseTime        *bool             `yaml:"db_parse_time"`
	RedisHost          string            `yaml:"redis_host"`
	RedisPort          int               `yaml:"redis_port"`
	RedisUsername      string            `yaml:"redis_username"`
	RedisPassword      string            `yaml:"redis_password"`
	RedisDB            *int              `yaml:"redis_db"`
	RedisTLS           *bool             `yaml:"redis_tls"`
	Env                string            `yaml:"env"`
	Cluster            *bool             `yaml:"cluster"`
	ClusterWorkers     int               `yaml:"cluster_workers"`
	Paths              rawPathsConfig    `yaml:"paths"`
	LogDir             string            `yaml:"log_dir"`
	LogsDir            string            `yaml:"logs_dir"`
	LogRotateSize      *int              `yaml:"log_rotate_size_mb"`
	LogRotateKeep      *int              `yaml:"log_rotate_keep"`
	BackupDir          string            `yaml:"backup_dir"`
	BackupsDir         string            `yaml:"backups_dir"`
	AllowedOrigins     []string          `yaml:"allowed_origins"`
	CORSAllowedOrigins []string          `yaml:"cors_allowed_origins"`
	JWTSecret          string            `yaml:"jwt_secret"`
	JWTSecretLegacy    string            `yaml:"jwtsecret"`
	Timezone           string            `yaml:"timezone"`
	TimeZone           string            `yaml:"time_zone"`
	TZ                 string            `yaml:"tz"`
	Remote             rawRemoteConfig   `yaml:"remote"`
	RemoteTimeout      *int              `yaml:"remote_timeout_seconds"`
	Gateway            rawGatewayConfig  `yaml:"gateway"`
	Backup             rawBackupConfig   `yaml:"backup"`
	S3                 rawS3Config       `yaml:"s3"`
	Notify             rawNotifyConfig   `yaml:"notify"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type rawRemoteConfig struct {
	TimeoutSeconds *int `yaml:"timeout_seconds"`
	Timeout        *int `yaml:"timeout"`
}

type rawGatewayConfig struct {
	Enable *bool `yaml:"enable"`
}

type rawBackupConfig struct {
	Enable        *bool  `yaml:"enable"`
	Path          string `yaml:"path"`
	IntervalHours *int   `yaml:"interval_hours"`
}

type rawS3Config struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKey       string `yaml:"access_key"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SecretKey       string `yaml:"secret_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	CustomDomain    string `yaml:"custom_domain"`
	PathStyleAccess *bool  `yaml:"path_style_access"`
}

type rawPathsConfig struct {
	Logs    string `yaml:"logs"`
	Backups string `yaml:"backups"`
	Web     string `yaml:"web"`
}

type rawNotifyConfig struct {
	AlertTo string        `yaml:"alert_to"`
	Mail    rawMailConfig `yaml:"mail"`
	Bark    rawBarkConfig `yaml:"bark"`
}

type rawMailConfig struct {
	Enable    *bool  `yaml:"enable"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
	UseResend *bool  `yaml:"use_resend"`
	ResendKey string `yaml:"resend_key"`
}

type rawBarkConfig struct {
	Enable    *bool  `yaml:"enable"`
	Key       string `yaml:"key"`
	ServerURL string `yaml:"server_url"`
}
