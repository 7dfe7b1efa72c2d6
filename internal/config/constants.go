package config

// Version is stamped at release time via
// -ldflags "-X github.com/tubelens/core/internal/config.Version=v1.2.3".
var Version = "dev"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2450

	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "tubelens"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultRemoteTimeoutSeconds = 30
	defaultBackupIntervalHours  = 24
	defaultBackupKeyTemplate    = "{Y}/{m}/{filename}"
)
