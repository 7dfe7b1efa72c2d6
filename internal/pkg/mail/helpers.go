package mail

import (
	"github.com/tubelens/core/internal/config"
)

// BuildMailConfig maps the static notify config onto a mailer Config.
func BuildMailConfig(cfg *config.AppConfig) Config {
	if cfg == nil {
		return Config{}
	}
	mc := cfg.Notify.Mail
	return Config{
		Enable:    mc.Enable,
		Host:      mc.Host,
		Port:      mc.Port,
		User:      mc.User,
		Pass:      mc.Pass,
		From:      mc.From,
		ReplyTo:   mc.ReplyTo,
		UseResend: mc.UseResend,
		ResendKey: mc.ResendKey,
	}
}
