package settings

import (
	"errors"

	"github.com/tubelens/core/internal/config"
)

// optionKey is the options-table row holding the settings singleton.
const optionKey = "settings"

// ErrInvalidPatch marks updates rejected by validation. The stored record
// stays untouched when a patch fails.
var ErrInvalidPatch = errors.New("invalid settings patch")

// Events receives change notifications after a successful update.
type Events interface {
	SettingsUpdated(s config.Settings)
}
