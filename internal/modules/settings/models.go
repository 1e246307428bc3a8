package settings

import "errors"

// Setting keys
const (
	// KeyTrainingConfig holds the current Configuration as JSON
	KeyTrainingConfig = "training_config"
	// KeyAutoCapture captures a version automatically when a run completes
	KeyAutoCapture = "auto_capture_on_complete"
	// KeyDashboardTheme is a free-form UI preference
	KeyDashboardTheme = "dashboard_theme"
)

// SettingDefaults holds the default values of the generic settings.
// The training configuration is not listed; it defaults to the studio configuration.
var SettingDefaults = map[string]interface{}{
	KeyAutoCapture:    false,
	KeyDashboardTheme: "dark",
}

var (
	// ErrUnknownSetting is returned for keys outside SettingDefaults
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrToolNotFound is returned when removing a tool id that is not configured
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidValue is returned when a setting value has the wrong type
	ErrInvalidValue = errors.New("invalid setting value")
)

// SettingUpdate is the request body for updating a single setting
type SettingUpdate struct {
	Value interface{} `json:"value"`
}
