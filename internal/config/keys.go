package config

import "os"

// SettingSource represents where a setting comes from.
type SettingSource string

const (
	SourceEnv    SettingSource = "env"
	SourceConfig SettingSource = "config"
	SourceNone   SettingSource = "none"
)

// SettingStatus represents the status of a required setting.
type SettingStatus struct {
	Name   string        `json:"name"`
	Source SettingSource `json:"source"`
	IsSet  bool          `json:"is_set"`
	Masked string        `json:"masked,omitempty"`
}

// CheckSettings returns the status of every required setting.
func CheckSettings(cfg *Config) []SettingStatus {
	return []SettingStatus{
		checkSetting("EDGAR User-Agent", cfg.SEC.UserAgent, "SECPACK_SEC_USER_AGENT"),
	}
}

// checkSetting checks if a value is set and where it came from.
func checkSetting(name, value, envVar string) SettingStatus {
	status := SettingStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = SourceEnv
		} else {
			status.Source = SourceConfig
		}
		status.Masked = mask(value)
	} else {
		status.Source = SourceNone
	}

	return status
}

// mask hides the middle of a value for display, showing only first and last 3 chars.
// The user agent carries a contact email, so it is not printed verbatim.
func mask(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "..." + value[len(value)-3:]
}
