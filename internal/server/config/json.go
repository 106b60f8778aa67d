package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ilyakharev/authd/internal/flagx"
	"github.com/ilyakharev/authd/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Interval fields use
// timex.Duration so both "2m" strings and integer nanoseconds parse. It is
// an intermediate DTO; values are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN                  string         `json:"database_dsn"`
	AccessTokenSecret            string         `json:"access_token_secret"`
	RefreshTokenSecret           string         `json:"refresh_token_secret"`
	SetupTokenSecret             string         `json:"setup_token_secret"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	SetupTokenValidityDuration   timex.Duration `json:"setup_token_validity_duration"`
	OTPValidityDuration          timex.Duration `json:"otp_validity_duration"`
	OTPCooldown                  timex.Duration `json:"otp_cooldown"`
	OTPRetryLimit                int            `json:"otp_retry_limit"`
	BcryptCost                   int            `json:"bcrypt_cost"`
	DummyPasswordHash            string         `json:"dummy_password_hash"`
	SMTPHost                     string         `json:"smtp_host"`
	SMTPPort                     int            `json:"smtp_port"`
	SMTPUsername                 string         `json:"smtp_username"`
	SMTPPassword                 string         `json:"smtp_password"`
	SMTPFrom                     string         `json:"smtp_from"`
}

// parseJSON loads configuration from the JSON file named by the -c/-config
// flags, if any. Absent fields keep their current values; a file that cannot
// be read or parsed panics, since running with half a config is worse than
// not starting.
func parseJSON(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.AccessTokenSecret != "" {
		config.AccessTokenSecret = c.AccessTokenSecret
	}
	if c.RefreshTokenSecret != "" {
		config.RefreshTokenSecret = c.RefreshTokenSecret
	}
	if c.SetupTokenSecret != "" {
		config.SetupTokenSecret = c.SetupTokenSecret
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenValidityDuration.Duration)
	}
	if c.SetupTokenValidityDuration.Duration != 0 {
		config.SetupTokenValidityDuration = time.Duration(c.SetupTokenValidityDuration.Duration)
	}
	if c.OTPValidityDuration.Duration != 0 {
		config.OTPValidityDuration = time.Duration(c.OTPValidityDuration.Duration)
	}
	if c.OTPCooldown.Duration != 0 {
		config.OTPCooldown = time.Duration(c.OTPCooldown.Duration)
	}
	if c.OTPRetryLimit != 0 {
		config.OTPRetryLimit = c.OTPRetryLimit
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.DummyPasswordHash != "" {
		config.DummyPasswordHash = c.DummyPasswordHash
	}
	if c.SMTPHost != "" {
		config.SMTPHost = c.SMTPHost
	}
	if c.SMTPPort != 0 {
		config.SMTPPort = c.SMTPPort
	}
	if c.SMTPUsername != "" {
		config.SMTPUsername = c.SMTPUsername
	}
	if c.SMTPPassword != "" {
		config.SMTPPassword = c.SMTPPassword
	}
	if c.SMTPFrom != "" {
		config.SMTPFrom = c.SMTPFrom
	}
}
