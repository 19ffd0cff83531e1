package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/arsansys/siva/internal/flagx"
	"github.com/arsansys/siva/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON
// configuration files. It uses timex.Duration for interval fields, which
// parses both string values such as "1h" and integer nanoseconds. After
// unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	RevokedTokenCleanupInterval timex.Duration `json:"revoked_token_cleanup_interval"`
	AllowedOrigin               string         `json:"allowed_origin"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c or -config command-line flags;
// when neither is set, no JSON file is loaded. An unreadable or invalid
// file panics: a config file that was asked for but cannot be used is a
// startup error, not something to silently skip.
func parseJson(config *Config) {

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

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.RevokedTokenCleanupInterval = time.Duration(c.RevokedTokenCleanupInterval.Duration)
	config.AllowedOrigin = c.AllowedOrigin
}
