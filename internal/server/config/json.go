package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/genovault/genovault/internal/flagx"
	"github.com/genovault/genovault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	LedgerBaseEndpoint          string         `json:"ledger_base_endpoint"`
	LedgerTopicID               string         `json:"ledger_topic_id"`
	MaxUploadBytes              int64          `json:"max_upload_bytes"`
	UploadLimitPerHour          int            `json:"upload_limit_per_hour"`
	DownloadLimitPerHour        int            `json:"download_limit_per_hour"`
	GrantLimitPerDay            int            `json:"grant_limit_per_day"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; when
// neither is set, no JSON file is loaded. Read or parse failures panic, since
// a requested-but-broken config file should stop startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.LedgerBaseEndpoint = c.LedgerBaseEndpoint
	config.LedgerTopicID = c.LedgerTopicID
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.UploadLimitPerHour > 0 {
		config.UploadLimitPerHour = c.UploadLimitPerHour
	}
	if c.DownloadLimitPerHour > 0 {
		config.DownloadLimitPerHour = c.DownloadLimitPerHour
	}
	if c.GrantLimitPerDay > 0 {
		config.GrantLimitPerDay = c.GrantLimitPerDay
	}
}
