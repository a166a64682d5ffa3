package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/petmatch/internal/flagx"
	"github.com/dmitrijs2005/petmatch/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations are timex.Duration so
// both "60s" and integer nanoseconds are accepted.
type JsonConfig struct {
	HTTPAddr          string         `json:"http_addr"`
	GRPCHealthAddr    string         `json:"grpc_health_addr"`
	DatabaseDSN       string         `json:"database_dsn"`
	JWTSecret         string         `json:"jwt_secret"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	S3PublicURL       string         `json:"s3_public_url"`
	SimilarityURL     string         `json:"similarity_url"`
	SimilarityTimeout timex.Duration `json:"similarity_timeout"`
	ExpoPushURL       string         `json:"expo_push_url"`
	ExpoAccessToken   string         `json:"expo_access_token"`
	SentryDSN         string         `json:"sentry_dsn"`
	SentryEnvironment string         `json:"sentry_environment"`
	CORSOrigins       []string       `json:"cors_origins"`
	MaxUploadBytes    int64          `json:"max_upload_bytes"`
	RequestTimeout    timex.Duration `json:"request_timeout"`
	ShutdownTimeout   timex.Duration `json:"shutdown_timeout"`
	LogLevel          string         `json:"log_level"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson overlays the JSON file named by -c/-config onto config. Keys
// missing from the file keep their current values. An unreadable or
// malformed file panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFile(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.JWTSecret, c.JWTSecret)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicURL, c.S3PublicURL)
	setString(&config.SimilarityURL, c.SimilarityURL)
	setString(&config.ExpoPushURL, c.ExpoPushURL)
	setString(&config.ExpoAccessToken, c.ExpoAccessToken)
	setString(&config.SentryDSN, c.SentryDSN)
	setString(&config.SentryEnvironment, c.SentryEnvironment)
	setString(&config.LogLevel, c.LogLevel)

	if c.SimilarityTimeout.Duration != 0 {
		config.SimilarityTimeout = c.SimilarityTimeout.Duration
	}
	if c.RequestTimeout.Duration != 0 {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.ShutdownTimeout.Duration != 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if len(c.CORSOrigins) > 0 {
		config.CORSOrigins = c.CORSOrigins
	}
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
}
