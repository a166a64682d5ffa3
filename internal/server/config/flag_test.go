package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:8081", "-G", ":6000", "-d", "db", "-s", "secret",
				"-u", "user", "-p", "password", "-b", "bucket", "-r", "eu-west-1", "-e", "http://endpoint",
				"-w", "http://cdn", "-i", "http://sim", "-t", "5", "-x", "http://expo", "-k", "tok",
				"-S", "https://key@sentry.example/1", "-o", "http://a.example, http://b.example", "-l", "debug",
			},
			expected: &Config{
				HTTPAddr:          "127.0.0.1:8081",
				GRPCHealthAddr:    ":6000",
				DatabaseDSN:       "db",
				JWTSecret:         "secret",
				S3RootUser:        "user",
				S3RootPassword:    "password",
				S3Bucket:          "bucket",
				S3Region:          "eu-west-1",
				S3BaseEndpoint:    "http://endpoint",
				S3PublicURL:       "http://cdn",
				SimilarityURL:     "http://sim",
				SimilarityTimeout: 5 * time.Second,
				ExpoPushURL:       "http://expo",
				ExpoAccessToken:   "tok",
				SentryDSN:         "https://key@sentry.example/1",
				CORSOrigins:       []string{"http://a.example", "http://b.example"},
				LogLevel:          "debug",
			},
		},
		{
			name: "unknown flags are filtered out",
			args: []string{"-c", "cfg.json", "-z", "-a", ":1"},
			expected: &Config{
				HTTPAddr: ":1",
			},
		},
		{
			name:        "bad int panics",
			args:        []string{"-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(config, tt.args) })
				return
			}
			require.NotPanics(t, func() { parseFlags(config, tt.args) })
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
