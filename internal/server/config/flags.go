package config

import (
	"flag"
	"strings"
	"time"

	"github.com/dmitrijs2005/petmatch/internal/flagx"
)

// parseFlags populates Config fields from the short flags in args.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-G string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-r string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w string   public base URL of stored objects
//	-i string   similarity service URL
//	-t int      similarity request timeout, seconds
//	-x string   Expo push URL
//	-k string   Expo access token
//	-S string   Sentry DSN
//	-o string   comma-separated CORS origins
//	-l string   log level
//
// args is first filtered with flagx.FilterArgs so flags owned by other
// components (such as -c) do not cause parse errors.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-a", "-G", "-d", "-s", "-u", "-p", "-b", "-r", "-e", "-w",
		"-i", "-t", "-x", "-k", "-S", "-o", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCHealthAddr, "G", config.GRPCHealthAddr, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret key")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicURL, "w", config.S3PublicURL, "public base URL of stored objects")

	fs.StringVar(&config.SimilarityURL, "i", config.SimilarityURL, "similarity service URL")
	similarityTimeout := fs.Int("t", int(config.SimilarityTimeout.Seconds()), "similarity timeout (in seconds)")

	fs.StringVar(&config.ExpoPushURL, "x", config.ExpoPushURL, "Expo push URL")
	fs.StringVar(&config.ExpoAccessToken, "k", config.ExpoAccessToken, "Expo access token")
	fs.StringVar(&config.SentryDSN, "S", config.SentryDSN, "Sentry DSN")
	origins := fs.String("o", strings.Join(config.CORSOrigins, ","), "CORS origins, comma separated")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SimilarityTimeout = time.Duration(*similarityTimeout) * time.Second
	config.CORSOrigins = flagx.SplitList(*origins)
}
