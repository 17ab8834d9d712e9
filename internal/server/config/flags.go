package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/todoauth/internal/flagx"
)

var (
	valueFlags = []string{
		"-a", "-d", "-s", "-t", "-r", "-f", "-l",
		"-google-client-id", "-smtp-addr", "-smtp-from",
		"-u", "-p", "-b", "-region", "-e",
	}
	boolFlags = []string{"-google-access-tokens", "-bridge-requires-verified"}
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-f string   frontend base URL used in verification links
//	-l string   log level (debug, info, warn, error)
//	-google-client-id string
//	-google-access-tokens bool
//	-bridge-requires-verified bool
//	-smtp-addr string, -smtp-from string
//	-u, -p, -b, -region, -e   S3 user, password, bucket, region, endpoint
//
// Durations are accepted as whole minutes.
func parseFlags(config *Config, args []string) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.FrontendURL, "f", config.FrontendURL, "frontend base URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.GoogleClientID, "google-client-id", config.GoogleClientID, "Google OAuth client ID")
	fs.BoolVar(&config.GoogleAcceptAccessTokens, "google-access-tokens", config.GoogleAcceptAccessTokens, "accept Google access tokens")
	fs.BoolVar(&config.BridgeRequiresVerifiedLocal, "bridge-requires-verified", config.BridgeRequiresVerifiedLocal, "refuse Google sign-in onto unverified local accounts")
	fs.StringVar(&config.SMTPAddr, "smtp-addr", config.SMTPAddr, "SMTP server host:port")
	fs.StringVar(&config.SMTPFrom, "smtp-from", config.SMTPFrom, "sender address")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 avatar bucket")
	fs.StringVar(&config.S3Region, "region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(flagx.FilterArgs(args, valueFlags, boolFlags...)); err != nil {
		panic(err)
	}

	// Only explicit flags replace durations; minute rounding would otherwise
	// clobber sub-minute values loaded from JSON or the environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "r":
			config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
		}
	})
}
