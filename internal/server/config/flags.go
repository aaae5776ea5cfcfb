package config

import (
	"flag"
	"os"
	"time"

	"github.com/psharma/securenotes/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-i string   TOTP issuer name
//	-n string   note-storage collaborator base URL
//	-l int      lockout threshold (failed attempts)
//	-w int      lockout duration, minutes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-i", "-n", "-l", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidity.Minutes()), "access token validity (in minutes)")

	fs.StringVar(&config.TOTPIssuer, "i", config.TOTPIssuer, "TOTP issuer name")
	fs.StringVar(&config.NoteStoreBaseURL, "n", config.NoteStoreBaseURL, "note storage base URL")

	fs.IntVar(&config.LockoutThreshold, "l", config.LockoutThreshold, "lockout threshold (failed attempts)")
	lockoutDuration := fs.Int("w", int(config.LockoutDuration.Minutes()), "lockout duration (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidity = time.Duration(*accessTokenValidity) * time.Minute
	config.LockoutDuration = time.Duration(*lockoutDuration) * time.Minute
}
