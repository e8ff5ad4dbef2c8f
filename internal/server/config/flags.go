package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-o int      one-time-code validity, minutes
//	-m int      max one-time-code requests per window
//	-w int      one-time-code requests window, minutes
//	-k int      base issuance cooldown, minutes
//	-x int      extended (escalated) issuance cooldown, minutes
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-r", "-o", "-m", "-w", "-k", "-x"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")
	otpValidityDuration := fs.Int("o", int(config.OtpValidityDuration.Minutes()), "otp_validity_duration (in minutes)")
	otpRequestsWindow := fs.Int("w", int(config.OtpRequestsWindow.Minutes()), "otp_requests_window (in minutes)")
	otpBaseCooldown := fs.Int("k", int(config.OtpBaseCooldown.Minutes()), "otp_base_cooldown (in minutes)")
	otpExtendedCooldown := fs.Int("x", int(config.OtpExtendedCooldown.Minutes()), "otp_extended_cooldown (in minutes)")

	fs.IntVar(&config.OtpMaxRequests, "m", config.OtpMaxRequests, "otp_max_requests")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.OtpValidityDuration = time.Duration(*otpValidityDuration) * time.Minute
	config.OtpRequestsWindow = time.Duration(*otpRequestsWindow) * time.Minute
	config.OtpBaseCooldown = time.Duration(*otpBaseCooldown) * time.Minute
	config.OtpExtendedCooldown = time.Duration(*otpExtendedCooldown) * time.Minute
}
