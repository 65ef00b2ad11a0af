package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/davkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-r string   gRPC bind address (e.g. ":50051")
//	-d string   PostgreSQL DSN
//	-s string   session signing secret
//	-w string   external base URL
//	-p string   storage path pattern
//	-l string   log level
//	-t int      browser session validity, minutes
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-r", "-d", "-s", "-w", "-p", "-l", "-t"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.EndpointAddrHTTP, "a", cfg.EndpointAddrHTTP, "HTTP address")
	fs.StringVar(&cfg.EndpointAddrGRPC, "r", cfg.EndpointAddrGRPC, "gRPC address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	fs.StringVar(&cfg.BaseURL, "w", cfg.BaseURL, "external base URL")
	fs.StringVar(&cfg.StoragePath, "p", cfg.StoragePath, "storage path pattern")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	sessionMinutes := fs.Int("t", int(cfg.SessionValidity.Minutes()), "session validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.SessionValidity = minutes(*sessionMinutes)
		}
	})

	return nil
}
