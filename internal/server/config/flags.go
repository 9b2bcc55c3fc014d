package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/bigdatakeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":3001")
//	-g string     gRPC health bind address
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret
//	-b string     storage backend: s3 or disk
//	-root string  disk backend root directory
//	-e string     S3 base endpoint
//	-l string     log level
//	-dev          development mode
//	-trust-proxy  take client address from X-Forwarded-For / X-Real-IP
//	-reconcile duration  reconcile interval, 0 disables
//
// Args are first filtered with flagx.FilterArgs so flags owned by other
// components (-c/-config) do not break parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-b", "-root", "-e", "-l", "-dev", "-trust-proxy", "-reconcile"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to serve HTTP on")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "address and port to serve gRPC health on")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "jwt secret key")
	fs.StringVar(&config.StorageBackend, "b", config.StorageBackend, "storage backend (s3|disk)")
	fs.StringVar(&config.DiskRoot, "root", config.DiskRoot, "disk storage root")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug|info|warn|error)")
	fs.BoolVar(&config.Development, "dev", config.Development, "development mode")
	fs.BoolVar(&config.TrustProxyHeaders, "trust-proxy", config.TrustProxyHeaders, "take client address from proxy headers")
	fs.DurationVar(&config.ReconcileInterval, "reconcile", config.ReconcileInterval, "orphan reconcile interval, 0 disables")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
