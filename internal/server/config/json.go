package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/bigdatakeeper/internal/flagx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	HTTPAddr           string         `json:"http_addr"`
	GRPCAddr           string         `json:"grpc_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	JWTSecret          string         `json:"jwt_secret"`
	JWTValidity        timex.Duration `json:"jwt_validity"`
	BcryptCostRegister int            `json:"bcrypt_cost_register"`
	BcryptCostAdmin    int            `json:"bcrypt_cost_admin"`
	StorageBackend     string         `json:"storage_backend"`
	StoragePrefix      string         `json:"storage_prefix"`
	DiskRoot           string         `json:"disk_root"`
	S3AccessKey        string         `json:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	S3UsePathStyle     bool           `json:"s3_use_path_style"`
	PresignValidity    timex.Duration `json:"presign_validity"`
	MaxFileSize        int64          `json:"max_file_size"`
	AllowedExtensions  []string       `json:"allowed_extensions"`
	MaxFilesPerUpload  int            `json:"max_files_per_upload"`
	CORSOrigin         string         `json:"cors_origin"`
	RateLimitWindow    timex.Duration `json:"rate_limit_window"`
	RateLimitMax       int            `json:"rate_limit_max"`
	TrustProxyHeaders  bool           `json:"trust_proxy_headers"`
	PrincipalCacheSize int            `json:"principal_cache_size"`
	PrincipalCacheTTL  timex.Duration `json:"principal_cache_ttl"`
	ReconcileInterval  timex.Duration `json:"reconcile_interval"`
	ReconcileGrace     timex.Duration `json:"reconcile_grace"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
	Development        bool           `json:"development"`
	ShutdownTimeout    timex.Duration `json:"shutdown_timeout"`
	ReadHeaderTimeout  timex.Duration `json:"read_header_timeout"`
	IdleTimeout        timex.Duration `json:"idle_timeout"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:           c.HTTPAddr,
		GRPCAddr:           c.GRPCAddr,
		DatabaseDSN:        c.DatabaseDSN,
		JWTSecret:          c.JWTSecret,
		JWTValidity:        timex.Duration{Duration: c.JWTValidity},
		BcryptCostRegister: c.BcryptCostRegister,
		BcryptCostAdmin:    c.BcryptCostAdmin,
		StorageBackend:     c.StorageBackend,
		StoragePrefix:      c.StoragePrefix,
		DiskRoot:           c.DiskRoot,
		S3AccessKey:        c.S3AccessKey,
		S3SecretKey:        c.S3SecretKey,
		S3Bucket:           c.S3Bucket,
		S3Region:           c.S3Region,
		S3BaseEndpoint:     c.S3BaseEndpoint,
		S3UsePathStyle:     c.S3UsePathStyle,
		PresignValidity:    timex.Duration{Duration: c.PresignValidity},
		MaxFileSize:        c.MaxFileSize,
		AllowedExtensions:  c.AllowedExtensions,
		MaxFilesPerUpload:  c.MaxFilesPerUpload,
		CORSOrigin:         c.CORSOrigin,
		RateLimitWindow:    timex.Duration{Duration: c.RateLimitWindow},
		RateLimitMax:       c.RateLimitMax,
		TrustProxyHeaders:  c.TrustProxyHeaders,
		PrincipalCacheSize: c.PrincipalCacheSize,
		PrincipalCacheTTL:  timex.Duration{Duration: c.PrincipalCacheTTL},
		ReconcileInterval:  timex.Duration{Duration: c.ReconcileInterval},
		ReconcileGrace:     timex.Duration{Duration: c.ReconcileGrace},
		LogLevel:           c.LogLevel,
		LogFormat:          c.LogFormat,
		Development:        c.Development,
		ShutdownTimeout:    timex.Duration{Duration: c.ShutdownTimeout},
		ReadHeaderTimeout:  timex.Duration{Duration: c.ReadHeaderTimeout},
		IdleTimeout:        timex.Duration{Duration: c.IdleTimeout},
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.GRPCAddr = j.GRPCAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.JWTSecret = j.JWTSecret
	c.JWTValidity = j.JWTValidity.Duration
	c.BcryptCostRegister = j.BcryptCostRegister
	c.BcryptCostAdmin = j.BcryptCostAdmin
	c.StorageBackend = j.StorageBackend
	c.StoragePrefix = j.StoragePrefix
	c.DiskRoot = j.DiskRoot
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.S3UsePathStyle = j.S3UsePathStyle
	c.PresignValidity = j.PresignValidity.Duration
	c.MaxFileSize = j.MaxFileSize
	c.AllowedExtensions = j.AllowedExtensions
	c.MaxFilesPerUpload = j.MaxFilesPerUpload
	c.CORSOrigin = j.CORSOrigin
	c.RateLimitWindow = j.RateLimitWindow.Duration
	c.RateLimitMax = j.RateLimitMax
	c.TrustProxyHeaders = j.TrustProxyHeaders
	c.PrincipalCacheSize = j.PrincipalCacheSize
	c.PrincipalCacheTTL = j.PrincipalCacheTTL.Duration
	c.ReconcileInterval = j.ReconcileInterval.Duration
	c.ReconcileGrace = j.ReconcileGrace.Duration
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
	c.Development = j.Development
	c.ShutdownTimeout = j.ShutdownTimeout.Duration
	c.ReadHeaderTimeout = j.ReadHeaderTimeout.Duration
	c.IdleTimeout = j.IdleTimeout.Duration
}

// parseJson overlays values from a JSON file onto config. The path comes
// from -c/-config, falling back to the CONFIG environment variable; when
// neither is set nothing is loaded. Keys absent from the file keep their
// current values.
func parseJson(config *Config, args []string, getenv func(string) string) error {
	path := flagx.ConfigPath(args, getenv)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}
