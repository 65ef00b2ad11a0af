package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/davkeeper/internal/flagx"
	"github.com/dmitrijs2005/davkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Only keys present in
// the file override the current values.
type JsonConfig struct {
	EndpointAddrHTTP       *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC       *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN            *string         `json:"database_dsn"`
	SecretKey              *string         `json:"secret_key"`
	BaseURL                *string         `json:"base_url"`
	LogLevel               *string         `json:"log_level"`
	StorageBackend         *string         `json:"storage_backend"`
	StoragePath            *string         `json:"storage_path"`
	SessionStore           *string         `json:"session_store"`
	RedisURL               *string         `json:"redis_url"`
	SessionValidity        *timex.Duration `json:"session_validity"`
	PairingTokenValidity   *timex.Duration `json:"pairing_token_validity"`
	AppSessionValidity     *timex.Duration `json:"app_session_validity"`
	AppSessionReapInterval *timex.Duration `json:"app_session_reap_interval"`
	S3RootUser             *string         `json:"s3_root_user"`
	S3RootPassword         *string         `json:"s3_root_password"`
	S3Bucket               *string         `json:"s3_bucket"`
	S3Region               *string         `json:"s3_region"`
	S3BaseEndpoint         *string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c / -config, if any, into cfg.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&cfg.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.SecretKey, c.SecretKey)
	setString(&cfg.BaseURL, c.BaseURL)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.StorageBackend, c.StorageBackend)
	setString(&cfg.StoragePath, c.StoragePath)
	setString(&cfg.SessionStore, c.SessionStore)
	setString(&cfg.RedisURL, c.RedisURL)
	setDuration(&cfg.SessionValidity, c.SessionValidity)
	setDuration(&cfg.PairingTokenValidity, c.PairingTokenValidity)
	setDuration(&cfg.AppSessionValidity, c.AppSessionValidity)
	setDuration(&cfg.AppSessionReapInterval, c.AppSessionReapInterval)
	setString(&cfg.S3RootUser, c.S3RootUser)
	setString(&cfg.S3RootPassword, c.S3RootPassword)
	setString(&cfg.S3Bucket, c.S3Bucket)
	setString(&cfg.S3Region, c.S3Region)
	setString(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
