package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/possync/internal/flagx"
	"github.com/dmitrijs2005/possync/internal/timex"
)

// JsonConfig is the on-disk shape. Intervals accept "3s" style strings or
// integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	RemoteTimeout       timex.Duration `json:"remote_timeout"`
	DatabasePath        string         `json:"database_path"`
	HistoryLimit        int            `json:"history_limit"`
	StatusAddr          *string        `json:"status_addr"`
	LogLevel            string         `json:"log_level"`
	LogFormat           string         `json:"log_format"`
}

// parseJson overlays cfg with the file named by -c/-config. Fields missing
// from the file keep their current values.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.RemoteTimeout.Duration != 0 {
		cfg.RemoteTimeout = jc.RemoteTimeout.Duration
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.HistoryLimit != 0 {
		cfg.HistoryLimit = jc.HistoryLimit
	}
	if jc.StatusAddr != nil {
		cfg.StatusAddr = *jc.StatusAddr
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.LogFormat != "" {
		cfg.LogFormat = jc.LogFormat
	}
	return nil
}
