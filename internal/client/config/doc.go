// Package config loads runtime configuration for the POS client.
//
// Sources, later ones win:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags (see parseFlags).
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "sync_interval": "30s",
//	  "remote_timeout": "10s",
//	  "database_path": "/var/lib/possync/pos.db",
//	  "history_limit": 100,
//	  "status_addr": "127.0.0.1:8765",
//	  "log_level": "info",
//	  "log_format": "json"
//	}
package config
