package config

import "time"

// Config holds runtime settings of the POS client.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	RemoteTimeout       time.Duration
	DatabasePath        string
	HistoryLimit        int
	// StatusAddr is the listen address of the local status API; empty
	// disables it.
	StatusAddr string
	LogLevel   string
	LogFormat  string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 30 * time.Second
	c.RemoteTimeout = 10 * time.Second
	c.DatabasePath = "possync.db"
	c.HistoryLimit = 100
	c.StatusAddr = "127.0.0.1:8765"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig applies defaults, then the JSON file named by -c/-config, then
// command-line flags. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
