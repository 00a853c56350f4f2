package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/possync/internal/flagx"
)

var knownFlags = []string{"-a", "-i", "-s", "-t", "-d", "-l", "-status", "-log-level", "-log-format"}

// parseFlags overlays cfg with command-line flags.
//
//	-a string          server address
//	-i int             online check interval, seconds
//	-s duration        periodic sync interval (0 disables)
//	-t duration        timeout of one remote call
//	-d string          local database path
//	-l int             sync history entries kept
//	-status string     status API listen address ("" disables)
//	-log-level string  debug, info, warn or error
//	-log-format string text or json
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("possync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.DurationVar(&cfg.SyncInterval, "s", cfg.SyncInterval, "periodic sync interval")
	fs.DurationVar(&cfg.RemoteTimeout, "t", cfg.RemoteTimeout, "remote call timeout")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.IntVar(&cfg.HistoryLimit, "l", cfg.HistoryLimit, "sync history entries kept")
	fs.StringVar(&cfg.StatusAddr, "status", cfg.StatusAddr, "status API listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	return nil
}
