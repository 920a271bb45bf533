package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"seclog/config"
	"seclog/internal/logger"
	"seclog/internal/store"
)

const defaultConfigName = "seclog.yml"

var (
	rootCmd = &cobra.Command{
		Use:           "seclog",
		Short:         "Security event logging and correlation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configArg string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configArg, "config", "c", "", "Path to config file (default ./seclog.yml)")
}

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadConfig resolves, parses and validates the config. A missing file yields
// the built-in defaults.
func loadConfig() (*config.Config, string, error) {
	path := findConfigFile(configArg)

	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, "", fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	} else {
		cfg.SecLog.Logging.Enabled = true
		cfg.SecLog.Logging.Console = true
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}

	l := cfg.SecLog.Logging
	if err := logger.Init(l.Enabled, l.Level, l.File, l.Console); err != nil {
		return nil, "", fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, path, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(store.Config{
		Path:        cfg.SecLog.Storage.Path,
		BusyTimeout: cfg.SecLog.Storage.BusyTimeout,
	})
}

func main() {
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seclog: %v\n", err)
		logger.Close()
		os.Exit(1)
	}
}
