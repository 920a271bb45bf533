package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"seclog/config"
	"seclog/internal/alerts"
	"seclog/internal/api"
	"seclog/internal/correlation"
	inputredis "seclog/internal/input/redis"
	"seclog/internal/logger"
	"seclog/internal/output/alerthttp"
	"seclog/internal/output/alertjson"
	"seclog/internal/output/eventjson"
	"seclog/internal/output/natspub"
	"seclog/internal/pipeline"
	"seclog/internal/rules"
	"seclog/internal/sampler"
	"seclog/internal/subscribers"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest pipeline, sensors and query API",
		RunE:  runServe,
	}

	eventMirrorPath string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&eventMirrorPath, "event-mirror", "", "Optional JSONL file that mirrors every enriched event")
}

type closer interface {
	Close() error
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	c := cfg.SecLog

	logger.Infof("SecLog starting")
	if configPath != "" {
		logger.Infof("Config loaded from: %s", configPath)
	} else {
		logger.Infof("No config file found, using defaults")
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ruleEngine, err := loadRules(c.Rules)
	if err != nil {
		return err
	}

	engine, err := correlation.NewEngine(correlation.Config{
		BruteForceWindow:    c.Correlation.BruteForceWindow,
		BruteForceThreshold: c.Correlation.BruteForceThreshold,
		MaxPrincipals:       c.Correlation.MaxPrincipals,
		PrivilegeWindow:     c.Correlation.PrivilegeWindow,
		PrivilegeThreshold:  c.Correlation.PrivilegeThreshold,
		ServiceWindow:       c.Correlation.ServiceWindow,
		ServiceThreshold:    c.Correlation.ServiceThreshold,
		CriticalThreatScore: c.Alerts.CriticalThreatScore,
	}, ruleEngine)
	if err != nil {
		return fmt.Errorf("create correlation engine: %w", err)
	}
	dispatcher := alerts.NewDispatcher(alerts.Config{CriticalThreatScore: c.Alerts.CriticalThreatScore}, st, engine)

	registry := subscribers.NewRegistry()
	outputs, err := registerOutputs(c, registry)
	defer func() {
		for _, o := range outputs {
			if err := o.Close(); err != nil {
				logger.Errorf("Failed to close output: %v", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	gateway := pipeline.NewGateway(pipeline.Config{
		QueueSize:         c.Pipeline.QueueSize,
		PollInterval:      c.Pipeline.PollInterval,
		StopGrace:         c.Pipeline.StopGrace,
		SweepInterval:     c.Pipeline.SweepInterval,
		RetentionDays:     c.Retention.Days,
		RetentionInterval: c.Retention.Interval,
	}, st, engine, dispatcher, registry)
	gateway.Start()
	defer gateway.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && err != context.Canceled {
				logger.Errorf("%s stopped: %v", name, err)
			}
		}()
	}

	if c.Input.Redis.Enabled {
		consumer, err := inputredis.NewConsumer(ctx, inputredis.Config{
			Addr:         c.Input.Redis.Addr,
			Password:     c.Input.Redis.Password,
			DB:           c.Input.Redis.DB,
			Key:          c.Input.Redis.Key,
			BlockTimeout: c.Input.Redis.BlockTimeout,
		})
		if err != nil {
			return fmt.Errorf("create redis consumer: %w", err)
		}
		defer consumer.Close()
		run("Redis source", inputredis.NewSource(consumer, gateway.Submit).Run)
		logger.Infof("Redis input enabled (%s, key=%s)", c.Input.Redis.Addr, c.Input.Redis.Key)
	}

	if c.Sampler.Enabled {
		run("System sampler", sampler.New(sampler.Config{
			Interval: c.Sampler.Interval,
			DiskPath: c.Sampler.DiskPath,
		}, gateway).Run)
	}

	if c.API.Enabled {
		server := api.NewServer(c.API.Listen, st, nil)
		run("Query API", server.Run)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	wg.Wait()
	gateway.Stop()

	logger.Infof("SecLog stopped")
	return nil
}

func loadRules(rc config.RulesConfig) (rules.Engine, error) {
	if !rc.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(rc.Path) == "" {
		logger.Warnf("Rules enabled but rules.path is empty; Sigma tagging disabled")
		return nil, nil
	}

	engine, stats, err := rules.NewSigmaEngine(rc.Path)
	if err != nil {
		return nil, fmt.Errorf("load Sigma rules from %s: %w", rc.Path, err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; Sigma tagging is effectively disabled")
		return nil, nil
	}
	return engine, nil
}

// registerOutputs subscribes every configured sink. The returned closers are
// valid even when err is non-nil.
func registerOutputs(c config.SecLogConfig, registry *subscribers.Registry) ([]closer, error) {
	var outputs []closer

	if path := c.Alerts.Output.File.Path; path != "" {
		w, err := alertjson.NewWriter(path)
		if err != nil {
			return outputs, fmt.Errorf("create alert file writer: %w", err)
		}
		registry.SubscribeAlerts(w)
		outputs = append(outputs, w)
		logger.Infof("Alert output: file (%s)", path)
	}

	if h := c.Alerts.Output.HTTP; h.URL != "" {
		w, err := alerthttp.NewWriter(alerthttp.Config{
			URL:              h.URL,
			Timeout:          h.Timeout,
			Headers:          h.Headers,
			FailureThreshold: h.FailureThreshold,
			OpenTimeout:      h.OpenTimeout,
		})
		if err != nil {
			return outputs, fmt.Errorf("create alert HTTP writer: %w", err)
		}
		registry.SubscribeAlerts(w)
		outputs = append(outputs, w)
		logger.Infof("Alert output: http (%s)", h.URL)
	}

	if eventMirrorPath != "" {
		w, err := eventjson.NewWriter(eventMirrorPath)
		if err != nil {
			return outputs, fmt.Errorf("create event mirror: %w", err)
		}
		registry.SubscribeEvents(w)
		outputs = append(outputs, w)
	}

	if c.NATS.Enabled {
		p, err := natspub.Connect(natspub.Config{
			URL:          c.NATS.URL,
			EventSubject: c.NATS.EventSubject,
			AlertSubject: c.NATS.AlertSubject,
		})
		if err != nil {
			return outputs, err
		}
		registry.SubscribeEvents(p)
		registry.SubscribeAlerts(p)
		outputs = append(outputs, p)
	}

	return outputs, nil
}
