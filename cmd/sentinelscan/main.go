package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentinelscan/config"
	"sentinelscan/internal/history"
	"sentinelscan/internal/logger"
	"sentinelscan/internal/metrics"
	"sentinelscan/internal/notify"
	"sentinelscan/internal/projection"
	"sentinelscan/internal/session"
	"sentinelscan/internal/transport/poll"
	"sentinelscan/internal/transport/stream"
	"sentinelscan/pkg/models"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		fmt.Fprintf(os.Stderr, "Warning: config file not found at %s, trying default locations\n", configArg)
	}

	if _, err := os.Stat("sentinelscan.yml"); err == nil {
		return "sentinelscan.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), "sentinelscan.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "sentinelscan.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.SentinelScan.Backend.BaseURL == "" {
		cfg.SentinelScan.Backend.BaseURL = "http://127.0.0.1:8080"
	}
	if cfg.SentinelScan.Backend.StreamPath == "" {
		cfg.SentinelScan.Backend.StreamPath = "/api/v1/sentinel/scan/stream"
	}
	if cfg.SentinelScan.Backend.PollPath == "" {
		cfg.SentinelScan.Backend.PollPath = "/api/v1/sentinel/scan/status"
	}
	if cfg.SentinelScan.Backend.Timeout <= 0 {
		cfg.SentinelScan.Backend.Timeout = 10 * time.Second
	}

	if cfg.SentinelScan.Transport.Mode == "" {
		cfg.SentinelScan.Transport.Mode = "stream"
	}
	if cfg.SentinelScan.Transport.PollInterval <= 0 {
		cfg.SentinelScan.Transport.PollInterval = 2 * time.Second
	}

	if cfg.SentinelScan.History.Dir == "" {
		cfg.SentinelScan.History.Dir = "scan_history"
	}
	if cfg.SentinelScan.Metrics.Addr == "" {
		cfg.SentinelScan.Metrics.Addr = ":9215"
	}
	if cfg.SentinelScan.Logging.Level == "" {
		cfg.SentinelScan.Logging.Level = "info"
	}
}

func loadConfig(args []string) *config.Config {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		// Run with defaults when no config file exists.
		cfg = &config.Config{}
		fmt.Fprintf(os.Stderr, "Config not loaded (%v), using defaults\n", err)
	}
	applyDefaults(cfg)

	if initErr := logger.Init(cfg.SentinelScan.Logging.Enabled, cfg.SentinelScan.Logging.Level, cfg.SentinelScan.Logging.File, cfg.SentinelScan.Logging.Console); initErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", initErr)
		os.Exit(1)
	}
	if err == nil {
		logger.Infof("Config loaded from: %s", configPath)
	}
	return cfg
}

func buildController(cfg *config.Config, store *history.Store, m *metrics.Metrics) *session.Controller {
	backend := cfg.SentinelScan.Backend

	ctrlCfg := session.Config{
		PollInterval: cfg.SentinelScan.Transport.PollInterval,
		History:      store,
		Metrics:      m,
	}

	if cfg.SentinelScan.Slack.WebhookURL != "" {
		notifier, err := notify.NewSlackNotifier(notify.Config{
			WebhookURL:  cfg.SentinelScan.Slack.WebhookURL,
			MinSeverity: cfg.SentinelScan.Slack.MinSeverity,
			Channel:     cfg.SentinelScan.Slack.Channel,
			Timeout:     cfg.SentinelScan.Slack.Timeout,
		})
		if err != nil {
			logger.Warnf("Slack alerts disabled: %v", err)
		} else {
			ctrlCfg.Alerter = notifier
			logger.Infof("Slack alerts enabled (min severity %s)", cfg.SentinelScan.Slack.MinSeverity)
		}
	}

	switch cfg.SentinelScan.Transport.Mode {
	case "poll":
		ctrlCfg.OpenPoll = func(ctx context.Context) (session.SnapshotSource, error) {
			client, err := poll.NewClient(poll.Config{
				URL:     backend.BaseURL + backend.PollPath,
				Timeout: backend.Timeout,
				Headers: backend.Headers,
			})
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	default:
		ctrlCfg.OpenStream = func(ctx context.Context) (session.EventSource, error) {
			client, err := stream.Dial(ctx, stream.Config{
				URL:     backend.BaseURL + backend.StreamPath,
				Timeout: backend.Timeout,
				Headers: backend.Headers,
			})
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}

	return session.NewController(ctrlCfg)
}

func runWatch(args []string) int {
	cfg := loadConfig(args)
	logger.Infof("SentinelScan starting (transport=%s)", cfg.SentinelScan.Transport.Mode)

	var m *metrics.Metrics
	if cfg.SentinelScan.Metrics.Enabled {
		m = metrics.NewMetrics()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.SentinelScan.Metrics.Addr, mux); err != nil {
				logger.Errorf("Metrics listener failed: %v", err)
			}
		}()
		logger.Infof("Metrics exposed on %s/metrics", cfg.SentinelScan.Metrics.Addr)
	}

	store := history.NewStore(history.Config{
		Dir: cfg.SentinelScan.History.Dir,
		Redis: history.RedisConfig{
			Addr:      cfg.SentinelScan.History.Redis.Addr,
			Password:  cfg.SentinelScan.History.Redis.Password,
			DB:        cfg.SentinelScan.History.Redis.DB,
			KeyPrefix: cfg.SentinelScan.History.Redis.KeyPrefix,
		},
	})
	defer store.Close()

	ctrl := buildController(cfg, store, m)

	ctx := context.Background()
	if err := ctrl.StartScan(ctx); err != nil {
		logger.Errorf("Failed to start scan: %v", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Infof("Interrupted, cancelling scan")
		ctrl.CancelScan()
	case <-ctrl.Done():
	}

	snapshot := ctrl.Snapshot()
	for _, entry := range projection.Feed(&snapshot, ctrl.Feed()) {
		logger.Debugf("[%s] %s: %s", entry.MissionID, entry.Node, entry.Msg)
	}
	printSummary(snapshot)

	if snapshot.Phase == models.PhaseComplete {
		record := history.BuildRecord(snapshot, time.Now())
		if err := store.SaveScan(ctx, record); err != nil {
			logger.Errorf("Failed to save scan history: %v", err)
			return 1
		}
		logger.Infof("Scan %s saved to history", snapshot.ScanID)
		return 0
	}

	logger.Warnf("Scan ended in phase %s", snapshot.Phase)
	return 1
}

func runHistory(args []string) int {
	cfg := loadConfig(args)
	store := history.NewStore(history.Config{
		Dir: cfg.SentinelScan.History.Dir,
		Redis: history.RedisConfig{
			Addr:      cfg.SentinelScan.History.Redis.Addr,
			Password:  cfg.SentinelScan.History.Redis.Password,
			DB:        cfg.SentinelScan.History.Redis.DB,
			KeyPrefix: cfg.SentinelScan.History.Redis.KeyPrefix,
		},
	})
	defer store.Close()

	summaries, err := store.ListScans(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list scans: %v\n", err)
		return 1
	}
	if len(summaries) == 0 {
		fmt.Println("no scans in history")
		return 0
	}
	for _, s := range summaries {
		fmt.Printf("%-28s %-22s missions=%-3d critical=%-2d high=%-2d risk=%d/100 %s\n",
			s.ScanID, s.Timestamp, s.TotalMissions, s.CriticalCount, s.HighCount, s.OverallRisk, s.OverallSeverity)
	}
	return 0
}

func runShow(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: sentinelscan show <scan-id> [config]")
		return 2
	}
	scanID := args[0]
	cfg := loadConfig(args[1:])

	store := history.NewStore(history.Config{
		Dir: cfg.SentinelScan.History.Dir,
		Redis: history.RedisConfig{
			Addr:      cfg.SentinelScan.History.Redis.Addr,
			Password:  cfg.SentinelScan.History.Redis.Password,
			DB:        cfg.SentinelScan.History.Redis.DB,
			KeyPrefix: cfg.SentinelScan.History.Redis.KeyPrefix,
		},
	})
	defer store.Close()

	ctrl := session.NewController(session.Config{History: store})
	if err := ctrl.LoadHistorical(context.Background(), scanID); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	printSummary(ctrl.Snapshot())
	return 0
}

func printSummary(s models.ScanSession) {
	counts := projection.Count(&s)
	groups := projection.Groups(&s)
	nested := projection.Nest(&s)

	fmt.Printf("\nScan %s  phase=%s  progress=%d/%d\n", s.ScanID, s.Phase, counts.Completed, counts.Total)
	fmt.Printf("Detections: %d total, %d critical\n", counts.Detections, counts.Critical)
	fmt.Printf("Domains: security=%d compliance=%d operations=%d\n",
		len(groups.Security), len(groups.Compliance), len(groups.Operations))

	for i := range s.Detections {
		d := s.Detections[i]
		if !d.Primary() {
			continue
		}
		fmt.Printf("  [%s] %s (%s) risk=%d/100 records=%d\n",
			d.Severity, d.MissionName, d.Domain, d.RiskScore, d.DataCount)
		for _, sub := range nested[d.MissionID] {
			fmt.Printf("      deep-dive: [%s] %s risk=%d/100\n", sub.Severity, sub.MissionName, sub.RiskScore)
		}
	}
	if orphans := nested[projection.UnassignedParent]; len(orphans) > 0 {
		fmt.Printf("  unassigned deep-dives: %d\n", len(orphans))
	}

	if len(s.Clusters) > 0 {
		fmt.Printf("Threat clusters:\n")
		for _, c := range s.Clusters {
			fmt.Printf("  [%s] %s: %s (missions: %s)\n",
				c.Severity, c.ThreatName, c.Narrative, strings.Join(c.ConnectedMissions, ", "))
		}
	}
	if s.Narrative != nil {
		fmt.Printf("Overall risk: %d/100 (%s)\n", s.Narrative.OverallRisk, s.Narrative.OverallSeverity)
		fmt.Printf("Brief: %s\n", s.Narrative.ExecutiveSummary)
		for _, action := range s.Narrative.ImmediateActions {
			fmt.Printf("  action: %s\n", action)
		}
	}
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "watch":
			os.Exit(runWatch(os.Args[2:]))
		case "history":
			os.Exit(runHistory(os.Args[2:]))
		case "show":
			os.Exit(runShow(os.Args[2:]))
		default:
			// Backward-compatible mode: first arg is config path.
			os.Exit(runWatch(os.Args[1:]))
		}
	}

	os.Exit(runWatch(nil))
}
