package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"seclog/internal/store"
	"seclog/pkg/models"
)

func main() {
	dbPath := flag.String("db", "data/security_events.db", "SQLite database path")
	eventsOut := flag.String("events", "output/events.jsonl", "Events JSONL output path")
	alertsOut := flag.String("alerts", "", "Optional alerts JSONL output path")
	severity := flag.String("severity", "", "Only export events of this severity (Info, Warning, Critical)")
	since := flag.Duration("since", 0, "Only export events newer than this duration (for example 24h)")
	limit := flag.Int("limit", 100000, "Maximum number of events to export")
	flag.Parse()

	st, err := store.Open(store.Config{Path: *dbPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	filter := store.EventFilter{Limit: *limit}
	if *severity != "" {
		sev, ok := models.LookupSeverity(*severity)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown severity %q\n", *severity)
			os.Exit(2)
		}
		filter.Severity = sev
	}
	if *since > 0 {
		filter.Start = time.Now().Add(-*since)
	}

	ctx := context.Background()
	events, err := st.ListEvents(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to query events: %v\n", err)
		os.Exit(1)
	}
	if err := writeJSONLines(*eventsOut, events); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write events: %v\n", err)
		os.Exit(1)
	}

	alertCount := 0
	if *alertsOut != "" {
		alerts, err := st.ListAlerts(ctx, nil, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to query alerts: %v\n", err)
			os.Exit(1)
		}
		if err := writeJSONLines(*alertsOut, alerts); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write alerts: %v\n", err)
			os.Exit(1)
		}
		alertCount = len(alerts)
	}

	fmt.Printf("exported events=%d alerts=%d output=%s\n", len(events), alertCount, *eventsOut)
}

func writeJSONLines[T any](path string, rows []T) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, item := range rows {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
