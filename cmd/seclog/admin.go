package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"seclog/pkg/models"
)

var (
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Delete events, alerts and samples older than the retention horizon",
		RunE:  runCleanup,
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored data and reset identifiers",
		RunE:  runClear,
	}

	searchCmd = &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search event descriptions and types",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print event counts by severity and type",
		RunE:  runStats,
	}

	cleanupDays int
	clearYes    bool
	searchLimit int
)

func init() {
	rootCmd.AddCommand(cleanupCmd, clearCmd, searchCmd, statsCmd)

	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "Retention horizon in days (default from config)")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deletion of all data")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum number of results")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	days := cleanupDays
	if days <= 0 {
		days = cfg.SecLog.Retention.Days
	}
	res, err := st.CleanupOldEvents(context.Background(), days)
	if err != nil {
		return err
	}
	fmt.Printf("removed events=%d alerts=%d stats=%d (older than %d days)\n", res.Events, res.Alerts, res.Stats, days)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return fmt.Errorf("refusing to clear without --yes")
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := st.ClearAll(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("cleared events=%d alerts=%d stats=%d\n", res.Events, res.Alerts, res.Stats)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := st.SearchEvents(context.Background(), args[0], searchLimit)
	if err != nil {
		return err
	}
	printEvents(events)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	total, err := st.CountEvents(ctx)
	if err != nil {
		return err
	}
	bySeverity, err := st.CountBySeverity(ctx)
	if err != nil {
		return err
	}
	byType, err := st.CountByType(ctx, 10)
	if err != nil {
		return err
	}

	fmt.Printf("total events: %d\n", total)
	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityWarning, models.SeverityInfo} {
		fmt.Printf("  %-8s %d\n", sev, bySeverity[sev])
	}
	fmt.Println("top event types:")
	for _, tc := range byType {
		fmt.Printf("  %-40s %d\n", tc.EventType, tc.Count)
	}
	return nil
}

func printEvents(events []*models.Event) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tSEVERITY\tSCORE\tTYPE\tDESCRIPTION")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", e.ID, e.Timestamp.Local().Format(time.DateTime), e.Severity, e.ThreatScore, e.EventType, e.Description)
	}
	tw.Flush()
}
