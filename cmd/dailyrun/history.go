package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/dailyrun/internal/storage"
)

var (
	statusFilter string
	limitFlag    int
	formatFlag   string
	outputFlag   string
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"launches"},
	Short:   "List recorded launches",
	Args:    cobra.NoArgs,
	RunE:    runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <launch-id>",
	Short: "Show one launch",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (running, started, failed)")
	historyCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max launches to show")
	historyCmd.Flags().StringVar(&formatFlag, "format", "table", "Output format: table, md or json")
	historyCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default: stdout)")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	launches, err := store.ListLaunches(cmd.Context(), storage.ListOptions{
		Status: storage.LaunchStatus(statusFilter),
		Limit:  limitFlag,
	})
	if err != nil {
		return err
	}

	var output string
	switch formatFlag {
	case "json":
		data, err := storage.ExportJSON(launches)
		if err != nil {
			return err
		}
		output = string(data) + "\n"
	case "md":
		output = storage.ExportMarkdown(launches)
	case "table":
		output = formatTable(launches, time.Now())
	default:
		return fmt.Errorf("unknown format %q (want table, md or json)", formatFlag)
	}

	if outputFlag != "" {
		return os.WriteFile(outputFlag, []byte(output), 0o644)
	}
	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

func formatTable(launches []storage.Launch, now time.Time) string {
	if len(launches) == 0 {
		return "No launches recorded.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %-9s %-8s %-14s %s\n", "ID", "TRIGGER", "STATUS", "SANDBOX", "CREATED")
	b.WriteString(strings.Repeat("─", 60) + "\n")

	for _, l := range launches {
		sandboxID := l.SandboxID
		if len(sandboxID) > 12 {
			sandboxID = sandboxID[:12]
		}
		if sandboxID == "" {
			sandboxID = "-"
		}
		fmt.Fprintf(&b, "%-10s %-9s %-8s %-14s %s\n",
			short(l.ID), l.Trigger, l.Status, sandboxID, timeAgo(now.Sub(l.CreatedAt)))
	}
	return b.String()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	l, err := store.GetLaunch(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Launch:   %s\n", l.ID)
	fmt.Fprintf(out, "App:      %s\n", l.App)
	fmt.Fprintf(out, "Trigger:  %s\n", l.Trigger)
	fmt.Fprintf(out, "Status:   %s\n", l.Status)
	if l.SandboxID != "" {
		fmt.Fprintf(out, "Sandbox:  %s\n", l.SandboxID)
	}
	if l.Image != "" {
		fmt.Fprintf(out, "Image:    %s\n", l.Image)
	}
	if !l.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "Expires:  %s\n", l.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "Created:  %s\n", l.CreatedAt.Format(time.RFC3339))
	if l.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", l.Error)
	}
	return nil
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func timeAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
