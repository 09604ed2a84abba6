package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/probelab/fabmon/internal/catalog"
	"github.com/probelab/fabmon/internal/core"
	"github.com/probelab/fabmon/internal/deploy"
	"github.com/probelab/fabmon/internal/obs"
	"github.com/probelab/fabmon/internal/runner"
	"github.com/probelab/fabmon/internal/scenario"
	"github.com/probelab/fabmon/internal/status"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))
)

var (
	flagConfig     string
	flagResultsDir string
)

func main() {
	// Local secrets, e.g. FABRIC_API_KEY. Absence is fine.
	_ = godotenv.Load(".env.local")

	rootCmd := &cobra.Command{
		Use:   "fabmon",
		Short: "Model fabric health monitor",
		Long:  `fabmon probes inference fabric deployments with fixed scenarios, keeps per-model status and history on disk, and builds a static health dashboard from them.`,
	}
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flagResultsDir, "results-dir", "", "Override results directory")

	// Run command
	var (
		runCycle     bool
		runDashboard bool
		runDeployDir string
		runNoSave    bool
		runMaxModels int
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Test models and record results",
		RunE:  runMonitor,
	}
	runCmd.Flags().BoolVar(&runCycle, "cycle", false, "Test one model and advance the round-robin pointer")
	runCmd.Flags().BoolVar(&runDashboard, "dashboard", true, "Rebuild the dashboard after the run")
	runCmd.Flags().StringVar(&runDeployDir, "deploy", "", "Copy dashboard artifacts to this directory after the run")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Skip writing the per-run summary file")
	runCmd.Flags().IntVar(&runMaxModels, "max-models", 0, "Cap the number of models a full run tests (0 = all)")

	// Status command
	var statusFormat string

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked model statuses",
		RunE:  showStatus,
	}
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "table", "Output format (table, json)")

	// Catalog command
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the models a run would test",
		RunE:  showCatalog,
	}

	// Dashboard command
	var dashDeployDir string

	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Rebuild the dashboard from stored results",
		RunE:  buildDashboard,
	}
	dashboardCmd.Flags().StringVar(&dashDeployDir, "deploy", "", "Copy dashboard artifacts to this directory")

	// Prune command
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop history entries past the retention window",
		RunE:  pruneHistory,
	}

	// Config command
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE:  showConfig,
	}

	rootCmd.AddCommand(
		runCmd,
		statusCmd,
		catalogCmd,
		dashboardCmd,
		pruneCmd,
		configCmd,
	)

	ctx := context.Background()
	if err := fang.Execute(ctx, rootCmd,
		fang.WithVersion(core.Version),
		fang.WithColorSchemeFunc(fang.DefaultColorScheme),
	); err != nil {
		os.Exit(1)
	}
}

func setup() (*core.Config, *zap.Logger, *runner.Runner, error) {
	cfg, err := core.Load(flagConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagResultsDir != "" {
		cfg.ResultsDir = flagResultsDir
	}

	log, err := obs.NewLogger(obs.LogConfig{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	probes := scenario.NewFabricRunner(cfg.Fabric.RequestURL, cfg.Fabric.APIKey)
	source := catalog.NewClient(cfg.Fabric.StatusURL, cfg.Fabric.StatusTimeout)
	r, err := runner.New(cfg, log, probes, source)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to init runner: %w", err)
	}
	return cfg, log, r, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	_, log, r, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	mode := runner.ModeFull
	if cycle, _ := cmd.Flags().GetBool("cycle"); cycle {
		mode = runner.ModeCycle
	}
	maxModels, _ := cmd.Flags().GetInt("max-models")

	summary, err := r.Run(cmd.Context(), mode, maxModels)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave && summary.Total > 0 {
		r.SaveRunLog(summary)
	}

	if dash, _ := cmd.Flags().GetBool("dashboard"); dash {
		if err := r.WriteDashboard(time.Now()); err != nil {
			return fmt.Errorf("dashboard build failed: %w", err)
		}
	}

	if dest, _ := cmd.Flags().GetString("deploy"); dest != "" {
		if err := deployArtifacts(dest); err != nil {
			return err
		}
	}

	printSummary(summary)
	return nil
}

func printSummary(s *runner.Summary) {
	fmt.Println(titleStyle.Render("Run Summary"))
	fmt.Println()
	fmt.Printf("%s %d scenarios across %d models in %.1fs\n",
		infoStyle.Render("Tested:"),
		s.Total,
		len(s.Models),
		s.DurationSeconds,
	)
	for _, st := range []status.Status{status.OK, status.Slow, status.Degraded, status.Failed, status.Unavailable} {
		if n := s.Counts[string(st)]; n > 0 {
			fmt.Printf("  %s %d\n", statusStyle(st).Render(string(st)+":"), n)
		}
	}
	if s.Total > 0 && s.Worst() == status.OK {
		fmt.Println()
		fmt.Println(successStyle.Render("✓ All scenarios OK"))
	}
}

func showStatus(cmd *cobra.Command, args []string) error {
	_, log, r, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	statuses := r.Statuses()

	if format, _ := cmd.Flags().GetString("format"); format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	if len(statuses) == 0 {
		fmt.Println(infoStyle.Render("No models tracked yet"))
		return nil
	}

	fmt.Println(titleStyle.Render("Model Status"))
	fmt.Println()

	for _, ms := range statuses {
		fmt.Printf("%s %s\n",
			statusStyle(ms.OverallStatus).Render(fmt.Sprintf("[%s]", ms.OverallStatus)),
			ms.Model,
		)
		for name, entry := range ms.Scenarios {
			fmt.Printf("  %s %s (%dms, checked %s)\n",
				statusStyle(entry.Status).Render(string(entry.Status)),
				name,
				entry.DurationMS,
				entry.LastChecked.Format("2006-01-02 15:04"),
			)
		}
		if ms.LastAllOK != nil {
			fmt.Printf("  %s %s\n",
				subtitleStyle.Render("Last all OK:"),
				ms.LastAllOK.Format("2006-01-02 15:04"),
			)
		}
		fmt.Println()
	}

	return nil
}

func showCatalog(cmd *cobra.Command, args []string) error {
	_, log, r, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	cat := r.Catalog(cmd.Context())

	fmt.Println(titleStyle.Render("Model Catalog"))
	fmt.Println()

	for _, m := range cat.Models {
		marker := subtitleStyle.Render("baseline")
		if m.Hot {
			marker = infoStyle.Render("hot")
		}
		fmt.Printf("%-50s %s %s\n", m.Key, marker, subtitleStyle.Render(string(m.Architecture)))
	}
	fmt.Println()
	fmt.Printf("%s %d\n", infoStyle.Render("Total:"), cat.Len())
	return nil
}

func buildDashboard(cmd *cobra.Command, args []string) error {
	_, log, r, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if err := r.WriteDashboard(time.Now()); err != nil {
		return fmt.Errorf("dashboard build failed: %w", err)
	}
	fmt.Println(successStyle.Render("✓ Dashboard written"))

	if dest, _ := cmd.Flags().GetString("deploy"); dest != "" {
		return deployArtifacts(dest)
	}
	return nil
}

func pruneHistory(cmd *cobra.Command, args []string) error {
	_, log, r, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	r.PruneHistory(time.Now())
	fmt.Println(successStyle.Render("✓ History pruned"))
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := core.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flagResultsDir != "" {
		cfg.ResultsDir = flagResultsDir
	}

	// The API key stays out of terminal output.
	redacted := *cfg
	if redacted.Fabric.APIKey != "" {
		redacted.Fabric.APIKey = "[set]"
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(redacted)
}

func deployArtifacts(dest string) error {
	cfg, err := core.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flagResultsDir != "" {
		cfg.ResultsDir = flagResultsDir
	}

	log, err := obs.NewLogger(obs.LogConfig{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if err := deploy.Deploy(cfg.ResultsDir, dest, log); err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}
	fmt.Println(successStyle.Render("✓ Dashboard deployed to " + dest))
	return nil
}

func statusStyle(s status.Status) lipgloss.Style {
	switch s {
	case status.OK:
		return successStyle
	case status.Slow:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("226")) // Yellow
	case status.Degraded:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
	case status.Failed:
		return errorStyle
	case status.Unavailable:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("250")) // Gray
	default:
		return subtitleStyle
	}
}
