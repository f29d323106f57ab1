// Package cli defines the Cobra commands for the mailferry CLI.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"mailferry/internal/config"
	"mailferry/internal/export"
	"mailferry/internal/model"
	"mailferry/internal/remote"
	"mailferry/internal/store"
	"mailferry/internal/tui"
)

var (
	flagOut        string
	flagMode       string
	flagRootFolder string
	flagNoAttach   bool
	flagPlain      bool
	flagRecompress bool
	flagPageSize   int
	version        = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "mailferry",
	Short: "Export a remote mailbox to mbox archives and .eml files",
	Long: `Mailferry walks the folder tree of a remote mailbox over its REST API
and writes every message to local mbox archives and/or per-message .eml
files. Progress is checkpointed in a local ledger, so an interrupted run
picks up where it left off.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runExport,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&flagOut, "out", "o", "", "Output directory (default from MAILFERRY_OUTPUT_DIR)")
	rootCmd.Flags().StringVarP(&flagMode, "mode", "m", "", "Output mode: mbox, eml or both")
	rootCmd.Flags().StringVar(&flagRootFolder, "root-folder", "", "Export only this folder and its children")
	rootCmd.Flags().BoolVar(&flagNoAttach, "no-attachments", false, "Skip attachment download")
	rootCmd.Flags().BoolVar(&flagPlain, "plain", false, "Line-based progress output instead of the TUI")
	rootCmd.Flags().BoolVar(&flagRecompress, "recompress-images", false, "Re-encode image attachments as JPEG")
	rootCmd.Flags().IntVar(&flagPageSize, "page-size", 0, "Messages requested per page")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
}

// loadConfig merges the environment config with command line overrides.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	if cmd.Flags().Changed("out") {
		cfg.OutputDir = flagOut
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode = config.Mode(flagMode)
	}
	if cmd.Flags().Changed("root-folder") {
		cfg.RootFolder = flagRootFolder
	}
	if flagNoAttach {
		cfg.IncludeAttachments = false
	}
	if flagRecompress {
		cfg.RecompressImages = true
	}
	if cmd.Flags().Changed("page-size") {
		cfg.PageSize = flagPageSize
	}
	return cfg
}

func oauthConfig(cfg config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
		Scopes: []string{"mail.read"},
	}
}

func buildSink(cfg config.Config) export.Sink {
	mboxSink := &export.MboxSink{Root: cfg.OutputDir, PreserveHierarchy: cfg.PreserveHierarchy}
	emlSink := &export.EmlSink{Root: cfg.OutputDir, PreserveHierarchy: cfg.PreserveHierarchy}
	switch cfg.Mode {
	case config.ModeEml:
		return emlSink
	case config.ModeBoth:
		return &export.MultiSink{Sinks: []export.Sink{mboxSink, emlSink}}
	default:
		return mboxSink
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	plain := flagPlain || !tui.IsTTY()
	log, cleanup := config.SetupLogger(cfg.LogFile, slog.LevelInfo, plain)
	defer cleanup()

	ledger, err := store.Open(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	tok, err := remote.ReadToken(cfg.TokenPath)
	if err != nil {
		return fmt.Errorf("no saved credentials (%w), run `mailferry login` first", err)
	}
	client, err := remote.NewClient(cfg.BaseURL, oauthConfig(cfg), tok, cfg.TokenPath)
	if err != nil {
		return err
	}
	client.SetPageSize(cfg.PageSize)

	var pool *export.ImagePool
	if cfg.RecompressImages {
		pool = &export.ImagePool{Workers: cfg.ImageWorkers}
	}

	tracker := export.NewTracker()
	runner := &export.Runner{
		Source:  client,
		Sink:    buildSink(cfg),
		Tracker: tracker,
		Ledger:  ledger,
		Pool:    pool,
		Log:     log,
		Opts: export.Options{
			RootFolderID:       cfg.RootFolder,
			IncludeAttachments: cfg.IncludeAttachments,
		},
	}

	runID := uuid.NewString()
	if err := ledger.StartRun(context.Background(), runID); err != nil {
		log.Warn("could not record run start", "err", err)
	}

	run := func(ctx context.Context, progress func(model.Progress)) (model.RunStatus, model.RunStats, error) {
		runner.Progress = progress
		log.Info("export starting", "run", runID, "out", cfg.OutputDir, "mode", cfg.Mode)
		status, err := runner.Run(ctx)
		stats := tracker.Stats()
		if ferr := ledger.FinishRun(context.Background(), runID, status, stats); ferr != nil {
			log.Warn("could not record run end", "err", ferr)
		}
		log.Info("export finished", "run", runID, "status", status,
			"succeeded", stats.Succeeded, "failed", stats.Failed, "skipped", stats.Skipped)
		return status, stats, err
	}

	if plain {
		return runPlain(run, tracker)
	}

	app := tui.NewAppModel(run, tracker)
	if err := tui.Run(app); err != nil {
		return err
	}
	return app.Err
}

// runPlain drives the export without the TUI, printing a line per folder.
// SIGINT requests a cooperative stop so open archives flush cleanly.
func runPlain(run tui.RunFunc, tracker *export.Tracker) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		<-sig
		fmt.Fprintln(os.Stderr, "stopping after the current message...")
		tracker.Cancel()
	}()

	lastFolder := ""
	status, stats, err := run(context.Background(), func(p model.Progress) {
		if p.Phase == "export" && p.Folder != "" && p.Folder != lastFolder {
			lastFolder = p.Folder
			fmt.Printf("exporting %s\n", p.Folder)
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d exported, %d failed, %d skipped across %d folders\n",
		status, stats.Succeeded, stats.Failed, stats.Skipped, stats.Folders)
	return nil
}
