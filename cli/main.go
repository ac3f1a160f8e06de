package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/DeafMist/pdfcal/internal/config"
	"github.com/DeafMist/pdfcal/internal/ics"
	"github.com/DeafMist/pdfcal/internal/logger"
	"github.com/DeafMist/pdfcal/internal/models"
	"github.com/DeafMist/pdfcal/internal/normalize"
	"github.com/DeafMist/pdfcal/internal/pipeline"
)

var version = "dev"

type runFlags struct {
	token    string
	timezone string
	policy   string
	icsPath  string
	jsonOut  bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	log := logger.NewWriter(os.Stderr, "cli", os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if err := newRootCmd(log).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(log *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "pdfcal",
		Short: "Turn the dates in a PDF into calendar events",
		Long: `pdfcal extracts the text of a PDF, asks the date detector for events and
creates one calendar event per detected date.`,
		SilenceUsage: true,
	}

	var flags runFlags
	run := &cobra.Command{
		Use:   "run <file.pdf>",
		Short: "Process one PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd.Context(), log, cmd.OutOrStdout(), args[0], flags)
		},
	}
	run.Flags().StringVar(&flags.token, "token", "", "calendar bearer token (default $PDFCAL_CALENDAR_TOKEN)")
	run.Flags().StringVar(&flags.timezone, "timezone", "", "IANA zone for detected dates (default $PDFCAL_TIMEZONE or host zone)")
	run.Flags().StringVar(&flags.policy, "policy", "", "auto publishes immediately, confirm only previews (default $PDFCAL_PUBLISH_POLICY)")
	run.Flags().StringVar(&flags.icsPath, "ics", "", "write the detected events to an .ics file instead of publishing")
	run.Flags().BoolVar(&flags.jsonOut, "json", false, "print the full outcome as JSON")

	root.AddCommand(run, &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "pdfcal", version)
		},
	})
	return root
}

func runFile(ctx context.Context, log *slog.Logger, stdout io.Writer, path string, flags runFlags) error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(cfg, flags); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	doc := models.RawDocument{
		Name:      filepath.Base(path),
		MediaType: http.DetectContentType(data),
		Data:      data,
	}

	p, closeNotifier, err := pipeline.FromConfig(cfg.Common, log, nil)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			log.Error("close notifier", slog.Any("err", err))
		}
	}()

	out, err := p.Run(ctx, doc, models.AuthContext{Token: cfg.CalendarToken})
	if err != nil {
		log.Error("run failed", slog.String("file", path), slog.Any("err", err))
		return err
	}

	if flags.icsPath != "" {
		body := ics.Render(doc.Name, out.Pending, time.Now())
		if err := os.WriteFile(flags.icsPath, []byte(body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", flags.icsPath, err)
		}
		log.Info("calendar file written", slog.String("path", flags.icsPath), slog.Int("events", len(out.Pending)))
	}

	if flags.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err = fmt.Fprintln(stdout, out.Summary())
	return err
}

// applyFlags layers command-line flags over the loaded configuration.
func applyFlags(cfg *config.CLI, flags runFlags) error {
	if flags.token != "" {
		cfg.CalendarToken = flags.token
	}
	if flags.timezone != "" {
		loc, err := normalize.ResolveZone(flags.timezone)
		if err != nil {
			return fmt.Errorf("--timezone: %w", err)
		}
		cfg.Timezone = loc.String()
	}
	if flags.policy != "" {
		policy := strings.ToLower(flags.policy)
		if policy != config.PolicyAuto && policy != config.PolicyConfirm {
			return fmt.Errorf("--policy must be %q or %q", config.PolicyAuto, config.PolicyConfirm)
		}
		cfg.PublishPolicy = policy
	}
	if flags.icsPath != "" {
		if flags.policy != "" && cfg.PublishPolicy == config.PolicyAuto {
			return fmt.Errorf("--ics cannot be combined with --policy=auto")
		}
		cfg.PublishPolicy = config.PolicyConfirm
	}
	return nil
}
