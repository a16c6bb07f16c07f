// Package main is the entry point for the BTC long/short max pain calculator. Each
// invocation fetches the Deribit option book once, computes the levels for every
// timeframe and writes the report files.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yourorg/btc-maxpain/internal/config"
	"github.com/yourorg/btc-maxpain/internal/console"
	"github.com/yourorg/btc-maxpain/internal/export"
	"github.com/yourorg/btc-maxpain/internal/fetch"
	"github.com/yourorg/btc-maxpain/internal/guard"
	"github.com/yourorg/btc-maxpain/internal/logger"
	"github.com/yourorg/btc-maxpain/internal/metrics"
	"github.com/yourorg/btc-maxpain/internal/model"
	"github.com/yourorg/btc-maxpain/internal/pipeline"
	"github.com/yourorg/btc-maxpain/internal/security"
	"github.com/yourorg/btc-maxpain/internal/timeframe"
	"github.com/yourorg/btc-maxpain/internal/tracing"
)

// cliOptions holds the command-line flags
type cliOptions struct {
	configPath string
	envFile    string
	outputDir  string
	logLevel   string
	csv        bool
	sign       bool
	quiet      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:          "maxpain",
		Short:        "Compute BTC long/short max pain levels from Deribit options",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	persistent := cmd.PersistentFlags()
	persistent.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	persistent.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	flags := cmd.Flags()
	flags.StringVar(&opts.outputDir, "output-dir", "", "directory for report files")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.csv, "csv", false, "also write the CSV report")
	flags.BoolVar(&opts.sign, "sign", false, "write a detached signature next to the JSON report")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress the console summary")

	cmd.AddCommand(newVerifyCmd(opts))
	return cmd
}

func run(cmd *cobra.Command, opts *cliOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	applyFlags(cmd, opts, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		MaxAge: cfg.Logging.MaxAge,
		Trace:  cfg.Telemetry.OtelEndpoint != "",
	})
	if err != nil {
		return err
	}

	shutdown, err := tracing.Init(ctx, cfg.Telemetry.OtelEndpoint)
	if err != nil {
		log.Warnf("Tracing disabled: %v", err)
	}
	defer shutdown()

	entry := log.WithField("run_id", uuid.NewString())

	if !opts.quiet {
		console.Banner(out, time.Now().UTC().Format(model.UpdateTimeLayout))
	}

	files, err := buildFiles(cfg)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	client := fetch.NewDeribitClient(fetchOptions(cfg), entry)
	runner := pipeline.NewRunner(client, client, entry,
		pipeline.WithGuard(buildGuard(cfg, entry, recorder)),
		pipeline.WithValidation(validationOptions(cfg)),
		pipeline.WithExporters(files),
		pipeline.WithSinks(buildSinks(ctx, cfg, entry)...),
		pipeline.WithObserver(recorder),
	)

	res, runErr := runner.Run(ctx)
	flushMetrics(ctx, cfg, recorder, entry)

	if runErr != nil {
		if !opts.quiet {
			console.Failure(out, runErr)
		}
		return runErr
	}

	if !opts.quiet {
		console.Table(out, res.Report, timeframeNames())
		console.Files(out, files.Paths())
	}
	entry.WithFields(logrus.Fields{
		"timeframes": res.Report.Timeframes.Names(),
		"exported":   res.Exported,
	}).Info("Run completed")
	return nil
}

// loadConfig loads the dotenv file, when present, and then the configuration.
func loadConfig(opts *cliOptions) (config.Config, error) {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, err
	}
	return config.Load(opts.configPath)
}

// buildFiles returns the local report files, written together on every run.
func buildFiles(cfg config.Config) (export.FileSet, error) {
	files := export.FileSet{Files: []export.FileEncoder{
		export.JSONWriter{Path: cfg.JSONPath()},
		export.TextWriter{Path: cfg.TextPath()},
	}}

	if cfg.Output.CSVEnabled {
		files.Files = append(files.Files, export.CSVWriter{Path: cfg.CSVPath()})
	}

	if cfg.Signing.Enabled {
		signer, err := security.NewSigner(cfg.Signing.PrivateKey)
		if err != nil {
			return files, err
		}
		files.Files = append(files.Files, export.SignatureWriter{Path: cfg.SignaturePath(), Signer: signer})
	}

	return files, nil
}

// buildGuard seeds the price change check from the last report on disk and
// records which check tripped.
func buildGuard(cfg config.Config, log logrus.FieldLogger, recorder *metrics.Recorder) *guard.Guard {
	g := guard.New(guardThresholds(cfg), log).WithTripCallback(func(check, _ string) {
		recorder.ObserveGuardTrip(check)
	})

	prev, err := export.ReadReport(cfg.JSONPath())
	if err != nil {
		log.Warnf("Ignoring previous report: %v", err)
		return g
	}
	if prev != nil {
		g.WithPreviousPrice(prev.CurrentPrice)
	}
	return g
}

func flushMetrics(ctx context.Context, cfg config.Config, recorder *metrics.Recorder, log logrus.FieldLogger) {
	if cfg.Telemetry.MetricsTextfile != "" {
		if err := recorder.WriteTextfile(cfg.Telemetry.MetricsTextfile); err != nil {
			log.Warnf("Failed to write metrics textfile: %v", err)
		}
	}
	if cfg.Telemetry.PushgatewayURL != "" {
		if err := recorder.Push(ctx, cfg.Telemetry.PushgatewayURL); err != nil {
			log.Warnf("Failed to push metrics: %v", err)
		}
	}
}

func timeframeNames() []string {
	specs := timeframe.Defaults()
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	return names
}
