package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yourorg/btc-maxpain/internal/cloud"
	"github.com/yourorg/btc-maxpain/internal/config"
	"github.com/yourorg/btc-maxpain/internal/export"
	"github.com/yourorg/btc-maxpain/internal/fetch"
	"github.com/yourorg/btc-maxpain/internal/guard"
	"github.com/yourorg/btc-maxpain/internal/metrics"
	"github.com/yourorg/btc-maxpain/internal/pipeline"
	"github.com/yourorg/btc-maxpain/internal/validation"
)

// Helper functions mapping configuration onto components

// applyFlags overrides configuration with flags set on the command line
func applyFlags(cmd *cobra.Command, opts *cliOptions, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Output.Dir = opts.outputDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("csv") {
		cfg.Output.CSVEnabled = opts.csv
	}
	if flags.Changed("sign") {
		cfg.Signing.Enabled = opts.sign
	}
}

// fetchOptions converts the Deribit section into client options
func fetchOptions(cfg config.Config) fetch.Options {
	return fetch.Options{
		BaseURL:          cfg.Deribit.BaseURL,
		PriceTimeout:     cfg.Deribit.PriceTimeout,
		ContractsTimeout: cfg.Deribit.ContractsTimeout,
		RetryMax:         cfg.Deribit.RetryMax,
		RateLimitRPS:     cfg.Deribit.RateLimitRPS,
		RateLimitBurst:   cfg.Deribit.RateLimitBurst,
	}
}

func guardThresholds(cfg config.Config) guard.Thresholds {
	return guard.Thresholds{
		MinContracts:   cfg.Guard.MinContracts,
		MinExpiries:    cfg.Guard.MinExpiries,
		MaxPriceChange: cfg.Guard.MaxPriceChange,
	}
}

func validationOptions(cfg config.Config) validation.ValidationOptions {
	opts := validation.DefaultValidationOptions()
	opts.DropExpired = cfg.Validation.DropExpired
	opts.MinOpenInterest = cfg.Validation.MinOpenInterest
	return opts
}

// buildSinks creates the optional remote sinks. A sink that cannot be
// initialized is logged and left out.
func buildSinks(ctx context.Context, cfg config.Config, log logrus.FieldLogger) []pipeline.Exporter {
	var sinks []pipeline.Exporter

	if cfg.AWS.S3Enabled || cfg.Telemetry.CloudWatchEnabled {
		awsOpts := cloud.Options{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			S3Endpoint:      cfg.AWS.S3Endpoint,
			S3PathStyle:     cfg.AWS.S3PathStyle,
		}
		awsCfg, err := cloud.LoadConfig(ctx, awsOpts)
		if err != nil {
			log.Warnf("AWS sinks disabled: %v", err)
		} else {
			if cfg.AWS.S3Enabled {
				sinks = append(sinks, export.NewS3Sink(cloud.NewS3Client(awsCfg, awsOpts),
					cfg.AWS.S3Bucket, cfg.AWS.S3Prefix, cfg.AWS.ParquetCompression, log))
			}
			if cfg.Telemetry.CloudWatchEnabled {
				sinks = append(sinks, metrics.NewCloudWatchSink(cloud.NewCloudWatchClient(awsCfg),
					cfg.Telemetry.CloudWatchNamespace, log))
			}
		}
	}

	if cfg.Webhook.URL != "" {
		sinks = append(sinks, export.NewWebhookSink(cfg.Webhook.URL, cfg.Webhook.APIKey, cfg.Webhook.Timeout))
	}

	return sinks
}
