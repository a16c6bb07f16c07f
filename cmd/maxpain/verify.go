package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yourorg/btc-maxpain/internal/export"
	"github.com/yourorg/btc-maxpain/internal/security"
)

// newVerifyCmd checks the detached signature against the JSON report on disk.
func newVerifyCmd(opts *cliOptions) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:          "verify",
		Short:        "Verify the signature of the last JSON report",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.Output.Dir = outputDir
			}

			payload, err := os.ReadFile(cfg.JSONPath())
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}
			env, err := export.ReadSignature(cfg.SignaturePath())
			if err != nil {
				return err
			}
			if err := security.Verify(payload, env); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: signature valid (signer %s, signed %s)\n",
				cfg.JSONPath(), env.Address, env.SignedAt)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory holding the report files")
	return cmd
}
