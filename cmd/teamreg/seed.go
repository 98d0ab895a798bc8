package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"teamreg/internal/platform/config"
	"teamreg/internal/registration/validation"
)

//go:embed seed.yaml
var defaultSeed []byte

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register demo teams through the normal validation workflow",
	RunE: func(cmd *cobra.Command, _ []string) error {
		data := defaultSeed
		if seedFile != "" {
			b, err := os.ReadFile(seedFile)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			data = b
		}
		entries, err := parseSeed(data)
		if err != nil {
			return err
		}
		return runSeed(cmd.Context(), cfg, log, entries, cmd.OutOrStdout())
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "seed YAML (default: built-in demo teams)")
}

type seedDocument struct {
	Registrations []validation.RawSubmission `yaml:"registrations"`
}

func parseSeed(data []byte) ([]validation.RawSubmission, error) {
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(doc.Registrations) == 0 {
		return nil, fmt.Errorf("seed file has no registrations")
	}
	return doc.Registrations, nil
}

func runSeed(ctx context.Context, cfg *config.Config, logger *slog.Logger, entries []validation.RawSubmission, out io.Writer) error {
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.Error("seed cleanup failed", "error", err)
		}
	}()

	result, err := a.service.Seed(ctx, entries)
	if err != nil {
		return err
	}
	for _, f := range result.Invalid {
		fmt.Fprintf(out, "entry %d (%s) rejected:\n", f.Index+1, f.Email)
		for _, fe := range f.Errors {
			if fe.Field == "" {
				fmt.Fprintf(out, "  %s\n", fe.Message)
				continue
			}
			fmt.Fprintf(out, "  %s: %s\n", fe.Field, fe.Message)
		}
	}
	_, err = fmt.Fprintf(out, "created %d, skipped %d existing, rejected %d\n",
		result.Created, result.Skipped, len(result.Invalid))
	return err
}
