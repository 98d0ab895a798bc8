package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"teamreg/internal/platform/config"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every registration as CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if exportOut == "" {
			return runExport(cmd.Context(), cfg, log, cmd.OutOrStdout())
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		if err := runExport(cmd.Context(), cfg, log, f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

func runExport(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.Error("export cleanup failed", "error", err)
		}
	}()
	return a.service.WriteExport(ctx, w)
}
