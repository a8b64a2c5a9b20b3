package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/charterops/internal/app"
	"github.com/JonMunkholm/charterops/internal/config"
	"github.com/JonMunkholm/charterops/internal/etl"
)

type importOptions struct {
	source string
	file   string
	dryRun bool
}

func newImportCmd(cfg *config.Config) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a DEFAULT or MASTER spreadsheet",
		Example: "  etl import --source default --file bookings.csv\n" +
			"  etl import --source master --file operations.tsv --dry-run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "Spreadsheet schema: default or master (required)")
	cmd.Flags().StringVar(&opts.file, "file", "", "CSV/TSV file to import, - for stdin (required)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Parse and report without writing")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, cfg *config.Config, opts importOptions) error {
	source, err := etl.ParseSource(opts.source)
	if err != nil {
		return withCode(exitUsage, err)
	}

	text, err := readFile(cmd.InOrStdin(), opts.file, cfg.Import.MaxFileSize)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if strings.TrimSpace(text) == "" {
		return withCode(exitUsage, etl.ErrEmptyInput)
	}

	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg, slog.Default(), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.Module.Import(ctx, source, text, opts.dryRun)
	if summary != nil && (summary.Rows > 0 || err == nil) {
		if werr := writeSummary(cmd.OutOrStdout(), summary); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return withCode(exitRowsFailed, fmt.Errorf("%d of %d rows failed", summary.Failed, summary.Rows))
	}
	return nil
}

func readFile(stdin io.Reader, path string, maxBytes int64) (string, error) {
	if strings.TrimSpace(path) == "-" {
		return etl.ReadInput(stdin, maxBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return etl.ReadInput(f, maxBytes)
}

func writeSummary(w io.Writer, summary *etl.ImportSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
