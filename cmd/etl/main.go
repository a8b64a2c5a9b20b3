package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/charterops/internal/config"
	"github.com/JonMunkholm/charterops/internal/etl"
	"github.com/JonMunkholm/charterops/internal/logging"
)

const (
	exitFailure    = 1
	exitUsage      = 2
	exitRowsFailed = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	code := exitFailure
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	if code != exitRowsFailed {
		fmt.Fprintln(os.Stderr, errorText(err))
	}
	stop()
	os.Exit(code)
}

// errorText prefers the mapped user message and keeps the technical error
// for the log trail.
func errorText(err error) string {
	if etl.IsUserFacing(err) {
		return fmt.Sprintf("error: %s\ndetail: %v", etl.FormatUserError(err), err)
	}
	return fmt.Sprintf("error: %v", err)
}

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:           "etl",
		Short:         "Import booking spreadsheets into charter leads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err == nil {
				slog.Debug("loaded .env file")
			}
			loaded, err := config.Load()
			if err != nil {
				return withCode(exitUsage, err)
			}
			// Logs go to stderr so stdout stays machine-readable.
			slog.SetDefault(logging.New(os.Stderr, loaded.Logging.Level, loaded.Logging.Format))
			*cfg = *loaded
			return nil
		},
	}

	root.AddCommand(newImportCmd(cfg), newNextIDCmd(cfg))
	return root
}
