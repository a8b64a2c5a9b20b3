package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/charterops/internal/app"
	"github.com/JonMunkholm/charterops/internal/config"
	"github.com/JonMunkholm/charterops/internal/etl"
	"github.com/JonMunkholm/charterops/internal/store"
)

func newNextIDCmd(cfg *config.Config) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "next-id",
		Short: "Print the id the next inserted lead would get",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prefix == "" {
				prefix = cfg.Import.IDPrefix
			}

			ctx := cmd.Context()
			a, err := app.Open(ctx, cfg, slog.Default(), nil)
			if err != nil {
				return err
			}
			defer a.Close()

			lister, ok := a.Store.(store.IDLister)
			if !ok {
				return errors.New("store backend cannot list lead ids")
			}
			ids, err := lister.ListIDs(ctx, prefix)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), etl.NextID(prefix, ids))
			return err
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Id prefix (default: IMPORT_ID_PREFIX)")
	return cmd
}
