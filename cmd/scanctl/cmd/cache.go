package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCacheCmd manages the persisted study cache
func NewCacheCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the study cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached study list",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.loader.ClearCache(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})
	return cmd
}
