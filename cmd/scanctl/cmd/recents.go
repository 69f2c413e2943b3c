package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewRecentsCmd lists recent locations
func NewRecentsCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recents",
		Short: "List recently opened studies",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			list, err := e.loader.RecentLocations(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recent locations")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tPATIENT\tDATE\tMODALITIES\tIMAGES\tLOCATION\tOPENED")
			for i, loc := range list {
				where := loc.FolderPath
				if where == "" {
					where = loc.SourceKey
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
					i, loc.PatientName, loc.StudyDate, strings.Join(loc.Modalities, ","),
					loc.InstanceCount, where, loc.LastOpened.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget all recent locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			return e.loader.ClearRecentLocations(ctx)
		},
	})
	return cmd
}
