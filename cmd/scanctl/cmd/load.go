package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otcheredev/dicom-study-loader/internal/services"
	"github.com/otcheredev/dicom-study-loader/internal/source"
)

// NewLoadCmd loads a folder and prints its studies
func NewLoadCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <dir>",
		Short: "Load and organize the DICOM files below a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noCache, _ := cmd.Flags().GetBool("no-cache")
			study, _ := cmd.Flags().GetString("study")
			format, _ := cmd.Flags().GetString("format")

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.loader.LoadFromDirectory(ctx, source.PathRef{Path: dir}, services.LoadOptions{
				UseCache:         !noCache,
				StudyInstanceUID: study,
			})
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			default:
				return printResult(cmd.OutOrStdout(), res)
			}
		},
	}
	pf := cmd.Flags()
	pf.Bool("no-cache", false, "Ignore cached results and re-read every file")
	pf.String("study", "", "StudyInstanceUID to select")
	pf.StringP("format", "f", "text", "output format (text|json)")
	return cmd
}

func printResult(out io.Writer, res *services.LoadResult) error {
	origin := "files"
	if res.FromCache {
		origin = "cache"
	}
	fmt.Fprintf(out, "%d studies from %s (%d files read, %d parsed, %d skipped)\n",
		len(res.Studies), origin, res.FilesRead, res.Stats.Parsed,
		res.Stats.NotDICOM+res.Stats.NoPixelData+res.Stats.Failed)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, st := range res.Studies {
		marker := " "
		if res.Selected != nil && res.Selected.StudyInstanceUID == st.StudyInstanceUID {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n", marker, st.StudyInstanceUID, st.PatientName, st.StudyDate, st.StudyDescription)
		for _, se := range st.Series {
			fmt.Fprintf(tw, "    #%d %s\t%s\t%d images\t%s\n",
				se.SeriesNumber, se.Modality, se.SeriesDescription, len(se.Instances), se.SeriesInstanceUID)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(out, "warning:", strings.TrimSpace(w))
	}
	return nil
}
