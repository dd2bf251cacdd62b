package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexsphere/datauploader/internal/metric"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the built-in metric kinds and their columns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		for _, k := range metric.Kinds() {
			s, err := metric.SchemaFor(k)
			if err != nil {
				return err
			}
			cols := make([]string, len(s.Columns))
			for i, c := range s.Columns {
				cols[i] = c + ":" + string(s.Dtypes[c])
			}
			fmt.Fprintf(out, "%-13s %s\n", k, strings.Join(cols, " "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
