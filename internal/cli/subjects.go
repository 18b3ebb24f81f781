package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List the subjects that can be searched.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := InitConfigWithError()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tID\tCACHE KEY")
		for _, s := range cfg.Subjects() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.ID, s.ChapterCacheKey)
		}
		return w.Flush()
	},
}
