package commands

import (
	"fmt"
	"time"

	"hnsaved/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var showFlags struct {
	file  string
	limit int
	runs  bool
}

func init() {
	showCmd.Flags().StringVarP(&showFlags.file, "file", "f", "", "Archive to read. (default: $XDG_DATA_HOME/"+dataFileName+")")
	showCmd.Flags().IntVarP(&showFlags.limit, "limit", "n", 20, "Number of stories to print, 0 prints all of them.")
	showCmd.Flags().BoolVar(&showFlags.runs, "runs", false, "Print the history of runs instead (databases only).")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the archived stories, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path, err := dataFile(showFlags.file)
		if err != nil {
			return err
		}
		st, err := store.Open(ctx, path, cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer st.Close()

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)

		if showFlags.runs {
			sqlStore, ok := st.(store.SQLStore)
			if !ok {
				return fmt.Errorf("%s does not keep a history of runs", path)
			}
			runs, err := sqlStore.Runs(ctx)
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Run", "Started", "Took", "Fetched", "Added"})
			for _, run := range runs {
				t.AppendRow(table.Row{
					run.Id,
					run.StartedAt.Format(time.RFC3339),
					run.FinishedAt.Sub(run.StartedAt).String(),
					run.Fetched,
					run.Added,
				})
			}
			t.Render()
			return nil
		}

		dataset, err := st.Load(ctx)
		if err != nil {
			return err
		}
		ids := dataset.SortedIds()
		if showFlags.limit > 0 && len(ids) > showFlags.limit {
			ids = ids[:showFlags.limit]
		}

		t.AppendHeader(table.Row{"Id", "Submitted", "Submitter", "Title"})
		for _, id := range ids {
			record := dataset[id]
			t.AppendRow(table.Row{id, record.SubmittedAt.String(), record.Submitter, record.Title})
		}
		t.AppendFooter(table.Row{"", "", "Total", len(dataset)})
		t.Render()
		return nil
	},
}
