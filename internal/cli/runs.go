package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/store"
)

// runsCommand creates the runs command, which lists the run history.
func (c *CLI) runsCommand() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the run history",
		Long: `List recent runs from the run history, newest first.

The history lives in MongoDB; set store.mongo_uri in the settings file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runs, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			if runs == nil {
				printWarning("No run history configured")
				printNextStep("Set a MongoDB URI", "[store] mongo_uri = \"mongodb://localhost:27017\"")
				return nil
			}
			defer runs.Close(ctx)

			records, err := runs.List(ctx, limit)
			if err != nil {
				return errors.Wrap(errors.ErrCodeStore, err, "list runs")
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			printRuns(records)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "maximum number of runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func printRuns(records []store.Record) {
	if len(records) == 0 {
		printInfo("No runs yet")
		return
	}
	fmt.Println(StyleTitle.Render(fmt.Sprintf("%d runs", len(records))))
	for _, r := range records {
		fmt.Println(runRow(r))
	}
}

var (
	colTime   = lipgloss.NewStyle().Foreground(colorGray).Width(17)
	colSource = lipgloss.NewStyle().Foreground(colorDim).Width(5)
	colPair   = lipgloss.NewStyle().Foreground(colorWhite).Width(28)
	colMode   = lipgloss.NewStyle().Foreground(colorCyan).Width(10)
	colTook   = lipgloss.NewStyle().Foreground(colorGray).Width(9).Align(lipgloss.Right)
)

// runRow formats one history record as a table row.
func runRow(r store.Record) string {
	took := (time.Duration(r.DurationMS) * time.Millisecond).String()
	return lipgloss.JoinHorizontal(lipgloss.Top,
		colTime.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")),
		colSource.Render(r.Source),
		colPair.Render(r.Pair),
		colMode.Render(r.Mode),
		colTook.Render(took),
		"  ",
		statusCell(r.Error != "", r.CacheHit),
	)
}
