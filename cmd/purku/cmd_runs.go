package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/yairfalse/purku/report"
)

var (
	runsLimit      int
	runsLedgerPath string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show past destruction runs",
	Long: `List runs recorded in the local ledger, newest first. The ledger
survives the accounts it describes; it is the answer to "what did we
actually delete back in August".`,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "Number of runs to show")
	runsCmd.Flags().StringVar(&runsLedgerPath, "ledger", ".purku/runs.db", "Run-history ledger file")
}

func runRuns(cmd *cobra.Command, args []string) error {
	ledger, err := report.OpenLedger(runsLedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.List(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		pterm.Info.Println("No recorded runs.")
		return nil
	}

	rows := pterm.TableData{{"Started", "Status", "Accounts", "Destroyed", "Deferred", "Failed", "Est. savings"}}
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.RFC3339),
			string(r.Status),
			strings.Join(r.Accounts, ","),
			fmt.Sprintf("%d", r.Totals.Destroyed),
			fmt.Sprintf("%d", r.Totals.LazyDeferred),
			fmt.Sprintf("%d", r.Totals.Failed),
			fmt.Sprintf("$%.2f", r.EstimatedMonthlySavings),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
