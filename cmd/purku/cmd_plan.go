package main

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/yairfalse/purku/report"
	"github.com/yairfalse/purku/types"
)

var (
	planCrossAccount bool
	planTfstate      bool
	planRegions      []string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a destroy run would remove",
	Long: `Scan every configured account and print the destruction manifest:
which resources match the project patterns, in which account and
region, and a rough monthly cost estimate of what removal saves.

Plan never mutates anything.`,
	Example: `  purku plan
  purku plan --cross-account
  purku plan --tfstate`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().BoolVar(&planCrossAccount, "cross-account", false, "Include member accounts via role assumption")
	planCmd.Flags().BoolVar(&planTfstate, "tfstate", false, "Include terraform state buckets and lock tables")
	planCmd.Flags().StringSliceVar(&planRegions, "region", nil, "Override configured regions")
}

func runPlan(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	cfg.Run.DryRun = true
	cfg.Run.CrossAccount = cfg.Run.CrossAccount || planCrossAccount
	cfg.Run.TfstateCleanup = cfg.Run.TfstateCleanup || planTfstate
	if len(planRegions) > 0 {
		cfg.Regions = planRegions
	}

	o, credBroker, err := buildOrchestrator(cmd.Context(), cfg, nil, logger)
	if err != nil {
		return err
	}

	manifest, err := o.Plan(cmd.Context(), credBroker.CallerAccount())
	if err != nil {
		return err
	}
	if len(manifest) == 0 {
		pterm.Success.Println("Nothing matches the configured patterns.")
		return nil
	}

	printManifest(manifest)
	return nil
}

func printManifest(manifest []types.Resource) {
	rows := pterm.TableData{{"Family", "Resource", "Account", "Region"}}
	for _, r := range manifest {
		rows = append(rows, []string{string(r.Family), r.ID, r.AccountID, r.Region})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	byFamily := report.SavingsByFamily(manifest)
	total := report.EstimateMonthlySavings(manifest)

	families := make([]string, 0, len(byFamily))
	for family := range byFamily {
		families = append(families, string(family))
	}
	sort.Strings(families)

	fmt.Println()
	savings := pterm.TableData{{"Family", "Est. monthly savings"}}
	for _, family := range families {
		amount := byFamily[types.Family(family)]
		if amount == 0 {
			continue
		}
		savings = append(savings, []string{family, fmt.Sprintf("$%.2f", amount)})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(savings).Render()

	pterm.Info.Printfln("%d resources, roughly %s/month once gone",
		len(manifest), pterm.FgGreen.Sprintf("$%.2f", total))
}
