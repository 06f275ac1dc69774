package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var validateCrossAccount bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-scan and report anything still standing",
	Long: `Run the scanners again after a destroy and list every matching
resource still present. Buckets draining through the lazy-delete
lifecycle are expected here for up to a day; anything else is a
genuine leftover.`,
	Example: `  purku validate
  purku validate --cross-account`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateCrossAccount, "cross-account", false, "Include member accounts via role assumption")
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	cfg.Run.DryRun = true
	cfg.Run.CrossAccount = cfg.Run.CrossAccount || validateCrossAccount

	o, credBroker, err := buildOrchestrator(cmd.Context(), cfg, nil, logger)
	if err != nil {
		return err
	}

	residuals, err := o.Validate(cmd.Context(), credBroker.CallerAccount())
	if err != nil {
		return err
	}
	if len(residuals) == 0 {
		pterm.Success.Println("Clean: nothing matching the patterns remains.")
		return nil
	}

	rows := pterm.TableData{{"Family", "Resource", "Note"}}
	for _, r := range residuals {
		rows = append(rows, []string{string(r.Family), r.ID, r.Reason})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()

	pterm.Warning.Printfln("%d resources still present", len(residuals))
	return nil
}
