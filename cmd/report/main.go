package main

import (
	"github.com/spf13/cobra"

	"github.com/PatchLens/cs-entry-lens/internal/logging"
	"github.com/PatchLens/cs-entry-lens/lens"
)

func main() {
	if err := newReportCommand().Execute(); err != nil {
		logging.Default().Fatalf("%s%v", lens.ErrorLogPrefix, err)
	}
}

func newReportCommand() *cobra.Command {
	var reportJsonFile, reportChartFile string
	rootCmd := &cobra.Command{
		Use:           "report",
		Short:         "Render the overview chart of a saved entrylens run report",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := lens.ReadReportJSON(reportJsonFile)
			if err != nil {
				return err
			} else if err = lens.WriteReportChart(reportChartFile, report); err != nil {
				return err
			}
			logging.Default().Info("Report file wrote", logging.FieldOutput, reportChartFile)
			return nil
		},
	}
	rootCmd.Flags().StringVar(&reportJsonFile, "json", "entrylens.json", "Run report to render")
	rootCmd.Flags().StringVar(&reportChartFile, "chart", "entrylens.png", "File to output the overview chart image")
	return rootCmd
}
