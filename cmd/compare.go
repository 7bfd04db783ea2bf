package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mushkilali/certifiable-bench/report"
)

var compareCmd = &cobra.Command{
	Use:   "compare <result-a.json> <result-b.json>",
	Short: "Compare two previously written JSON results",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		a, err := report.LoadJSON(args[0])
		if err != nil {
			logrus.Fatalf("load %s: %v", args[0], err)
		}
		b, err := report.LoadJSON(args[1])
		if err != nil {
			logrus.Fatalf("load %s: %v", args[1], err)
		}
		printComparison(report.Compare(a, b))
	},
}
