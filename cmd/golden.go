package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mushkilali/certifiable-bench/bench/verify"
	"github.com/mushkilali/certifiable-bench/report"
)

// outputSize recovers the per-sample output byte span from the
// persisted throughput numbers (bytes_per_sec / samples_per_sec),
// since a JSON report carries no dedicated output-size field. Returns
// 0 if throughput wasn't recorded (samples_per_sec == 0).
func outputSize(bytesPerSec, samplesPerSec uint64) uint32 {
	if samplesPerSec == 0 {
		return 0
	}
	return uint32(bytesPerSec / samplesPerSec)
}

var (
	flagGoldenSave   string
	flagGoldenVerify string
)

var goldenCmd = &cobra.Command{
	Use:   "golden <result.json>",
	Short: "Save or verify a golden reference derived from a JSON result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		result, err := report.LoadJSON(args[0])
		if err != nil {
			logrus.Fatalf("load %s: %v", args[0], err)
		}

		switch {
		case flagGoldenSave != "":
			ref := verify.GoldenRef{
				OutputHash:  result.OutputHash,
				SampleCount: result.Latency.SampleCount,
				OutputSize:  outputSize(result.Throughput.BytesPerSec, result.Throughput.SamplesPerSec),
				Platform:    result.Platform,
			}
			if err := report.SaveGolden(flagGoldenSave, ref); err != nil {
				logrus.Fatalf("save golden: %v", err)
			}
			logrus.Infof("golden reference saved to %s", flagGoldenSave)

		case flagGoldenVerify != "":
			ref, err := report.LoadGolden(flagGoldenVerify)
			if err != nil {
				logrus.Fatalf("load golden: %v", err)
			}
			if verify.GoldenVerify(result.OutputHash, ref) {
				logrus.Info("golden verification: PASS")
			} else {
				logrus.Fatal("golden verification: FAIL (output hash mismatch)")
			}

		default:
			logrus.Fatal("specify --save PATH or --verify PATH")
		}
	},
}

func init() {
	goldenCmd.Flags().StringVar(&flagGoldenSave, "save", "", "save a golden reference derived from the result to PATH")
	goldenCmd.Flags().StringVar(&flagGoldenVerify, "verify", "", "verify the result against the golden reference at PATH")
}
