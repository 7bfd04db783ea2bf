package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mushkilali/certifiable-bench/bench/runner"
	"github.com/mushkilali/certifiable-bench/mockinfer"
	"github.com/mushkilali/certifiable-bench/report"
)

var (
	flagIterations int
	flagWarmup     int
	flagBatch      int
	flagOutput     string
	flagCSV        string
	flagCompare    string
	flagVerify     bool
	flagEnv        bool
	flagConfig     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark against the built-in mock inference function",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg := runner.DefaultConfig()
		if flagConfig != "" {
			fileCfg, err := loadConfigFile(flagConfig)
			if err != nil {
				logrus.Fatalf("load config: %v", err)
			}
			cfg = fileCfg
		}

		// Explicit flags override the config file, which overrides defaults.
		if cmd.Flags().Changed("warmup") {
			cfg.WarmupIterations = uint32(flagWarmup)
		}
		if cmd.Flags().Changed("iterations") {
			cfg.MeasureIterations = uint32(flagIterations)
		}
		if cmd.Flags().Changed("batch") {
			cfg.BatchSize = uint32(flagBatch)
		}
		if cmd.Flags().Changed("verify") {
			cfg.VerifyOutputs = flagVerify
		}
		if cmd.Flags().Changed("env") {
			cfg.MonitorEnvironment = flagEnv
		}

		logrus.Infof("running benchmark: warmup=%d measure=%d batch=%d", cfg.WarmupIterations, cfg.MeasureIterations, cfg.BatchSize)

		input := make([]byte, 64)
		output := make([]byte, 64)
		samples := make([]uint64, 0, cfg.MeasureIterations)

		// Platform and CPU model are left empty so Runner.Init records them
		// from the environment probe (environment.PlatformName/CPUModel).
		result, err := runner.RunBenchmark(cfg, mockinfer.ByteCopy, input, output, samples, "", "")
		if err != nil {
			logrus.Fatalf("benchmark failed: %v", err)
		}

		logrus.Infof("sample_count=%d p99_ns=%d inferences_per_sec=%d valid=%t",
			result.Latency.SampleCount, result.Latency.P99NS, result.Throughput.InferencesPerSec, result.IsValid())

		if flagOutput != "" {
			if err := report.WriteJSON(flagOutput, result); err != nil {
				logrus.Fatalf("write json report: %v", err)
			}
		}
		if flagCSV != "" {
			if err := report.WriteCSV(flagCSV, result); err != nil {
				logrus.Fatalf("write csv report: %v", err)
			}
		}
		if flagCompare != "" {
			previous, err := report.LoadJSON(flagCompare)
			if err != nil {
				logrus.Fatalf("load comparison baseline: %v", err)
			}
			current, err := report.LoadJSON(flagOutput)
			if err != nil {
				logrus.Fatalf("reload current result for comparison: %v", err)
			}
			printComparison(report.Compare(previous, current))
		}
	},
}

func printComparison(cmp report.Comparison) {
	if !cmp.Comparable {
		logrus.Warnf("results from %s and %s are not comparable: output hashes differ", cmp.PlatformA, cmp.PlatformB)
		return
	}
	logrus.Infof("%s -> %s: latency_diff_ns=%d latency_ratio_q16=%d throughput_diff=%d wcet_diff_ns=%d",
		cmp.PlatformA, cmp.PlatformB, cmp.LatencyDiffNS, cmp.LatencyRatioQ16, cmp.ThroughputDiff, cmp.WcetDiffNS)
}

func init() {
	runCmd.Flags().IntVar(&flagIterations, "iterations", 1000, "measurement iteration count")
	runCmd.Flags().IntVar(&flagWarmup, "warmup", 100, "warmup iteration count")
	runCmd.Flags().IntVar(&flagBatch, "batch", 1, "batch size")
	runCmd.Flags().StringVar(&flagOutput, "output", "", "JSON output path")
	runCmd.Flags().StringVar(&flagCSV, "csv", "", "CSV output path")
	runCmd.Flags().StringVar(&flagCompare, "compare", "", "path to a previous JSON result to compare against")
	runCmd.Flags().BoolVar(&flagVerify, "verify", true, "hash outputs during measurement")
	runCmd.Flags().BoolVar(&flagEnv, "env", true, "monitor CPU frequency/temperature/throttle state")
	runCmd.Flags().StringVar(&flagConfig, "config", "", "YAML config file to load as a base (overridden by explicit flags)")
}
