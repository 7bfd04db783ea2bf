// Package report serialises a Runner Result to JSON and CSV, persists
// and loads golden reference files, and computes cross-platform
// comparisons. It is a pure collaborator: no core measurement logic
// lives here, only deterministic formatting of values the runner already
// computed.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mushkilali/certifiable-bench/bench/fault"
	"github.com/mushkilali/certifiable-bench/bench/runner"
	"github.com/mushkilali/certifiable-bench/bench/verify"
)

// reportVersion is stamped into every emitted JSON document.
const reportVersion = "1.0"

// jsonDoc mirrors the fixed field order the JSON persistence contract
// requires. Field order here is load-bearing: encoding/json preserves
// struct field order when marshaling, which is how byte-identical output
// for identical Results is achieved without hand-rolled encoding.
type jsonDoc struct {
	Version      string          `json:"version"`
	Platform     string          `json:"platform"`
	CPUModel     string          `json:"cpu_model"`
	CPUFreqMHz   uint64          `json:"cpu_freq_mhz"`
	Config       jsonConfig      `json:"config"`
	Latency      jsonLatency     `json:"latency"`
	Throughput   jsonThroughput  `json:"throughput"`
	Verification jsonVerify      `json:"verification"`
	Environment  jsonEnvironment `json:"environment"`
	Histogram    jsonHistogram   `json:"histogram"`
	Faults       jsonFaults      `json:"faults"`

	BenchmarkStartNS    uint64 `json:"benchmark_start_ns"`
	BenchmarkEndNS      uint64 `json:"benchmark_end_ns"`
	BenchmarkDurationNS uint64 `json:"benchmark_duration_ns"`
	TimestampUnix       uint64 `json:"timestamp_unix"`
}

type jsonConfig struct {
	WarmupIterations  uint32 `json:"warmup_iterations"`
	MeasureIterations uint32 `json:"measure_iterations"`
	BatchSize         uint32 `json:"batch_size"`
}

type jsonLatency struct {
	MinNS          uint64 `json:"min_ns"`
	MaxNS          uint64 `json:"max_ns"`
	MeanNS         uint64 `json:"mean_ns"`
	MedianNS       uint64 `json:"median_ns"`
	P95NS          uint64 `json:"p95_ns"`
	P99NS          uint64 `json:"p99_ns"`
	StddevNS       uint64 `json:"stddev_ns"`
	VarianceNS2    uint64 `json:"variance_ns2"`
	SampleCount    uint32 `json:"sample_count"`
	OutlierCount   uint32 `json:"outlier_count"`
	WcetObservedNS uint64 `json:"wcet_observed_ns"`
	WcetBoundNS    uint64 `json:"wcet_bound_ns"`
}

type jsonThroughput struct {
	InferencesPerSec uint64 `json:"inferences_per_sec"`
	SamplesPerSec    uint64 `json:"samples_per_sec"`
	BytesPerSec      uint64 `json:"bytes_per_sec"`
	BatchSize        uint32 `json:"batch_size"`
}

type jsonVerify struct {
	DeterminismVerified  bool   `json:"determinism_verified"`
	VerificationFailures uint32 `json:"verification_failures"`
	OutputHash           string `json:"output_hash"`
	ResultHash           string `json:"result_hash"`
}

type jsonEnvironment struct {
	Stable        bool   `json:"stable"`
	StartFreqHz   uint64 `json:"start_freq_hz"`
	EndFreqHz     uint64 `json:"end_freq_hz"`
	MinFreqHz     uint64 `json:"min_freq_hz"`
	MaxFreqHz     uint64 `json:"max_freq_hz"`
	StartTempMC   int32  `json:"start_temp_mC"`
	EndTempMC     int32  `json:"end_temp_mC"`
	MinTempMC     int32  `json:"min_temp_mC"`
	MaxTempMC     int32  `json:"max_temp_mC"`
	ThrottleEvents uint32 `json:"throttle_events"`
}

type jsonHistogram struct {
	Valid          bool             `json:"valid"`
	RangeMinNS     uint64           `json:"range_min_ns"`
	RangeMaxNS     uint64           `json:"range_max_ns"`
	BinWidthNS     uint64           `json:"bin_width_ns"`
	NumBins        uint32           `json:"num_bins"`
	OverflowCount  uint32           `json:"overflow_count"`
	UnderflowCount uint32           `json:"underflow_count"`
	Bins           []jsonHistogramBin `json:"bins"`
}

type jsonHistogramBin struct {
	MinNS uint64 `json:"min_ns"`
	MaxNS uint64 `json:"max_ns"`
	Count uint32 `json:"count"`
}

type jsonFaults struct {
	Overflow     bool `json:"overflow"`
	Underflow    bool `json:"underflow"`
	DivZero      bool `json:"div_zero"`
	TimerError   bool `json:"timer_error"`
	VerifyFail   bool `json:"verify_fail"`
	ThermalDrift bool `json:"thermal_drift"`
}

func toJSONDoc(result runner.Result) jsonDoc {
	doc := jsonDoc{
		Version:    reportVersion,
		Platform:   result.Platform,
		CPUModel:   result.CPUModel,
		CPUFreqMHz: result.CPUFreqMHz,
		Config: jsonConfig{
			WarmupIterations:  result.ConfigWarmupIterations,
			MeasureIterations: result.ConfigMeasureIterations,
			BatchSize:         result.ConfigBatchSize,
		},
		Latency: jsonLatency{
			MinNS:          result.Latency.MinNS,
			MaxNS:          result.Latency.MaxNS,
			MeanNS:         result.Latency.MeanNS,
			MedianNS:       result.Latency.MedianNS,
			P95NS:          result.Latency.P95NS,
			P99NS:          result.Latency.P99NS,
			StddevNS:       result.Latency.StddevNS,
			VarianceNS2:    result.Latency.VarianceNS2,
			SampleCount:    result.Latency.SampleCount,
			OutlierCount:   result.Latency.OutlierCount,
			WcetObservedNS: result.Latency.WcetObservedNS,
			WcetBoundNS:    result.Latency.WcetBoundNS,
		},
		Throughput: jsonThroughput{
			InferencesPerSec: result.Throughput.InferencesPerSec,
			SamplesPerSec:    result.Throughput.SamplesPerSec,
			BytesPerSec:      result.Throughput.BytesPerSec,
			BatchSize:        result.Throughput.BatchSize,
		},
		Verification: jsonVerify{
			DeterminismVerified:  result.DeterminismVerified,
			VerificationFailures: result.VerificationFailures,
			OutputHash:           verify.ToHex(result.OutputHash),
			ResultHash:           verify.ToHex(result.ResultHash),
		},
		Environment: jsonEnvironment{
			Stable:         result.EnvStable,
			StartFreqHz:    result.EnvStats.Start.CPUFreqHz,
			EndFreqHz:      result.EnvStats.End.CPUFreqHz,
			MinFreqHz:      result.EnvStats.MinFreqHz,
			MaxFreqHz:      result.EnvStats.MaxFreqHz,
			StartTempMC:    result.EnvStats.Start.CPUTempMC,
			EndTempMC:      result.EnvStats.End.CPUTempMC,
			MinTempMC:      result.EnvStats.MinTempMC,
			MaxTempMC:      result.EnvStats.MaxTempMC,
			ThrottleEvents: result.EnvStats.TotalThrottleEvents,
		},
		Faults: jsonFaults{
			Overflow:     result.Faults.Has(fault.Overflow),
			Underflow:    result.Faults.Has(fault.Underflow),
			DivZero:      result.Faults.Has(fault.DivZero),
			TimerError:   result.Faults.Has(fault.TimerError),
			VerifyFail:   result.Faults.Has(fault.VerifyFail),
			ThermalDrift: result.Faults.Has(fault.ThermalDrift),
		},
		BenchmarkStartNS:    result.BenchmarkStartNS,
		BenchmarkEndNS:      result.BenchmarkEndNS,
		BenchmarkDurationNS: result.BenchmarkDurationNS,
		TimestampUnix:       result.TimestampUnix,
	}

	if result.Histogram != nil {
		doc.Histogram.Valid = true
		doc.Histogram.RangeMinNS = result.Histogram.RangeMinNS
		doc.Histogram.RangeMaxNS = result.Histogram.RangeMaxNS
		doc.Histogram.BinWidthNS = result.Histogram.BinWidthNS
		doc.Histogram.NumBins = result.Histogram.NumBins
		doc.Histogram.OverflowCount = result.Histogram.OverflowCount
		doc.Histogram.UnderflowCount = result.Histogram.UnderflowCount
		doc.Histogram.Bins = make([]jsonHistogramBin, len(result.Histogram.Bins))
		for i, b := range result.Histogram.Bins {
			doc.Histogram.Bins[i] = jsonHistogramBin{MinNS: b.MinNS, MaxNS: b.MaxNS, Count: b.Count}
		}
	}

	return doc
}

// WriteJSON writes result to path as UTF-8 JSON with fixed key order and
// 2-space indentation. Identical Result values produce byte-identical
// output.
func WriteJSON(path string, result runner.Result) error {
	doc := toJSONDoc(result)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write json %q: %w", path, err)
	}
	return nil
}

// MarshalJSON returns the same bytes WriteJSON would write, without
// touching the filesystem.
func MarshalJSON(result runner.Result) ([]byte, error) {
	doc := toJSONDoc(result)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: marshal json: %w", err)
	}
	return data, nil
}

// LoadedResult is the subset of a Result's fields recoverable from a
// persisted JSON report — sufficient for comparison, not a full
// reconstruction of runner.Result (histogram bin slices, hardware
// counters, and other in-memory-only fields are not round-tripped).
type LoadedResult struct {
	Platform             string
	CPUModel             string
	Latency              jsonLatency
	Throughput           jsonThroughput
	DeterminismVerified  bool
	VerificationFailures uint32
	OutputHash           verify.Hash
	ResultHash           verify.Hash
	TimestampUnix        uint64
}

// LoadJSON reads and parses a report written by WriteJSON.
func LoadJSON(path string) (LoadedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedResult{}, fmt.Errorf("report: read json %q: %w", path, err)
	}
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return LoadedResult{}, fmt.Errorf("report: parse json %q: %w", path, err)
	}

	outputHash, err := verify.FromHex(doc.Verification.OutputHash)
	if err != nil {
		return LoadedResult{}, fmt.Errorf("report: parse json %q: output_hash: %w", path, err)
	}
	resultHash, err := verify.FromHex(doc.Verification.ResultHash)
	if err != nil {
		return LoadedResult{}, fmt.Errorf("report: parse json %q: result_hash: %w", path, err)
	}

	return LoadedResult{
		Platform:             doc.Platform,
		CPUModel:             doc.CPUModel,
		Latency:              doc.Latency,
		Throughput:           doc.Throughput,
		DeterminismVerified:  doc.Verification.DeterminismVerified,
		VerificationFailures: doc.Verification.VerificationFailures,
		OutputHash:           outputHash,
		ResultHash:           resultHash,
		TimestampUnix:        doc.TimestampUnix,
	}, nil
}

// WriteCSV writes a single header row and a single data row summarising
// result. The cpu_model field is quoted because it may contain commas;
// encoding/csv handles that quoting.
func WriteCSV(path string, result runner.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create csv %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"platform", "cpu_model", "min_ns", "max_ns", "mean_ns", "median_ns",
		"p95_ns", "p99_ns", "stddev_ns", "inferences_per_sec",
		"determinism_verified", "output_hash", "timestamp_unix",
	}
	row := []string{
		result.Platform,
		result.CPUModel,
		fmt.Sprintf("%d", result.Latency.MinNS),
		fmt.Sprintf("%d", result.Latency.MaxNS),
		fmt.Sprintf("%d", result.Latency.MeanNS),
		fmt.Sprintf("%d", result.Latency.MedianNS),
		fmt.Sprintf("%d", result.Latency.P95NS),
		fmt.Sprintf("%d", result.Latency.P99NS),
		fmt.Sprintf("%d", result.Latency.StddevNS),
		fmt.Sprintf("%d", result.Throughput.InferencesPerSec),
		fmt.Sprintf("%t", result.DeterminismVerified),
		verify.ToHex(result.OutputHash),
		fmt.Sprintf("%d", result.TimestampUnix),
	}

	if err := w.Write(header); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("report: write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: flush csv %q: %w", path, err)
	}
	return nil
}

const goldenFormat = "cb_golden_ref"

type goldenDoc struct {
	Version     string `json:"version"`
	Format      string `json:"format"`
	OutputHash  string `json:"output_hash"`
	SampleCount uint32 `json:"sample_count"`
	OutputSize  uint32 `json:"output_size"`
	Platform    string `json:"platform"`
}

// SaveGolden persists ref as a golden reference file.
func SaveGolden(path string, ref verify.GoldenRef) error {
	doc := goldenDoc{
		Version:     reportVersion,
		Format:      goldenFormat,
		OutputHash:  verify.ToHex(ref.OutputHash),
		SampleCount: ref.SampleCount,
		OutputSize:  ref.OutputSize,
		Platform:    ref.Platform,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal golden: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write golden %q: %w", path, err)
	}
	return nil
}

// LoadGolden reads a golden reference file written by SaveGolden.
func LoadGolden(path string) (verify.GoldenRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return verify.GoldenRef{}, fmt.Errorf("report: read golden %q: %w", path, err)
	}
	var doc goldenDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return verify.GoldenRef{}, fmt.Errorf("report: parse golden %q: %w", path, err)
	}
	hash, err := verify.FromHex(doc.OutputHash)
	if err != nil {
		return verify.GoldenRef{}, fmt.Errorf("report: parse golden %q: output_hash: %w", path, err)
	}
	return verify.GoldenRef{
		OutputHash:  hash,
		SampleCount: doc.SampleCount,
		OutputSize:  doc.OutputSize,
		Platform:    doc.Platform,
	}, nil
}

// Comparison is the cross-platform speed comparison of two Results.
// Performance fields are only meaningful when Comparable is true.
type Comparison struct {
	PlatformA           string
	PlatformB           string
	OutputsIdentical    bool
	Comparable          bool
	LatencyDiffNS       int64
	LatencyRatioQ16     uint64
	ThroughputDiff      int64
	ThroughputRatioQ16  uint64
	WcetDiffNS          int64
	WcetRatioQ16        uint64
}

// Compare derives a Comparison from two loaded results. Results are only
// comparable when their output hashes match bit-for-bit; when they
// don't, every performance field is zeroed and callers must not
// interpret them as meaningful.
func Compare(a, b LoadedResult) Comparison {
	identical := a.OutputHash == b.OutputHash
	cmp := Comparison{
		PlatformA:        a.Platform,
		PlatformB:        b.Platform,
		OutputsIdentical: identical,
		Comparable:       identical,
	}
	if !identical {
		return cmp
	}

	cmp.LatencyDiffNS = int64(b.Latency.P99NS) - int64(a.Latency.P99NS)
	cmp.LatencyRatioQ16 = ratioQ16(b.Latency.P99NS, a.Latency.P99NS)

	cmp.ThroughputDiff = int64(b.Throughput.InferencesPerSec) - int64(a.Throughput.InferencesPerSec)
	cmp.ThroughputRatioQ16 = ratioQ16(b.Throughput.InferencesPerSec, a.Throughput.InferencesPerSec)

	cmp.WcetDiffNS = int64(b.Latency.WcetBoundNS) - int64(a.Latency.WcetBoundNS)
	cmp.WcetRatioQ16 = ratioQ16(b.Latency.WcetBoundNS, a.Latency.WcetBoundNS)

	return cmp
}

// ratioQ16 computes (numerator << 16) / denominator in Q16.16 fixed
// point, returning 0 on divide-by-zero rather than panicking.
func ratioQ16(numerator, denominator uint64) uint64 {
	if denominator == 0 {
		return 0
	}
	return (numerator << 16) / denominator
}
