// Package runner drives the warmup-then-measure benchmark lifecycle: it
// owns the Timer and the streaming Verifier context, holds the
// caller-provided sample buffer, and assembles the final Result. Inside
// Execute's loop, the critical region between the two timer reads holds
// nothing but the inference call — no logging, no verification, no
// allocation; the sample store, fault checks, and verification hashing
// all follow the second timer read.
package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/mushkilali/certifiable-bench/bench/environment"
	"github.com/mushkilali/certifiable-bench/bench/fault"
	"github.com/mushkilali/certifiable-bench/bench/metrics"
	"github.com/mushkilali/certifiable-bench/bench/timer"
	"github.com/mushkilali/certifiable-bench/bench/verify"
)

// InferenceFunc is the benchmark target: given an input span, it must
// write its result into output and return nil on success. A non-nil
// error marks that call's output untrusted; the runner records it as a
// verification failure but — inside Execute — keeps timing it.
type InferenceFunc func(input, output []byte) error

// State is a Runner's position in its lifecycle state machine.
type State int

const (
	Uninit State = iota
	Ready
	WarmedUp
	Executed
	Cleaned
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case Ready:
		return "ready"
	case WarmedUp:
		return "warmed_up"
	case Executed:
		return "executed"
	case Cleaned:
		return "cleaned"
	default:
		return "unknown"
	}
}

// Sentinel errors, named after the taxonomy's error codes so callers can
// match them with errors.Is regardless of the wrapping added at each
// layer.
var (
	ErrInvalidConfig = errors.New("runner: invalid config")
	ErrTimerInit     = errors.New("runner: no usable timer backend")
	ErrInvalidState  = errors.New("runner: operation not valid in current state")
)

// Config mirrors the C source's cb_config_t. Defaults: 100 warmup
// iterations, 1000 measurement iterations, batch size 1, automatic timer
// backend selection, verification and environment monitoring both on,
// histogram disabled with 100 bins over [0, 10ms).
type Config struct {
	WarmupIterations    uint32
	MeasureIterations   uint32
	BatchSize           uint32
	TimerSource         timer.Source
	VerifyOutputs       bool
	MonitorEnvironment  bool
	HistogramEnabled    bool
	HistogramBins       uint32
	HistogramRangeMinNS uint64
	HistogramRangeMaxNS uint64
}

// DefaultConfig returns a Config with the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		WarmupIterations:    100,
		MeasureIterations:   1000,
		BatchSize:           1,
		TimerSource:         timer.Auto,
		VerifyOutputs:       true,
		MonitorEnvironment:  true,
		HistogramEnabled:    false,
		HistogramBins:       100,
		HistogramRangeMinNS: 0,
		HistogramRangeMaxNS: 10_000_000,
	}
}

// Validate checks the constraints config_validate enforces: non-zero
// measurement count bounded by metrics.MaxSamples, non-zero batch size,
// and sane histogram bounds when the histogram is enabled.
func (c Config) Validate() error {
	if c.MeasureIterations == 0 || c.MeasureIterations > metrics.MaxSamples {
		return fmt.Errorf("%w: measure_iterations must be in (0, %d]", ErrInvalidConfig, metrics.MaxSamples)
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("%w: batch_size must be > 0", ErrInvalidConfig)
	}
	if c.HistogramEnabled {
		if c.HistogramBins == 0 {
			return fmt.Errorf("%w: histogram_bins must be > 0", ErrInvalidConfig)
		}
		if c.HistogramRangeMinNS >= c.HistogramRangeMaxNS {
			return fmt.Errorf("%w: histogram range_min_ns must be < range_max_ns", ErrInvalidConfig)
		}
	}
	return nil
}

// Throughput is derived from the total measured sample sum.
type Throughput struct {
	InferencesPerSec uint64
	SamplesPerSec    uint64
	BytesPerSec      uint64
	BatchSize        uint32
}

// Result is the complete benchmark report: performance, environment,
// verification, and fault state.
type Result struct {
	Platform  string
	CPUModel  string
	CPUFreqMHz uint64

	ConfigWarmupIterations  uint32
	ConfigMeasureIterations uint32
	ConfigBatchSize         uint32

	Latency    metrics.LatencyStats
	Throughput Throughput
	HwCounters environment.HwCounters

	EnvStats  environment.Stats
	EnvStable bool

	Histogram *metrics.Histogram

	DeterminismVerified  bool
	VerificationFailures uint32
	OutputHash           verify.Hash
	ResultHash           verify.Hash

	BenchmarkStartNS    uint64
	BenchmarkEndNS      uint64
	BenchmarkDurationNS uint64
	TimestampUnix       uint64

	Faults fault.Flags
}

// IsValid reports whether result meets the certification-valid bar: no
// hard fault and zero verification failures. ThermalDrift alone never
// invalidates a result.
func (r Result) IsValid() bool {
	return !r.Faults.HasHardFault() && r.VerificationFailures == 0
}

// Runner executes the warmup-then-measure lifecycle over a caller-owned
// sample buffer. The zero value is Uninit; use New to get one wired for
// Init.
type Runner struct {
	config Config
	state  State

	clock     *timer.Timer
	verifyCtx *verify.Context

	samples          []uint64
	samplesCollected uint32

	envStart         environment.Snapshot
	benchmarkStartNS uint64

	platform       string
	cpuModel       string
	lastOutputSize int

	faults fault.Flags
}

// New returns a Runner in the Uninit state.
func New() *Runner {
	return &Runner{state: Uninit}
}

// State reports the runner's current lifecycle position.
func (r *Runner) State() State {
	return r.state
}

// Faults reports the runner's accumulated sticky fault flags.
func (r *Runner) Faults() fault.Flags {
	return r.faults
}

// Init validates cfg, requires sampleBuf's capacity to cover
// MeasureIterations, selects and calibrates a timer backend, and
// transitions Uninit/Cleaned → Ready. sampleBuf is owned by the caller
// for the runner's entire lifetime; Init never allocates it.
//
// platform and cpuModel let a caller override platform identification
// (useful in tests, or when benchmarking a remote target); pass "" for
// either to have it recorded from the environment probe
// (environment.PlatformName / environment.CPUModel), matching
// get_result's "platform id, cpu_model ... from the environment probe"
// requirement.
func (r *Runner) Init(cfg Config, sampleBuf []uint64, platform, cpuModel string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("runner: init: %w", err)
	}
	if uint32(cap(sampleBuf)) < cfg.MeasureIterations {
		return fmt.Errorf("%w: sample buffer capacity %d < measure_iterations %d", ErrInvalidConfig, cap(sampleBuf), cfg.MeasureIterations)
	}

	clock, err := timer.Init(cfg.TimerSource)
	if err != nil {
		return fmt.Errorf("runner: init: %w: %w", ErrTimerInit, err)
	}

	if platform == "" {
		platform = environment.PlatformName()
	}
	if cpuModel == "" {
		cpuModel = environment.CPUModel()
	}

	r.config = cfg
	r.clock = clock
	r.samples = sampleBuf[:0]
	r.samplesCollected = 0
	r.platform = platform
	r.cpuModel = cpuModel
	r.faults = fault.Clear()

	if cfg.VerifyOutputs {
		r.verifyCtx = verify.NewContext()
	} else {
		r.verifyCtx = nil
	}

	r.state = Ready
	return nil
}

// Warmup runs WarmupIterations untimed invocations of fn. Any error
// aborts the run — warmup failures are fatal, unlike measurement-phase
// failures. On success it captures the starting environment snapshot and
// the benchmark start timestamp, then transitions Ready → WarmedUp.
func (r *Runner) Warmup(fn InferenceFunc, input, output []byte) error {
	if r.state != Ready {
		return fmt.Errorf("runner: warmup: %w (in %s)", ErrInvalidState, r.state)
	}

	for i := uint32(0); i < r.config.WarmupIterations; i++ {
		if err := fn(input, output); err != nil {
			return fmt.Errorf("runner: warmup iteration %d: %w", i, err)
		}
	}

	if r.config.MonitorEnvironment {
		r.envStart = environment.TakeSnapshot(r.clock.NowNS())
	}
	r.benchmarkStartNS = r.clock.NowNS()
	r.state = WarmedUp
	return nil
}

// Execute runs the timed measurement loop. If the runner is still Ready,
// it auto-runs Warmup first. For each of MeasureIterations calls, only a
// pre-timer read, the inference call, and a post-timer read occur inside
// the critical region — verification hashing happens after the sample is
// stored, outside the timed interval. An inference error sets VerifyFail
// and the loop continues; a monotonicity violation sets TimerError.
func (r *Runner) Execute(fn InferenceFunc, input, output []byte) error {
	if r.state == Ready {
		if err := r.Warmup(fn, input, output); err != nil {
			return err
		}
	}
	if r.state != WarmedUp {
		return fmt.Errorf("runner: execute: %w (in %s)", ErrInvalidState, r.state)
	}

	r.lastOutputSize = len(output)

	for i := uint32(0); i < r.config.MeasureIterations; i++ {
		t0 := r.clock.NowNS()
		callErr := fn(input, output)
		t1 := r.clock.NowNS()

		r.samples = append(r.samples, t1-t0)

		if t1 < t0 {
			r.faults = r.faults.Set(fault.TimerError)
		}
		if r.verifyCtx != nil && len(output) > 0 {
			_ = r.verifyCtx.Update(output)
		}
		if callErr != nil {
			r.faults = r.faults.Set(fault.VerifyFail)
		}
	}

	r.samplesCollected = uint32(len(r.samples))
	r.state = Executed
	return nil
}

// GetResult assembles the final Result from collected samples, the
// verifier's (copied) digest, and environment deltas. Requires at least
// one collected sample; the runner must be in the Executed state.
func (r *Runner) GetResult() (Result, error) {
	if r.state != Executed {
		return Result{}, fmt.Errorf("runner: get_result: %w (in %s)", ErrInvalidState, r.state)
	}
	if r.samplesCollected == 0 {
		return Result{}, fmt.Errorf("%w: no samples collected", ErrInvalidConfig)
	}

	var result Result
	result.Platform = r.platform
	result.CPUModel = r.cpuModel
	result.CPUFreqMHz = environment.CPUFreqMHz()
	result.ConfigWarmupIterations = r.config.WarmupIterations
	result.ConfigMeasureIterations = r.config.MeasureIterations
	result.ConfigBatchSize = r.config.BatchSize

	// ComputeStats's error return duplicates information already folded
	// into statsFaults (Overflow/DivZero); the stats themselves remain
	// usable either way (Welford fallback, or zeroed on empty input).
	stats, statsFaults, _ := metrics.ComputeStats(r.samples)
	faults := r.faults.Merge(statsFaults)
	result.Latency = stats

	var sum uint64
	overflowed := false
	for _, s := range r.samples {
		if sum > ^uint64(0)-s {
			overflowed = true
			break
		}
		sum += s
	}
	if overflowed || sum == 0 {
		result.Throughput = Throughput{BatchSize: r.config.BatchSize}
		if overflowed {
			faults = faults.Set(fault.Overflow)
		}
	} else {
		n := uint64(stats.SampleCount)
		infPerSec := n * 1_000_000_000 / sum
		samplesPerSec := infPerSec * uint64(r.config.BatchSize)
		result.Throughput = Throughput{
			InferencesPerSec: infPerSec,
			SamplesPerSec:    samplesPerSec,
			BytesPerSec:      samplesPerSec * uint64(r.lastOutputSize),
			BatchSize:        r.config.BatchSize,
		}
	}

	if r.config.HistogramEnabled {
		hist, histErr := metrics.HistogramInit(r.config.HistogramBins, r.config.HistogramRangeMinNS, r.config.HistogramRangeMaxNS)
		if histErr == nil {
			hist.Build(r.samples)
			result.Histogram = hist
		}
	}

	if r.config.MonitorEnvironment {
		envEnd := environment.TakeSnapshot(r.clock.NowNS())
		envStats := environment.ComputeStats(r.envStart, envEnd)
		result.EnvStats = envStats
		result.EnvStable = environment.CheckStable(envStats)
		if !result.EnvStable {
			faults = faults.Set(fault.ThermalDrift)
		}
	} else {
		result.EnvStable = true
	}

	result.HwCounters = environment.ReadHwCounters()

	result.BenchmarkStartNS = r.benchmarkStartNS
	result.BenchmarkEndNS = r.clock.NowNS()
	result.BenchmarkDurationNS = result.BenchmarkEndNS - result.BenchmarkStartNS
	result.TimestampUnix = uint64(time.Now().Unix())

	if r.verifyCtx != nil {
		finalCopy := r.verifyCtx.Copy()
		result.OutputHash = finalCopy.Final()
	}

	result.DeterminismVerified = !faults.Has(fault.VerifyFail)
	if faults.Has(fault.VerifyFail) {
		result.VerificationFailures = 1
	}

	result.ResultHash = verify.ComputeResultHash(result.OutputHash, result.Platform, configHash(r.config), stats, result.TimestampUnix)

	result.Faults = faults
	r.faults = faults

	return result, nil
}

// Cleanup resets the runner's internal pointers and flags and
// transitions to Cleaned from any state. It never touches the caller's
// sample buffer — that memory remains the caller's to reuse or free.
func (r *Runner) Cleanup() {
	r.clock = nil
	r.verifyCtx = nil
	r.samples = nil
	r.samplesCollected = 0
	r.faults = fault.Clear()
	r.state = Cleaned
}

// RunBenchmark composes Init, Warmup, Execute, and GetResult, guaranteeing
// Cleanup runs on every exit path — the convenience entry point most
// callers should use instead of driving the state machine by hand.
func RunBenchmark(cfg Config, fn InferenceFunc, input, output []byte, sampleBuf []uint64, platform, cpuModel string) (Result, error) {
	r := New()
	defer r.Cleanup()

	if err := r.Init(cfg, sampleBuf, platform, cpuModel); err != nil {
		return Result{}, err
	}
	if err := r.Warmup(fn, input, output); err != nil {
		return Result{}, err
	}
	if err := r.Execute(fn, input, output); err != nil {
		return Result{}, err
	}
	return r.GetResult()
}

// configHash derives an opaque commitment via FNV-1a64 over the echoed
// config fields (warmup, measure, batch) plus the timer source and the
// verify/monitor flags, so the result binding changes whenever any of
// these does.
func configHash(cfg Config) uint64 {
	const (
		offsetBasis = 14695981039346656037
		prime       = 1099511628211
	)
	h := uint64(offsetBasis)
	mix := func(v uint64) {
		for i := 0; i < 8; i++ {
			h ^= v & 0xff
			h *= prime
			v >>= 8
		}
	}
	mix(uint64(cfg.WarmupIterations))
	mix(uint64(cfg.MeasureIterations))
	mix(uint64(cfg.BatchSize))
	mix(uint64(cfg.TimerSource))
	if cfg.VerifyOutputs {
		mix(1)
	}
	if cfg.MonitorEnvironment {
		mix(1)
	}
	return h
}
