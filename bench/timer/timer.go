// Package timer provides a monotonic nanosecond clock with calibrated
// overhead and resolution, and pluggable backend selection.
//
// The platform-specific cycle-counter backends (RDTSC, CNTVCT, RISC-V
// cycle CSR) are stubbed: they always report unavailable and Auto always
// degrades to Posix. This mirrors the upstream reference implementation,
// which stubs the same backends and falls back identically.
package timer

import (
	"errors"
	"time"

	"github.com/mushkilali/certifiable-bench/bench/fault"
)

// Source identifies a timer backend.
type Source int

const (
	// Auto selects the best available backend at Init time.
	Auto Source = iota
	// Posix uses a monotonic wall-clock read (clock_gettime(CLOCK_MONOTONIC) equivalent).
	Posix
	// Rdtsc uses the x86 RDTSC instruction. Stubbed: always unavailable.
	Rdtsc
	// Cntvct uses the ARM64 CNTVCT_EL0 register. Stubbed: always unavailable.
	Cntvct
	// RiscVCycle uses the RISC-V cycle CSR. Stubbed: always unavailable.
	RiscVCycle
)

func (s Source) String() string {
	switch s {
	case Auto:
		return "auto"
	case Posix:
		return "posix (monotonic)"
	case Rdtsc:
		return "x86_64 (RDTSC)"
	case Cntvct:
		return "arm64 (CNTVCT_EL0)"
	case RiscVCycle:
		return "risc-v (cycle CSR)"
	default:
		return "unknown"
	}
}

// ErrTimerInit is returned when no usable timer backend can be selected.
var ErrTimerInit = errors.New("timer: no usable backend")

// calibrationIterations is the number of back-to-back now() calls used
// to measure call overhead. A larger N drains more cache/scheduler noise.
const calibrationIterations = 1000

// Timer is a calibrated monotonic clock. The zero value is not usable;
// construct with Init. Timer is not safe for concurrent use across
// goroutines that race Init against NowNS.
type Timer struct {
	source        Source
	resolutionNS  uint64
	calibrationNS uint64
	start         time.Time
	faults        fault.Flags
}

func rdtscAvailable() bool     { return false }
func cntvctAvailable() bool    { return false }
func riscvCycleAvailable() bool { return false }

// Init selects a backend, calibrates overhead and resolution, and clears
// faults. A request for an unavailable backend falls back to Posix. The
// returned Timer's Source() is never Auto.
func Init(preferred Source) (*Timer, error) {
	selected := Posix

	switch preferred {
	case Auto:
		if rdtscAvailable() {
			selected = Rdtsc
		} else if cntvctAvailable() {
			selected = Cntvct
		} else if riscvCycleAvailable() {
			selected = RiscVCycle
		}
	case Rdtsc:
		if rdtscAvailable() {
			selected = Rdtsc
		}
	case Cntvct:
		if cntvctAvailable() {
			selected = Cntvct
		}
	case RiscVCycle:
		if riscvCycleAvailable() {
			selected = RiscVCycle
		}
	case Posix:
		selected = Posix
	}

	t := &Timer{
		source: selected,
		start:  time.Now(),
	}

	t.resolutionNS = measureResolution()
	t.calibrationNS = t.calibrateOverhead()

	return t, nil
}

// NowNS returns a monotonic nanosecond reading. Never allocates.
func (t *Timer) NowNS() uint64 {
	return uint64(time.Since(t.start))
}

// ResolutionNS returns the timer's resolution in nanoseconds, as queried
// at Init time.
func (t *Timer) ResolutionNS() uint64 {
	return t.resolutionNS
}

// CalibrationNS returns the minimum observed overhead of two back-to-back
// NowNS calls, measured at Init time.
func (t *Timer) CalibrationNS() uint64 {
	return t.calibrationNS
}

// Name returns a human-readable backend description.
func (t *Timer) Name() string {
	return t.source.String()
}

// Source returns the selected backend. Never Auto.
func (t *Timer) Source() Source {
	return t.source
}

// Faults returns any faults accumulated during calibration.
func (t *Timer) Faults() fault.Flags {
	return t.faults
}

// measureResolution approximates clock resolution as the minimum
// non-zero delta observed over calibrationIterations back-to-back reads.
func measureResolution() uint64 {
	ref := time.Now()
	var minDelta uint64 = 0
	for i := 0; i < calibrationIterations; i++ {
		a := time.Since(ref)
		b := time.Since(ref)
		delta := uint64(b - a)
		if delta > 0 && (minDelta == 0 || delta < minDelta) {
			minDelta = delta
		}
	}
	if minDelta == 0 {
		return 1
	}
	return minDelta
}

// calibrateOverhead measures the minimum elapsed time between two
// back-to-back NowNS calls over calibrationIterations attempts. Failures
// are skipped, not fatal; if every attempt fails, overhead reports 0 and
// TimerError is set.
func (t *Timer) calibrateOverhead() uint64 {
	var minOverhead uint64
	found := false

	for i := 0; i < calibrationIterations; i++ {
		start := t.NowNS()
		end := t.NowNS()
		if end < start {
			continue
		}
		delta := end - start
		if !found || delta < minOverhead {
			minOverhead = delta
			found = true
		}
	}

	if !found {
		t.faults = t.faults.Set(fault.TimerError)
		return 0
	}
	return minOverhead
}

// CyclesToNS converts a cycle count to nanoseconds at the given
// frequency, using the overflow-safe formula
// ns = (cycles/freq)*1e9 + (cycles%freq)*1e9/freq. Any step that would
// exceed math.MaxUint64 saturates and reports faults with Overflow set.
func CyclesToNS(cycles, freqHz uint64) (uint64, fault.Flags) {
	var faults fault.Flags
	if freqHz == 0 {
		return 0, faults.Set(fault.DivZero)
	}

	const nsPerSec = uint64(1_000_000_000)

	whole := cycles / freqHz
	rem := cycles % freqHz

	wholeNS, overflowed := mulSaturate(whole, nsPerSec)
	if overflowed {
		faults = faults.Set(fault.Overflow)
		return wholeNS, faults
	}

	remNS, overflowed := mulSaturate(rem, nsPerSec)
	if overflowed {
		faults = faults.Set(fault.Overflow)
		return ^uint64(0), faults
	}
	remNS /= freqHz

	sum, overflowed := addSaturate(wholeNS, remNS)
	if overflowed {
		faults = faults.Set(fault.Overflow)
	}
	return sum, faults
}

func mulSaturate(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	result := a * b
	if result/a != b {
		return ^uint64(0), true
	}
	return result, false
}

func addSaturate(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return ^uint64(0), true
	}
	return sum, false
}
