// Package environment probes CPU frequency, temperature, and throttle
// state to gate benchmark result validity, and identifies the platform
// the benchmark is running on. Every sysfs read degrades to zero (or
// "unknown") on failure — unavailable sensors are never fatal, only the
// stability verdict they feed is ever surfaced (as a warning).
package environment

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Sysfs paths probed on Linux. Any other platform, or any read failure,
// yields the zero value for that field.
const (
	cpuFreqPath  = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq"
	cpuTempPath  = "/sys/class/thermal/thermal_zone0/temp"
	throttlePath = "/sys/devices/system/cpu/cpu0/thermal_throttle/core_throttle_count"
	cpuinfoPath  = "/proc/cpuinfo"
)

// Snapshot is a point-in-time environmental reading.
type Snapshot struct {
	TimestampNS   uint64
	CPUFreqHz     uint64
	CPUTempMC     int32
	ThrottleCount uint32
}

// Stats summarizes environmental conditions across a benchmark's
// duration via its start and end snapshots.
type Stats struct {
	Start               Snapshot
	End                 Snapshot
	MinFreqHz           uint64
	MaxFreqHz           uint64
	MinTempMC           int32
	MaxTempMC           int32
	TotalThrottleEvents uint32
}

// HwCounters holds hardware performance-counter readings. Available is
// false (and every other field zero) on any platform without access to
// the counters — this is a best-effort probe, not a requirement.
type HwCounters struct {
	Available        bool
	Cycles           uint64
	Instructions     uint64
	CacheRefs        uint64
	CacheMisses      uint64
	BranchRefs       uint64
	BranchMisses     uint64
	IPCQ16           uint32
	CacheMissRateQ16 uint32
}

// PlatformName returns the running architecture's canonical identifier,
// matching the upstream reference implementation's arch-switch in
// cb_platform_name (x86_64, aarch64, riscv64, riscv32, arm, i386), via
// Go's runtime.GOARCH instead of preprocessor defines.
func PlatformName() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "riscv64":
		return "riscv64"
	case "386":
		return "i386"
	case "arm":
		return "arm"
	default:
		return "unknown"
	}
}

// CPUModel reads the CPU model name from /proc/cpuinfo, matching the
// upstream implementation's "model name"/"Model" line scan. Returns
// "unknown" if the file is unavailable or no matching line is found.
func CPUModel() string {
	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "model name") && !strings.HasPrefix(line, "Model") {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		model := strings.TrimSpace(line[colon+1:])
		if model != "" {
			return model
		}
	}
	return "unknown"
}

// CPUFreqMHz reads the current CPU frequency in MHz, preferring the
// scaling_cur_freq sysfs node (reported in kHz) and falling back to the
// "cpu MHz" line in /proc/cpuinfo, matching cb_cpu_freq_mhz. Returns 0 if
// neither source is available.
func CPUFreqMHz() uint64 {
	if freqKHz, ok := readSysfsInt(cpuFreqPath); ok && freqKHz > 0 {
		return uint64(freqKHz) / 1000
	}

	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu MHz") {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		mhz, err := strconv.ParseFloat(strings.TrimSpace(line[colon+1:]), 64)
		if err != nil {
			continue
		}
		return uint64(mhz)
	}
	return 0
}

// readSysfsInt reads a single integer from a sysfs file. Returns
// (0, false) on any failure: missing file, permission error, or
// unparsable content. Never panics, never returns an error — sysfs reads
// are advisory, not load-bearing.
func readSysfsInt(path string) (int64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	text := strings.TrimSpace(string(data))
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func readCPUFreqHz() uint64 {
	// scaling_cur_freq is reported in kHz.
	freqKHz, ok := readSysfsInt(cpuFreqPath)
	if !ok || freqKHz < 0 {
		return 0
	}
	return uint64(freqKHz) * 1000
}

func readCPUTempMC() int32 {
	temp, ok := readSysfsInt(cpuTempPath)
	if !ok {
		return 0
	}
	return int32(temp)
}

func readThrottleCount() uint32 {
	count, ok := readSysfsInt(throttlePath)
	if !ok || count < 0 {
		return 0
	}
	return uint32(count)
}

// TakeSnapshot reads the current environment. monotonicNS should come
// from a Timer's NowNS(); this package has no clock of its own.
func TakeSnapshot(monotonicNS uint64) Snapshot {
	return Snapshot{
		TimestampNS:   monotonicNS,
		CPUFreqHz:     readCPUFreqHz(),
		CPUTempMC:     readCPUTempMC(),
		ThrottleCount: readThrottleCount(),
	}
}

// ComputeStats derives pairwise min/max over (freq, temp) and the total
// throttle events between start and end. A counter reset (end < start)
// collapses total throttle events to 0 rather than underflowing.
func ComputeStats(start, end Snapshot) Stats {
	stats := Stats{Start: start, End: end}

	stats.MinFreqHz = minUint64(start.CPUFreqHz, end.CPUFreqHz)
	stats.MaxFreqHz = maxUint64(start.CPUFreqHz, end.CPUFreqHz)
	stats.MinTempMC = minInt32(start.CPUTempMC, end.CPUTempMC)
	stats.MaxTempMC = maxInt32(start.CPUTempMC, end.CPUTempMC)

	if end.ThrottleCount >= start.ThrottleCount {
		stats.TotalThrottleEvents = end.ThrottleCount - start.ThrottleCount
	} else {
		stats.TotalThrottleEvents = 0
	}

	return stats
}

// CheckStable reports whether hardware state stayed stable across the
// benchmark: true if the starting frequency was unavailable (0, nothing
// to compare against), or if the ending frequency didn't drop more than
// 5% and no throttle events occurred.
func CheckStable(stats Stats) bool {
	if stats.Start.CPUFreqHz == 0 {
		return true
	}
	if stats.End.CPUFreqHz*100 < stats.Start.CPUFreqHz*95 {
		return false
	}
	if stats.TotalThrottleEvents > 0 {
		return false
	}
	return true
}

// ReadHwCounters is a best-effort hardware performance-counter probe.
// Real perf_event_open wiring is platform-specific and out of scope for
// this harness; it always reports Available=false, mirroring the
// upstream reference implementation's stubbed cycle-counter backends,
// which degrade rather than fail.
func ReadHwCounters() HwCounters {
	return HwCounters{Available: false}
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
