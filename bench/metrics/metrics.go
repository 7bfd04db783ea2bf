// Package metrics implements the integer-only statistics engine: sorting,
// percentiles, Welford-based latency statistics, histogram construction,
// and MAD-based outlier detection. Every computation here is integer
// arithmetic — no floating point ever touches a value that is persisted
// or compared, per the determinism requirement on certification evidence.
package metrics

import (
	"errors"
	"fmt"

	"github.com/mushkilali/certifiable-bench/bench/fault"
)

// MaxSamples bounds the scratch buffers DetectOutliers requires, the same
// compile-time ceiling the upstream reference implementation enforces on
// its static scratch arrays.
const MaxSamples = 1_000_000

// sortThreshold is the length at or below which Sort uses insertion sort;
// above it, Sort switches to heapsort. Quicksort is never used: its
// pivot-dependent behavior would break cross-platform reproducibility.
const sortThreshold = 64

// wcetSigma is the standard-deviation multiplier used to derive the
// statistical WCET bound from the observed maximum.
const wcetSigma = 6

// outlierThreshScaled is 3.5 scaled by 10000, the modified Z-score cutoff.
const outlierThreshScaled = 35000

// madScaleFactor is 0.6745 scaled by 10000, the modified Z-score constant.
const madScaleFactor = 6745

// Isqrt returns floor(sqrt(n)) for any 64-bit n, via a binary search that
// bounds mid*mid indirectly through mid <= n/mid to avoid overflow.
// Converges in at most 32 iterations.
func Isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}

	lo, hi := uint64(1), n
	if hi > 0xFFFFFFFF {
		hi = 0xFFFFFFFF
	}
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if mid <= n/mid {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Sort sorts buf in place, deterministically: insertion sort for
// len(buf) <= 64, binary heapsort otherwise. Quicksort is forbidden by
// design — its pivot selection is input-order-dependent, which breaks
// the byte-identical-output requirement across platforms.
func Sort(buf []uint64) {
	if len(buf) <= 1 {
		return
	}
	if len(buf) <= sortThreshold {
		insertionSort(buf)
	} else {
		heapsort(buf)
	}
}

func insertionSort(arr []uint64) {
	for i := 1; i < len(arr); i++ {
		key := arr[i]
		j := i
		for j > 0 && arr[j-1] > key {
			arr[j] = arr[j-1]
			j--
		}
		arr[j] = key
	}
}

func heapsort(arr []uint64) {
	n := len(arr)
	for i := n / 2; i > 0; i-- {
		heapify(arr, n, i-1)
	}
	for i := n - 1; i > 0; i-- {
		arr[0], arr[i] = arr[i], arr[0]
		heapify(arr, i, 0)
	}
}

func heapify(arr []uint64, count, i int) {
	largest := i
	left := 2*i + 1
	right := 2*i + 2

	if left < count && arr[left] > arr[largest] {
		largest = left
	}
	if right < count && arr[right] > arr[largest] {
		largest = right
	}
	if largest != i {
		arr[i], arr[largest] = arr[largest], arr[i]
		heapify(arr, count, largest)
	}
}

// Percentile computes the p-th percentile (p in [0,100], clamped above
// 100) of a sorted sample array via linear interpolation between
// adjacent ranks. Returns 0 for an empty slice.
func Percentile(sorted []uint64, p uint32) uint64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p > 100 {
		p = 100
	}
	if n == 1 {
		return sorted[0]
	}

	rankScaled := uint64(p) * uint64(n-1)
	rank := rankScaled / 100
	frac := rankScaled % 100

	lower := sorted[rank]
	upper := lower
	if rank+1 < uint64(n) {
		upper = sorted[rank+1]
	}

	if upper >= lower {
		return lower + ((upper-lower)*frac)/100
	}
	return lower
}

// LatencyStats holds integer-only latency statistics, all values in
// nanoseconds except SampleCount and OutlierCount.
type LatencyStats struct {
	MinNS          uint64
	MaxNS          uint64
	MeanNS         uint64
	MedianNS       uint64
	P95NS          uint64
	P99NS          uint64
	StddevNS       uint64
	VarianceNS2    uint64
	SampleCount    uint32
	OutlierCount   uint32
	WcetObservedNS uint64
	WcetBoundNS    uint64
}

// ErrEmptySamples is returned by ComputeStats when called with no samples.
var ErrEmptySamples = errors.New("metrics: sample count must be > 0")

// ComputeStats computes LatencyStats over samples in a single pass
// (sum/min/max/Welford), then sorts samples in place and extracts
// percentiles from the sorted array. Requires len(samples) > 0.
//
// Welford's running mean/variance is always computed alongside the naive
// sum; if the naive sum overflows, the reported mean falls back to
// Welford's running estimate and Overflow is set. Variance is
// S/(n-1) (0 for n=1); stddev is its integer square root. WcetBoundNS is
// MaxNS + 6*StddevNS, saturating to MaxNS with Overflow set if the
// addition would overflow.
func ComputeStats(samples []uint64) (LatencyStats, fault.Flags, error) {
	var stats LatencyStats
	var faults fault.Flags

	n := len(samples)
	if n == 0 {
		faults = faults.Set(fault.DivZero)
		return stats, faults, fmt.Errorf("metrics: compute stats: %w", ErrEmptySamples)
	}

	var sum uint64
	overflowed := false
	minVal, maxVal := samples[0], samples[0]

	// Welford's algorithm, signed because deltas may be negative.
	var m, s int64

	for i, x := range samples {
		if !overflowed {
			if sum > ^uint64(0)-x {
				overflowed = true
				faults = faults.Set(fault.Overflow)
			} else {
				sum += x
			}
		}

		if x < minVal {
			minVal = x
		}
		if x > maxVal {
			maxVal = x
		}

		delta := int64(x) - m
		m += delta / int64(i+1)
		delta2 := int64(x) - m
		s += delta * delta2
	}

	var mean uint64
	if !overflowed {
		mean = sum / uint64(n)
	} else {
		mean = uint64(m)
	}

	var variance, stddev uint64
	if n > 1 {
		variance = uint64(s / int64(n-1))
		stddev = Isqrt(variance)
	}

	Sort(samples)

	stats.MinNS = minVal
	stats.MaxNS = maxVal
	stats.MeanNS = mean
	stats.VarianceNS2 = variance
	stats.StddevNS = stddev
	stats.SampleCount = uint32(n)

	stats.MedianNS = Percentile(samples, 50)
	stats.P95NS = Percentile(samples, 95)
	stats.P99NS = Percentile(samples, 99)

	stats.WcetObservedNS = maxVal

	if stddev <= (^uint64(0)-maxVal)/wcetSigma {
		stats.WcetBoundNS = maxVal + wcetSigma*stddev
	} else {
		stats.WcetBoundNS = maxVal
		faults = faults.Set(fault.Overflow)
	}

	if stddev > 0 {
		threshold := mean + 3*stddev
		for _, x := range samples {
			if x > threshold {
				stats.OutlierCount++
			}
		}
	}

	if overflowed {
		return stats, faults, fmt.Errorf("metrics: sum overflow, fell back to Welford mean")
	}
	return stats, faults, nil
}

// HistogramBin is a single latency-distribution bucket spanning
// [MinNS, MaxNS).
type HistogramBin struct {
	MinNS uint64
	MaxNS uint64
	Count uint32
}

// Histogram is a fixed-range latency distribution with caller-provided
// bin storage semantics modeled as an owned slice.
type Histogram struct {
	RangeMinNS     uint64
	RangeMaxNS     uint64
	BinWidthNS     uint64
	NumBins        uint32
	OverflowCount  uint32
	UnderflowCount uint32
	Bins           []HistogramBin
}

// HistogramInit fixes the histogram's range and derives its bin width as
// max(1, floor((max-min)/numBins)). The last bin's upper bound is snapped
// to rangeMaxNS, absorbing integer-division rounding.
func HistogramInit(numBins uint32, rangeMinNS, rangeMaxNS uint64) (*Histogram, error) {
	if numBins == 0 {
		return nil, fmt.Errorf("metrics: histogram: num_bins must be > 0")
	}
	if rangeMinNS >= rangeMaxNS {
		return nil, fmt.Errorf("metrics: histogram: range_min_ns must be < range_max_ns")
	}

	binWidth := (rangeMaxNS - rangeMinNS) / uint64(numBins)
	if binWidth == 0 {
		binWidth = 1
	}

	h := &Histogram{
		RangeMinNS: rangeMinNS,
		RangeMaxNS: rangeMaxNS,
		BinWidthNS: binWidth,
		NumBins:    numBins,
		Bins:       make([]HistogramBin, numBins),
	}

	cur := rangeMinNS
	for i := uint32(0); i < numBins; i++ {
		h.Bins[i] = HistogramBin{MinNS: cur, MaxNS: cur + binWidth}
		cur += binWidth
	}
	h.Bins[numBins-1].MaxNS = rangeMaxNS

	return h, nil
}

// Build zeros all counters, then assigns each sample to underflow,
// overflow, or its bin. Conserves Sum(bins)+under+over == len(samples).
func (h *Histogram) Build(samples []uint64) {
	h.OverflowCount = 0
	h.UnderflowCount = 0
	for i := range h.Bins {
		h.Bins[i].Count = 0
	}

	for _, s := range samples {
		switch {
		case s < h.RangeMinNS:
			h.UnderflowCount++
		case s >= h.RangeMaxNS:
			h.OverflowCount++
		default:
			idx := (s - h.RangeMinNS) / h.BinWidthNS
			if idx >= uint64(h.NumBins) {
				idx = uint64(h.NumBins) - 1
			}
			h.Bins[idx].Count++
		}
	}
}

// ErrScratchTooSmall is returned by DetectOutliers when count exceeds
// MaxSamples.
var ErrScratchTooSmall = errors.New("metrics: sample count exceeds MaxSamples")

// DetectOutliers flags samples whose modified Z-score (scaled by 10000)
// exceeds 35000 (|z| > 3.5), using the median absolute deviation (MAD) as
// a robust scale estimator. If MAD is 0 (a tight cluster with no spread),
// no outliers are flagged.
//
// sortedScratch and devScratch are caller-provided scratch buffers, so
// the sorted copy and the deviations need no allocation here; both must
// have capacity for len(samples) elements. The returned flag slice is
// allocated by this routine. Returns ErrScratchTooSmall
// if len(samples) exceeds MaxSamples.
func DetectOutliers(samples []uint64, sortedScratch, devScratch []uint64) ([]bool, uint32, error) {
	n := len(samples)
	flags := make([]bool, n)
	if n == 0 {
		return flags, 0, nil
	}
	if n > MaxSamples {
		return nil, 0, fmt.Errorf("metrics: detect outliers: %w", ErrScratchTooSmall)
	}

	sortedCopy := sortedScratch[:n]
	copy(sortedCopy, samples)
	Sort(sortedCopy)
	median := Percentile(sortedCopy, 50)

	deviations := devScratch[:n]
	for i, x := range samples {
		deviations[i] = absDiff(x, median)
	}
	Sort(deviations)
	mad := Percentile(deviations, 50)

	if mad == 0 {
		return flags, 0, nil
	}

	var outliers uint32
	for i, x := range samples {
		dev := absDiff(x, median)
		modifiedZScaled := (madScaleFactor * dev) / mad
		if modifiedZScaled > outlierThreshScaled {
			flags[i] = true
			outliers++
		}
	}

	return flags, outliers, nil
}

func absDiff(a, b uint64) uint64 {
	if a >= b {
		return a - b
	}
	return b - a
}
