package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mushkilali/certifiable-bench/bench/fault"
)

func TestIsqrt_NumericVectors(t *testing.T) {
	tests := []struct {
		n    uint64
		want uint64
	}{
		{0, 0},
		{1, 1},
		{4, 2},
		{5, 2},
		{100, 10},
		{math.MaxUint64, 4294967295},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Isqrt(tt.n))
	}
}

func TestIsqrt_Property_BoundsResult(t *testing.T) {
	// BDD: isqrt(n)^2 <= n < (isqrt(n)+1)^2
	for _, n := range []uint64{0, 1, 2, 3, 7, 1000, 123456789, math.MaxUint64} {
		r := Isqrt(n)
		assert.LessOrEqual(t, r*r, n)
		if r < math.MaxUint32 {
			assert.Less(t, n, (r+1)*(r+1))
		}
	}
}

func TestSort_InsertionAndHeapPaths(t *testing.T) {
	small := []uint64{5, 3, 1, 4, 2}
	Sort(small)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, small)

	large := make([]uint64, 200)
	for i := range large {
		large[i] = uint64(200 - i)
	}
	Sort(large)
	for i := 1; i < len(large); i++ {
		assert.LessOrEqual(t, large[i-1], large[i])
	}
}

func TestSort_Idempotent(t *testing.T) {
	buf := []uint64{9, 1, 8, 2, 7, 3}
	Sort(buf)
	first := append([]uint64(nil), buf...)
	Sort(buf)
	assert.Equal(t, first, buf)
}

func TestPercentile_NumericVectors(t *testing.T) {
	sorted := []uint64{100, 200, 300, 400, 500}
	assert.Equal(t, uint64(100), Percentile(sorted, 0))
	assert.Equal(t, uint64(200), Percentile(sorted, 25))
	assert.Equal(t, uint64(300), Percentile(sorted, 50))
	assert.Equal(t, uint64(400), Percentile(sorted, 75))
	assert.Equal(t, uint64(500), Percentile(sorted, 100))
}

func TestPercentile_TwoSamples_Interpolates(t *testing.T) {
	sorted := []uint64{100, 200}
	assert.Equal(t, uint64(150), Percentile(sorted, 50))
}

func TestPercentile_EmptyReturnsZero(t *testing.T) {
	assert.Equal(t, uint64(0), Percentile(nil, 50))
}

func TestPercentile_ClampsAbove100(t *testing.T) {
	sorted := []uint64{100, 200, 300}
	assert.Equal(t, Percentile(sorted, 100), Percentile(sorted, 150))
}

func TestPercentile_NonDecreasingInP(t *testing.T) {
	sorted := []uint64{10, 40, 55, 90, 200, 310, 412}
	var prev uint64
	for p := uint32(0); p <= 100; p += 5 {
		v := Percentile(sorted, p)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestComputeStats_BasicVector(t *testing.T) {
	samples := []uint64{100, 200, 300, 400, 500}
	stats, faults, err := ComputeStats(samples)
	require.NoError(t, err)
	assert.False(t, faults.HasHardFault())
	assert.Equal(t, uint64(100), stats.MinNS)
	assert.Equal(t, uint64(500), stats.MaxNS)
	assert.Equal(t, uint64(300), stats.MeanNS)
	assert.Equal(t, uint32(5), stats.SampleCount)
}

func TestComputeStats_Invariants(t *testing.T) {
	// BDD: min <= median <= max, min <= mean <= max, wcet_bound >= max
	samples := []uint64{42, 7, 999, 13, 256, 1, 88, 500}
	stats, _, err := ComputeStats(samples)
	require.NoError(t, err)
	assert.LessOrEqual(t, stats.MinNS, stats.MedianNS)
	assert.LessOrEqual(t, stats.MedianNS, stats.MaxNS)
	assert.LessOrEqual(t, stats.MinNS, stats.MeanNS)
	assert.LessOrEqual(t, stats.MeanNS, stats.MaxNS)
	assert.GreaterOrEqual(t, stats.WcetBoundNS, stats.WcetObservedNS)
	assert.Equal(t, stats.MaxNS, stats.WcetObservedNS)
}

func TestComputeStats_EmptySamples_SetsDivZero(t *testing.T) {
	_, faults, err := ComputeStats(nil)
	require.Error(t, err)
	assert.True(t, faults.Has(fault.DivZero))
}

func TestComputeStats_SortsInPlace(t *testing.T) {
	samples := []uint64{5, 3, 1, 4, 2}
	_, _, err := ComputeStats(samples)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, samples)
}

func TestHistogram_Conservation(t *testing.T) {
	h, err := HistogramInit(10, 0, 1000)
	require.NoError(t, err)

	samples := []uint64{0, 50, 999, 1000, 1500, 100, 200, 999}
	h.Build(samples)

	var total uint32
	for _, b := range h.Bins {
		total += b.Count
	}
	total += h.OverflowCount + h.UnderflowCount
	assert.Equal(t, uint32(len(samples)), total)
}

func TestHistogram_MinBinWidthOne(t *testing.T) {
	h, err := HistogramInit(100, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h.BinWidthNS)
}

func TestHistogram_LastBinSnapsToRangeMax(t *testing.T) {
	h, err := HistogramInit(3, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), h.Bins[len(h.Bins)-1].MaxNS)
}

func TestDetectOutliers_SingleOutlier(t *testing.T) {
	samples := []uint64{100, 110, 120, 130, 1000}
	s1 := make([]uint64, len(samples))
	s2 := make([]uint64, len(samples))
	flags, count, err := DetectOutliers(samples, s1, s2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)
	assert.True(t, flags[4])
	for i := 0; i < 4; i++ {
		assert.False(t, flags[i])
	}
}

func TestDetectOutliers_AllEqual_NoOutliers(t *testing.T) {
	samples := []uint64{50, 50, 50, 50, 50}
	s1 := make([]uint64, len(samples))
	s2 := make([]uint64, len(samples))
	_, count, err := DetectOutliers(samples, s1, s2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), count)
}

func TestDetectOutliers_ExceedsMaxSamples(t *testing.T) {
	n := MaxSamples + 1
	samples := make([]uint64, n)
	s1 := make([]uint64, n)
	s2 := make([]uint64, n)
	_, _, err := DetectOutliers(samples, s1, s2)
	assert.ErrorIs(t, err, ErrScratchTooSmall)
}
