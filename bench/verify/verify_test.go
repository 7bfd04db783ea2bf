package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mushkilali/certifiable-bench/bench/metrics"
)

// NIST FIPS 180-4 SHA-256 test vectors.
func TestComputeHash_NISTVectors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", []byte(""), "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", []byte("abc"), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeHash(tt.in)
			assert.Equal(t, tt.want, ToHex(got))
		})
	}
}

func TestComputeHash_MillionAs(t *testing.T) {
	data := make([]byte, 1_000_000)
	for i := range data {
		data[i] = 'a'
	}
	got := ComputeHash(data)
	assert.Equal(t, "cdc76e5c9914fb9281a1c7e284d73e67f1809a48a497200e046d39ccc7112cd0", ToHex(got))
}

func TestContext_StreamingMatchesOneShot(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.Update([]byte("ab")))
	require.NoError(t, ctx.Update([]byte("c")))
	streamed := ctx.Final()

	oneShot := ComputeHash([]byte("abc"))
	assert.Equal(t, oneShot, streamed)
}

func TestContext_UpdateAfterFinal_ReturnsErrSealed(t *testing.T) {
	ctx := NewContext()
	_ = ctx.Final()
	err := ctx.Update([]byte("more"))
	assert.ErrorIs(t, err, ErrSealed)
}

func TestContext_BytesHashed_Accumulates(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.Update([]byte("hello")))
	require.NoError(t, ctx.Update([]byte("world!")))
	assert.Equal(t, uint64(11), ctx.BytesHashed())
}

func TestContext_Init_ResetsState(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.Update([]byte("data")))
	ctx.Init()
	assert.Equal(t, uint64(0), ctx.BytesHashed())
	assert.False(t, ctx.Finalised())
}

func TestContext_Copy_IsIndependentAndFinalised(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.Update([]byte("abc")))

	cp := ctx.Copy()
	assert.True(t, cp.Finalised())
	assert.Equal(t, ComputeHash([]byte("abc")), cp.Final())

	// Original remains open for further updates.
	require.NoError(t, ctx.Update([]byte("def")))
	assert.Equal(t, ComputeHash([]byte("abcdef")), ctx.Final())
}

func TestHashEqual_ConstantTimeProperty(t *testing.T) {
	a := ComputeHash([]byte("x"))
	b := ComputeHash([]byte("x"))
	c := ComputeHash([]byte("y"))

	assert.True(t, HashEqual(a, b))
	assert.False(t, HashEqual(a, c))
}

func TestToHexFromHex_RoundTrip(t *testing.T) {
	h := ComputeHash([]byte("round trip me"))
	encoded := ToHex(h)
	decoded, err := FromHex(encoded)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestFromHex_WrongLength_Errors(t *testing.T) {
	_, err := FromHex("deadbeef")
	assert.Error(t, err)
}

func TestFromHex_InvalidCharacters_Errors(t *testing.T) {
	bad := make([]byte, HashSize*2)
	for i := range bad {
		bad[i] = 'z'
	}
	_, err := FromHex(string(bad))
	assert.Error(t, err)
}

func TestGoldenVerify_MatchesAndMismatches(t *testing.T) {
	h := ComputeHash([]byte("output"))
	ref := GoldenRef{OutputHash: h, SampleCount: 100, OutputSize: 6, Platform: "linux/amd64"}
	assert.True(t, GoldenVerify(h, ref))

	other := ComputeHash([]byte("different output"))
	assert.False(t, GoldenVerify(other, ref))
}

func TestComputeResultHash_SensitiveToEveryField(t *testing.T) {
	outputHash := ComputeHash([]byte("output"))
	stats := metrics.LatencyStats{MinNS: 100, MaxNS: 900, MeanNS: 300, P99NS: 850}

	base := ComputeResultHash(outputHash, "linux/amd64", 42, stats, 1_700_000_000)

	// Flipping the timestamp by 1 must change the commitment.
	shifted := ComputeResultHash(outputHash, "linux/amd64", 42, stats, 1_700_000_001)
	assert.NotEqual(t, base, shifted)

	// Flipping the platform string must change the commitment.
	otherPlatform := ComputeResultHash(outputHash, "linux/arm64", 42, stats, 1_700_000_000)
	assert.NotEqual(t, base, otherPlatform)

	// Flipping the config hash must change the commitment.
	otherConfig := ComputeResultHash(outputHash, "linux/amd64", 43, stats, 1_700_000_000)
	assert.NotEqual(t, base, otherConfig)

	// Flipping a stats field must change the commitment.
	otherStats := stats
	otherStats.P99NS++
	withOtherStats := ComputeResultHash(outputHash, "linux/amd64", 42, otherStats, 1_700_000_000)
	assert.NotEqual(t, base, withOtherStats)
}

func TestComputeResultHash_Deterministic(t *testing.T) {
	outputHash := ComputeHash([]byte("same output"))
	stats := metrics.LatencyStats{MinNS: 10, MaxNS: 20, MeanNS: 15, P99NS: 19}

	a := ComputeResultHash(outputHash, "linux/amd64", 7, stats, 1_000_000)
	b := ComputeResultHash(outputHash, "linux/amd64", 7, stats, 1_000_000)
	assert.Equal(t, a, b)
}

func TestComputeResultHash_PlatformLongerThanFieldSize_Truncates(t *testing.T) {
	outputHash := ComputeHash([]byte("output"))
	stats := metrics.LatencyStats{MinNS: 1, MaxNS: 2, MeanNS: 1, P99NS: 2}

	longPlatform := "this-platform-string-is-far-longer-than-32-bytes"
	truncated := longPlatform[:32]

	withLong := ComputeResultHash(outputHash, longPlatform, 1, stats, 1)
	withTruncated := ComputeResultHash(outputHash, truncated, 1, stats, 1)
	assert.Equal(t, withTruncated, withLong)
}
