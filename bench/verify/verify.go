// Package verify implements streaming SHA-256 verification of inference
// outputs, constant-time hash comparison, hex encoding, golden reference
// types, and the cryptographic result-binding commitment.
package verify

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mushkilali/certifiable-bench/bench/metrics"
)

// HashSize is the length of a SHA-256 digest in bytes.
const HashSize = 32

// Hash is a 32-byte SHA-256 digest.
type Hash [HashSize]byte

// ErrSealed is returned by Update when called on a Context that has
// already been finalised.
var ErrSealed = errors.New("verify: context already finalised")

// Context is a streaming SHA-256 hash state. A Runner holds one by
// pointer, created once at Init; Update itself allocates nothing beyond
// what crypto/sha256 does internally.
type Context struct {
	h           hashState
	bytesHashed uint64
	finalised   bool
}

// hashState is the subset of hash.Hash that Context needs; kept as a
// named type so Context's zero value documents its dependency clearly.
type hashState interface {
	Write(p []byte) (n int, err error)
	Sum(b []byte) []byte
	Reset()
}

// NewContext returns a Context ready for Update calls.
func NewContext() *Context {
	return &Context{h: sha256.New()}
}

// Init resets ctx to a freshly-initialised streaming state, discarding
// any prior progress. Equivalent to NewContext but reuses ctx's storage.
func (ctx *Context) Init() {
	ctx.h = sha256.New()
	ctx.bytesHashed = 0
	ctx.finalised = false
}

// Update feeds data into the streaming hash. Returns ErrSealed if the
// context has already been finalised.
func (ctx *Context) Update(data []byte) error {
	if ctx.finalised {
		return ErrSealed
	}
	if ctx.h == nil {
		ctx.h = sha256.New()
	}
	n, err := ctx.h.Write(data)
	if err != nil {
		return fmt.Errorf("verify: update: %w", err)
	}
	ctx.bytesHashed += uint64(n)
	return nil
}

// Final completes the hash computation and seals the context against
// further updates.
func (ctx *Context) Final() Hash {
	if ctx.h == nil {
		ctx.h = sha256.New()
	}
	var out Hash
	copy(out[:], ctx.h.Sum(nil))
	ctx.finalised = true
	return out
}

// Finalised reports whether Final has already been called.
func (ctx *Context) Finalised() bool {
	return ctx.finalised
}

// BytesHashed returns the total number of bytes fed via Update.
func (ctx *Context) BytesHashed() uint64 {
	return ctx.bytesHashed
}

// Copy returns a snapshot of ctx's internal state as an independent,
// already-finalised context. Used by the runner to finalise a copy of
// its verify context, leaving the original unchanged and still open for
// further Update calls.
//
// crypto/sha256's hash.Hash does not expose a public clone; Sum(nil)
// reads the digest without mutating internal state, so the copy carries
// a snapshot digest rather than a resumable stream.
func (ctx *Context) Copy() *Context {
	cp := &Context{bytesHashed: ctx.bytesHashed, finalised: true}
	if ctx.h != nil {
		cp.h = &sealedState{sum: ctx.h.Sum(nil)}
	}
	return cp
}

// sealedState is a hashState stand-in holding a precomputed digest, used
// by Copy so a finalised copy can be produced without mutating the
// original streaming state.
type sealedState struct {
	sum []byte
}

func (s *sealedState) Write(p []byte) (int, error) { return len(p), nil }
func (s *sealedState) Sum(b []byte) []byte         { return append(b, s.sum...) }
func (s *sealedState) Reset()                      {}

// ComputeHash is the one-shot convenience form of the streaming API.
func ComputeHash(data []byte) Hash {
	var out Hash
	sum := sha256.Sum256(data)
	copy(out[:], sum[:])
	return out
}

// HashEqual performs a constant-time comparison of two hashes, forbidding
// timing-based oracle attacks on partial matches.
func HashEqual(a, b Hash) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// ToHex renders a hash as 64 lowercase hex characters.
func ToHex(h Hash) string {
	return hex.EncodeToString(h[:])
}

// FromHex parses 64 hex characters (mixed case accepted) into a Hash.
// Returns an error if the length is not 64 or any character is not hex.
func FromHex(s string) (Hash, error) {
	var out Hash
	if len(s) != HashSize*2 {
		return out, fmt.Errorf("verify: hex length %d, want %d", len(s), HashSize*2)
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("verify: invalid hex: %w", err)
	}
	copy(out[:], decoded)
	return out, nil
}

// GoldenRef is a persisted expectation for an output hash, used to gate
// determinism across runs and platforms.
type GoldenRef struct {
	OutputHash  Hash
	SampleCount uint32
	OutputSize  uint32
	Platform    string
}

// GoldenVerify reports whether computed matches the golden reference's
// expected output hash, using constant-time comparison.
func GoldenVerify(computed Hash, ref GoldenRef) bool {
	return HashEqual(computed, ref.OutputHash)
}

// resultBindingPrefix domain-separates the result-binding commitment from
// any other use of SHA-256 in this system.
const resultBindingPrefix = "CB:RESULT:v1"

// platformFieldSize is the fixed width the platform string is padded (or
// truncated) to inside the result binding.
const platformFieldSize = 32

// ComputeResultHash computes the result-binding commitment:
//
//	SHA256(prefix || outputHash || platform[32] || LE64(configHash) ||
//	       LE64(minNS) || LE64(maxNS) || LE64(meanNS) || LE64(p99NS) ||
//	       LE64(timestampUnix))
//
// platform is right-padded with NUL bytes to exactly 32 bytes, truncated
// if longer. All multi-byte integer fields are little-endian.
func ComputeResultHash(outputHash Hash, platform string, configHash uint64, stats metrics.LatencyStats, timestampUnix uint64) Hash {
	var platformField [platformFieldSize]byte
	copy(platformField[:], platform)

	buf := make([]byte, 0, len(resultBindingPrefix)+HashSize+platformFieldSize+8*5)
	buf = append(buf, resultBindingPrefix...)
	buf = append(buf, outputHash[:]...)
	buf = append(buf, platformField[:]...)
	buf = appendLE64(buf, configHash)
	buf = appendLE64(buf, stats.MinNS)
	buf = appendLE64(buf, stats.MaxNS)
	buf = appendLE64(buf, stats.MeanNS)
	buf = appendLE64(buf, stats.P99NS)
	buf = appendLE64(buf, timestampUnix)

	return ComputeHash(buf)
}

func appendLE64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
