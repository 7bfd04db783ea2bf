// Package mockinfer provides inference functions for exercising the
// benchmark harness without a real model: a deterministic byte-copy
// target, and a variant that fails on a configurable cadence to exercise
// the runner's verification-failure path.
package mockinfer

import (
	"errors"

	"github.com/mushkilali/certifiable-bench/bench/runner"
)

// ErrSimulatedFault is returned by Flaky on its configured failure
// iterations.
var ErrSimulatedFault = errors.New("mockinfer: simulated inference fault")

// ByteCopy is a trivial, pure inference target: it copies input into
// output (up to the shorter of the two lengths) and never fails. It
// exists to exercise timing and verification without any model
// computation — the benchmark measures the harness, not a model.
func ByteCopy(input, output []byte) error {
	copy(output, input)
	return nil
}

// Flaky returns an InferenceFunc that behaves like ByteCopy but returns
// ErrSimulatedFault on every failEvery-th call (calls failEvery,
// 2*failEvery, ...; the first failEvery-1 calls succeed).
// failEvery <= 0 never fails.
func Flaky(failEvery int) runner.InferenceFunc {
	call := 0
	return func(input, output []byte) error {
		copy(output, input)
		call++
		if failEvery > 0 && call%failEvery == 0 {
			return ErrSimulatedFault
		}
		return nil
	}
}
