package mockinfer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteCopy_CopiesInputToOutput(t *testing.T) {
	input := []byte("hello world")
	output := make([]byte, len(input))
	require.NoError(t, ByteCopy(input, output))
	assert.Equal(t, input, output)
}

func TestByteCopy_ShorterOutput_TruncatesSilently(t *testing.T) {
	input := []byte("hello world")
	output := make([]byte, 5)
	require.NoError(t, ByteCopy(input, output))
	assert.Equal(t, []byte("hello"), output)
}

func TestFlaky_FailsOnConfiguredCadence(t *testing.T) {
	fn := Flaky(3)
	input := []byte("abc")
	output := make([]byte, 3)

	assert.NoError(t, fn(input, output))
	assert.NoError(t, fn(input, output))
	err := fn(input, output)
	assert.True(t, errors.Is(err, ErrSimulatedFault))
	assert.NoError(t, fn(input, output))
}

func TestFlaky_NonPositiveCadence_NeverFails(t *testing.T) {
	fn := Flaky(0)
	input := []byte("abc")
	output := make([]byte, 3)
	for i := 0; i < 10; i++ {
		assert.NoError(t, fn(input, output))
	}
}
