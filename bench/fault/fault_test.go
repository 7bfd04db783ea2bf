package fault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlags_HasHardFault_IgnoresThermalDrift(t *testing.T) {
	// BDD: ThermalDrift alone is a warning, not a hard fault
	f := Clear().Set(ThermalDrift)
	assert.False(t, f.HasHardFault())
	assert.True(t, f.HasWarning())
}

func TestFlags_HasHardFault_EachHardBit(t *testing.T) {
	tests := []struct {
		name string
		bit  Flags
	}{
		{"overflow", Overflow},
		{"underflow", Underflow},
		{"div_zero", DivZero},
		{"timer_error", TimerError},
		{"verify_fail", VerifyFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Clear().Set(tt.bit)
			assert.True(t, f.HasHardFault())
			assert.False(t, f.HasWarning())
		})
	}
}

func TestFlags_Set_IsSticky(t *testing.T) {
	f := Clear()
	f = f.Set(Overflow)
	f = f.Set(Overflow)
	assert.True(t, f.Has(Overflow))
}

func TestFlags_Merge(t *testing.T) {
	a := Clear().Set(Overflow)
	b := Clear().Set(DivZero)
	merged := a.Merge(b)
	assert.True(t, merged.Has(Overflow))
	assert.True(t, merged.Has(DivZero))
}

func TestFlags_Clear_IsZero(t *testing.T) {
	assert.Equal(t, Flags(0), Clear())
}
