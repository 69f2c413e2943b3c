package modality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	assert.Equal(t, WindowLevel{WindowCenter: 40, WindowWidth: 400}, Default("CT"))
	assert.Equal(t, WindowLevel{WindowCenter: 600, WindowWidth: 1200}, Default("MR"))
	assert.Equal(t, Default("CT"), Default(" ct "))
	assert.Equal(t, Default(Fallback), Default("XYZ"))
	assert.Equal(t, Default(Fallback), Default(""))
	assert.True(t, Known("DX"))
	assert.False(t, Known("XYZ"))
}

func TestViewportStateTransitions(t *testing.T) {
	var state ViewportState

	dicomCT := WindowLevel{WindowCenter: 50, WindowWidth: 350}
	state = state.ApplyNewDicomDefaults("CT", dicomCT)
	assert.Equal(t, dicomCT, state.Current("CT"))
	assert.False(t, state.IsCustomized("CT"))

	adjusted := WindowLevel{WindowCenter: 300, WindowWidth: 1500}
	before := state
	state = state.ApplyUserAdjustment("CT", adjusted)
	assert.True(t, state.IsCustomized("CT"))
	assert.Equal(t, dicomCT, before.Current("CT"), "transitions must not mutate the previous state")

	// New image with different defaults keeps the user's customization.
	state = state.ApplyNewDicomDefaults("CT", WindowLevel{WindowCenter: 60, WindowWidth: 360})
	assert.Equal(t, adjusted, state.Current("CT"))

	// Other modalities are independent.
	assert.Equal(t, Default("MR"), state.Current("MR"))
	assert.False(t, state.IsCustomized("MR"))
}

func TestIsCustomizedAgainstTableDefault(t *testing.T) {
	state := ViewportState{}.ApplyUserAdjustment("MR", Default("MR"))
	assert.False(t, state.IsCustomized("MR"))

	state = state.ApplyNewDicomDefaults("MR", WindowLevel{WindowCenter: 500, WindowWidth: 1000})
	assert.Equal(t, WindowLevel{WindowCenter: 500, WindowWidth: 1000}, state.Current("MR"))
}
