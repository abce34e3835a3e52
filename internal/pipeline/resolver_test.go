// Copyright 2025 James Ross
package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeResult struct {
	baseResult
}

func TestResolveInputsOnlyIncludesProducedDependencies(t *testing.T) {
	rm := NewResultManager()
	rm.Set("TTS", fakeResult{newBase("TTS", nil)})

	inputs := resolveInputs("Video", rm)

	_, hasImage := inputs.Result("Image")
	tts, hasTTS := inputs.Result("TTS")

	assert.False(t, hasImage, "Image hasn't run yet, so Video shouldn't see it")
	assert.True(t, hasTTS)
	assert.Equal(t, "TTS", tts.StepName())
}

func TestResolveInputsTTSHasNoDependencies(t *testing.T) {
	rm := NewResultManager()
	inputs := resolveInputs("TTS", rm)
	_, ok := inputs.Result("anything")
	assert.False(t, ok)
}

func TestResolveInputsPostProcessToleratesMissingDigitalHuman(t *testing.T) {
	rm := NewResultManager()
	rm.Set("Video", fakeResult{newBase("Video", nil)})
	rm.Set("TTS", fakeResult{newBase("TTS", nil)})
	rm.Set("Subtitle", fakeResult{newBase("Subtitle", nil)})

	inputs := resolveInputs("PostProcess", rm)

	_, hasDigitalHuman := inputs.Result("DigitalHuman")
	_, hasVideo := inputs.Result("Video")
	assert.False(t, hasDigitalHuman)
	assert.True(t, hasVideo)
}
