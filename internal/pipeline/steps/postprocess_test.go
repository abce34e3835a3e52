// Copyright 2025 James Ross
package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/pipeline"
)

func TestLatestVideoPathPrefersDigitalHumanSplice(t *testing.T) {
	inputs := pipeline.NewStepInputs(map[string]pipeline.StepResult{
		"DigitalHuman": pipeline.NewDigitalHumanResult("human.mp4", 0, nil),
		"Video":        pipeline.NewVideoResult("combined.mp4", 0, 1, nil),
	})
	path, err := latestVideoPath(inputs)
	require.NoError(t, err)
	assert.Equal(t, "human.mp4", path)
}

func TestLatestVideoPathFallsBackWhenDigitalHumanEmpty(t *testing.T) {
	inputs := pipeline.NewStepInputs(map[string]pipeline.StepResult{
		"DigitalHuman": pipeline.NewDigitalHumanResult("", 0, nil),
		"Video":        pipeline.NewVideoResult("combined.mp4", 0, 1, nil),
	})
	path, err := latestVideoPath(inputs)
	require.NoError(t, err)
	assert.Equal(t, "combined.mp4", path)
}

func TestLatestVideoPathErrorsWithoutVideoOrDigitalHuman(t *testing.T) {
	_, err := latestVideoPath(pipeline.NewStepInputs(nil))
	assert.Error(t, err)
}

func TestAccountLogoPathEmptyWithoutAccount(t *testing.T) {
	assert.Equal(t, "", accountLogoPath(&pipeline.PipelineContext{}))
}

func TestAccountLogoPathReturnsAccountLogo(t *testing.T) {
	pctx := &pipeline.PipelineContext{Account: &domain.Account{Logo: "logos/1.png"}}
	assert.Equal(t, "logos/1.png", accountLogoPath(pctx))
}
