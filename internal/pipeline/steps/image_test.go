// Copyright 2025 James Ross
package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/videoforge/engine/internal/clients"
	"github.com/videoforge/engine/internal/errs"
	"github.com/videoforge/engine/internal/pipeline"
)

type fakeImageService struct {
	mock.Mock
}

func (f *fakeImageService) Generate(ctx context.Context, req clients.ImageRequest) (*clients.ImageResponse, error) {
	args := f.Called(ctx, req)
	resp, _ := args.Get(0).(*clients.ImageResponse)
	return resp, args.Error(1)
}

func writeSceneSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))
	return path
}

func TestImageStepExecuteSequentialBelowFanOutThreshold(t *testing.T) {
	workspace := t.TempDir()
	srcDir := t.TempDir()
	src0 := writeSceneSource(t, srcDir, "s0.png")
	src1 := writeSceneSource(t, srcDir, "s1.png")

	svc := new(fakeImageService)
	svc.On("Generate", mock.Anything, mock.Anything).Return(&clients.ImageResponse{ImagePath: src0}, nil).Once()
	svc.On("Generate", mock.Anything, mock.Anything).Return(&clients.ImageResponse{ImagePath: src1}, nil).Once()

	step := NewImageStep(svc, 4)
	pctx := &pipeline.PipelineContext{Workspace: workspace}
	inputs := pipeline.NewStepInputs(map[string]pipeline.StepResult{
		"Split": pipeline.NewSplitResult([]pipeline.Scene{
			{Index: 0, Prompt: "scene 0"},
			{Index: 1, Prompt: "scene 1"},
		}, nil),
	})

	result, err := step.Execute(context.Background(), pctx, inputs)
	require.NoError(t, err)

	img := result.(*pipeline.ImageResult)
	assert.Len(t, img.ImagePaths, 2)
	assert.Equal(t, 1, img.ParallelCount)
	for _, p := range img.ImagePaths {
		assert.FileExists(t, p)
	}
}

func TestImageStepExecuteFansOutAtOrAboveThreshold(t *testing.T) {
	workspace := t.TempDir()
	srcDir := t.TempDir()

	svc := new(fakeImageService)
	scenes := make([]pipeline.Scene, 0, imageFanOutThreshold)
	for i := 0; i < imageFanOutThreshold; i++ {
		src := writeSceneSource(t, srcDir, fmt.Sprintf("s%d.png", i))
		svc.On("Generate", mock.Anything, mock.Anything).Return(&clients.ImageResponse{ImagePath: src}, nil).Once()
		scenes = append(scenes, pipeline.Scene{Index: i, Prompt: fmt.Sprintf("scene %d", i)})
	}

	step := NewImageStep(svc, 2)
	pctx := &pipeline.PipelineContext{Workspace: workspace}
	inputs := pipeline.NewStepInputs(map[string]pipeline.StepResult{
		"Split": pipeline.NewSplitResult(scenes, nil),
	})

	result, err := step.Execute(context.Background(), pctx, inputs)
	require.NoError(t, err)

	img := result.(*pipeline.ImageResult)
	assert.Len(t, img.ImagePaths, imageFanOutThreshold)
	assert.Equal(t, 2, img.ParallelCount)
}

func TestGenerateWithRetryRetriesOnceOnTransientError(t *testing.T) {
	svc := new(fakeImageService)
	svc.On("Generate", mock.Anything, mock.Anything).
		Return(nil, errs.NewTransientServiceError("image-svc", fmt.Errorf("timeout"))).Once()
	svc.On("Generate", mock.Anything, mock.Anything).
		Return(&clients.ImageResponse{ImagePath: "ok.png"}, nil).Once()

	resp, err := generateWithRetry(context.Background(), svc, clients.ImageRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok.png", resp.ImagePath)
	svc.AssertExpectations(t)
}

func TestGenerateWithRetryDoesNotRetryPermanentError(t *testing.T) {
	svc := new(fakeImageService)
	svc.On("Generate", mock.Anything, mock.Anything).
		Return(nil, errs.NewPermanentServiceError("image-svc", fmt.Errorf("bad prompt"))).Once()

	_, err := generateWithRetry(context.Background(), svc, clients.ImageRequest{Prompt: "p"})
	assert.Error(t, err)
	svc.AssertExpectations(t)
}
