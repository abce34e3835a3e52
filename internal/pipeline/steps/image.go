// Copyright 2025 James Ross
package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/videoforge/engine/internal/clients"
	"github.com/videoforge/engine/internal/errs"
	"github.com/videoforge/engine/internal/pipeline"
)

const imageFanOutThreshold = 3

// ImageStep generates one image per scene. Batches of 3 or more scenes
// fan out across a bounded worker pool (golang.org/x/sync/errgroup, the
// same concurrency primitive VideoStep uses) so sub-requests run
// concurrently instead of round-tripping the image service one at a time;
// smaller batches run sequentially to avoid pool-spawn overhead. Each
// sub-request gets its own short retry envelope independent of the
// broker's own redelivery.
type ImageStep struct {
	svc         clients.ImageGenerationService
	parallelCap int
}

func NewImageStep(svc clients.ImageGenerationService, parallelCap int) *ImageStep {
	if parallelCap <= 0 {
		parallelCap = 4
	}
	return &ImageStep{svc: svc, parallelCap: parallelCap}
}

func (s *ImageStep) Name() string        { return "Image" }
func (s *ImageStep) Description() string { return "generates one image per scene" }

func (s *ImageStep) Validate(pctx *pipeline.PipelineContext) error {
	if pctx.Workspace == "" {
		return fmt.Errorf("workspace is not set")
	}
	return nil
}

func (s *ImageStep) Execute(ctx context.Context, pctx *pipeline.PipelineContext, inputs pipeline.StepInputs) (pipeline.StepResult, error) {
	splitResult, ok := inputs.Result("Split")
	if !ok {
		return nil, fmt.Errorf("image step requires a Split result")
	}
	split, ok := splitResult.(*pipeline.SplitResult)
	if !ok {
		return nil, fmt.Errorf("image step: unexpected upstream result type %T", splitResult)
	}

	imgDir := filepath.Join(pctx.Workspace, "images")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}

	width, height := pctx.Orientation()
	var styleName string
	var styleWeight int
	if pctx.Topic != nil {
		styleName = pctx.Topic.StyleAdapterName
		styleWeight = pctx.Topic.StyleAdapterWeight
	}

	n := len(split.Splits)
	paths := make([]string, n)

	start := time.Now()
	generate := func(ctx context.Context, idx int) error {
		scene := split.Splits[idx]
		req := clients.ImageRequest{
			Prompt:             scene.Prompt,
			StyleAdapterName:   styleName,
			StyleAdapterWeight: styleWeight,
			Width:              width,
			Height:             height,
		}
		resp, err := generateWithRetry(ctx, s.svc, req)
		if err != nil {
			return fmt.Errorf("scene %d: %w", idx, err)
		}
		dst := filepath.Join(imgDir, fmt.Sprintf("scene_%03d.png", idx))
		if err := downloadOrCopy(resp.ImagePath, dst); err != nil {
			return fmt.Errorf("scene %d: stage image: %w", idx, err)
		}
		paths[idx] = dst
		return nil
	}

	parallelCount := 1
	if n >= imageFanOutThreshold {
		parallelCount = s.parallelCap
		if parallelCount > n {
			parallelCount = n
		}
		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, parallelCount)
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				sem <- struct{}{}
				defer func() { <-sem }()
				return generate(gctx, i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := 0; i < n; i++ {
			if err := generate(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	selected := make([]string, len(paths))
	copy(selected, paths)

	return pipeline.NewImageResult(paths, selected, time.Since(start), parallelCount, nil), nil
}

func (s *ImageStep) PostProcess(_ *pipeline.PipelineContext, _ pipeline.StepResult) {}

// generateWithRetry retries a transient failure once more before giving
// up; permanent failures (4xx, malformed prompts) are not retried here at
// all, since the broker-level retry envelope does not apply to an
// in-process sub-request.
func generateWithRetry(ctx context.Context, svc clients.ImageGenerationService, req clients.ImageRequest) (*clients.ImageResponse, error) {
	resp, err := svc.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !errs.IsRetryable(err) {
		return nil, err
	}
	return svc.Generate(ctx, req)
}
