// Copyright 2025 James Ross
package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/videoforge/engine/internal/pipeline"
)

const (
	videoFanOutThreshold   = 3
	defaultSegmentDuration = 5 * time.Second
)

var defaultTransitions = []string{"fade"}

// VideoStep renders each scene image into a fixed-duration video segment
// and concatenates the segments into a single composite. Encoding runs on
// a local bounded worker pool (golang.org/x/sync/errgroup, sized to
// min(GOMAXPROCS, configured cap)) when the batch is 3 or more, and
// sequentially otherwise — an in-process pool, the same shape as
// ImageStep's fan-out. Audio is mixed in later by PostProcessStep.
type VideoStep struct {
	ffmpegTimeout time.Duration
	parallelCap   int
}

func NewVideoStep(ffmpegTimeout time.Duration, parallelCap int) *VideoStep {
	if ffmpegTimeout <= 0 {
		ffmpegTimeout = 2 * time.Minute
	}
	if parallelCap <= 0 {
		parallelCap = runtime.GOMAXPROCS(0)
	}
	return &VideoStep{ffmpegTimeout: ffmpegTimeout, parallelCap: parallelCap}
}

func (s *VideoStep) Name() string        { return "Video" }
func (s *VideoStep) Description() string { return "renders scene images into a composite video" }

func (s *VideoStep) Validate(pctx *pipeline.PipelineContext) error {
	if pctx.Workspace == "" {
		return fmt.Errorf("workspace is not set")
	}
	return nil
}

func (s *VideoStep) Execute(ctx context.Context, pctx *pipeline.PipelineContext, inputs pipeline.StepInputs) (pipeline.StepResult, error) {
	imageResult, ok := inputs.Result("Image")
	if !ok {
		return nil, fmt.Errorf("video step requires an Image result")
	}
	images, ok := imageResult.(*pipeline.ImageResult)
	if !ok {
		return nil, fmt.Errorf("video step: unexpected upstream result type %T", imageResult)
	}

	videoDir := filepath.Join(pctx.Workspace, "videos")
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		return nil, fmt.Errorf("create videos dir: %w", err)
	}

	segDuration := defaultSegmentDuration
	if pctx.TopicExtra.SegmentDurationSeconds > 0 {
		segDuration = time.Duration(pctx.TopicExtra.SegmentDurationSeconds * float64(time.Second))
	}
	width, height := pctx.Orientation()

	n := len(images.ImagePaths)
	segPaths := make([]string, n)

	encode := func(ctx context.Context, idx int) error {
		out := filepath.Join(videoDir, fmt.Sprintf("segment_%03d.mp4", idx))
		transition := defaultTransitions[idx%len(defaultTransitions)]
		err := runFFmpeg(ctx, s.ffmpegTimeout,
			"-loop", "1",
			"-i", images.ImagePaths[idx],
			"-t", fmt.Sprintf("%.3f", segDuration.Seconds()),
			"-vf", fmt.Sprintf("scale=%d:%d", width, height),
			"-pix_fmt", "yuv420p",
			out,
		)
		_ = transition // recorded per-segment for the renderer; blending itself is concat-only in this engine
		if err != nil {
			return fmt.Errorf("encode segment %d: %w", idx, err)
		}
		segPaths[idx] = out
		return nil
	}

	if n >= videoFanOutThreshold {
		poolSize := s.parallelCap
		if poolSize > n {
			poolSize = n
		}
		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, poolSize)
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				sem <- struct{}{}
				defer func() { <-sem }()
				return encode(gctx, i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := 0; i < n; i++ {
			if err := encode(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	combined := filepath.Join(videoDir, "combined.mp4")
	if err := concatSegments(ctx, s.ffmpegTimeout, videoDir, segPaths, combined); err != nil {
		return nil, err
	}

	return pipeline.NewVideoResult(combined, segDuration*time.Duration(n), n, nil), nil
}

func (s *VideoStep) PostProcess(_ *pipeline.PipelineContext, _ pipeline.StepResult) {}

// concatSegments joins pre-encoded segments in order via ffmpeg's concat
// demuxer. Segments already share codec/resolution (encode applies the
// same scale filter to each), so a stream copy is safe and fast.
func concatSegments(ctx context.Context, timeout time.Duration, dir string, segments []string, out string) error {
	listPath := filepath.Join(dir, "concat_list.txt")
	f, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	for _, seg := range segments {
		if _, err := fmt.Fprintf(f, "file '%s'\n", seg); err != nil {
			f.Close()
			return fmt.Errorf("write concat list: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close concat list: %w", err)
	}

	if err := runFFmpeg(ctx, timeout, "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", out); err != nil {
		return fmt.Errorf("concat segments: %w", err)
	}
	return nil
}
