// Copyright 2025 James Ross
package steps

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/videoforge/engine/internal/clients"
	"github.com/videoforge/engine/internal/pipeline"
)

// UploadStep ships the final artifacts to object storage under a
// per-(user,job) prefix and records the resulting keys as the execution's
// result bundle.
type UploadStep struct {
	storage clients.FileStorageService
}

func NewUploadStep(storage clients.FileStorageService) *UploadStep {
	return &UploadStep{storage: storage}
}

func (s *UploadStep) Name() string        { return "Upload" }
func (s *UploadStep) Description() string { return "uploads the final artifacts to object storage" }

func (s *UploadStep) Validate(pctx *pipeline.PipelineContext) error {
	if pctx.UserID == "" {
		return fmt.Errorf("user id is empty")
	}
	return nil
}

func (s *UploadStep) Execute(ctx context.Context, pctx *pipeline.PipelineContext, inputs pipeline.StepInputs) (pipeline.StepResult, error) {
	postResult, ok := inputs.Result("PostProcess")
	if !ok {
		return nil, fmt.Errorf("upload step requires a PostProcess result")
	}
	post, ok := postResult.(*pipeline.PostProcessResult)
	if !ok {
		return nil, fmt.Errorf("upload step: unexpected upstream result type %T", postResult)
	}

	ttsResult, _ := inputs.Result("TTS")
	tts, _ := ttsResult.(*pipeline.TTSResult)
	subResult, _ := inputs.Result("Subtitle")
	sub, _ := subResult.(*pipeline.SubtitleResult)
	imgResult, _ := inputs.Result("Image")
	img, _ := imgResult.(*pipeline.ImageResult)

	prefix := fmt.Sprintf("videos/%s/%d", strings.ReplaceAll(pctx.UserID, "-", ""), pctx.JobID)

	urls := map[string]string{}
	sizes := map[string]int64{}
	uploaded := map[string]bool{}

	type upload struct {
		field, local, key string
	}
	var uploads []upload
	uploads = append(uploads, upload{"video", post.FinalVideoPath, "final.mp4"})
	if img != nil && len(img.ImagePaths) > 0 {
		uploads = append(uploads, upload{"cover", img.ImagePaths[0], "cover.png"})
	}
	if tts != nil {
		uploads = append(uploads, upload{"audio", tts.AudioPath, "audio.mp3"})
	}
	if sub != nil {
		uploads = append(uploads, upload{"srt", sub.SRTPath, "subtitle.srt"})
	}

	for _, u := range uploads {
		objectKey, err := s.storage.Upload(ctx, u.local, prefix+"/"+u.key)
		if err != nil {
			if u.field == "video" {
				return nil, fmt.Errorf("upload final video: %w", err)
			}
			continue
		}
		uploaded[u.field] = true
		urls[u.field+"_oss_key"] = objectKey
		if fi, statErr := os.Stat(u.local); statErr == nil {
			sizes[u.field] = fi.Size()
		}
	}

	status := pipeline.UploadSuccess
	switch {
	case !uploaded["video"]:
		return nil, fmt.Errorf("final video was not uploaded")
	case !uploaded["cover"] || !uploaded["audio"] || !uploaded["srt"]:
		status = pipeline.UploadPartial
	}

	return pipeline.NewUploadResult(urls, status, sizes, nil), nil
}

func (s *UploadStep) PostProcess(_ *pipeline.PipelineContext, _ pipeline.StepResult) {}
