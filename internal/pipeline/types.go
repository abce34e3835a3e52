// Copyright 2025 James Ross
// Package pipeline implements the ordered, typed step composition that turns
// a Job into a finished video: TTS, Subtitle, Split, Image, Video,
// DigitalHuman(conditional), PostProcess, Upload. Steps communicate through
// typed StepResult values resolved by a static dependency table — no step
// reads another step's private state, and nothing is mutated in place.
package pipeline

import (
	"context"
	"time"

	"github.com/videoforge/engine/internal/domain"
)

// StepResult is the tagged-variant output of a single step. Concrete types
// embed baseResult and add their own typed fields.
type StepResult interface {
	StepName() string
	Metadata() map[string]interface{}
}

type baseResult struct {
	stepName string
	metadata map[string]interface{}
}

func (b baseResult) StepName() string                 { return b.stepName }
func (b baseResult) Metadata() map[string]interface{}  { return b.metadata }

func newBase(step string, metadata map[string]interface{}) baseResult {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return baseResult{stepName: step, metadata: metadata}
}

type TTSResult struct {
	baseResult
	AudioPath string
	SRTPath   string
	Duration  time.Duration
}

func NewTTSResult(audioPath, srtPath string, dur time.Duration, metadata map[string]interface{}) *TTSResult {
	return &TTSResult{baseResult: newBase("TTS", metadata), AudioPath: audioPath, SRTPath: srtPath, Duration: dur}
}

type SubtitleResult struct {
	baseResult
	SRTPath       string
	SubtitleCount int
}

func NewSubtitleResult(srtPath string, count int, metadata map[string]interface{}) *SubtitleResult {
	return &SubtitleResult{baseResult: newBase("Subtitle", metadata), SRTPath: srtPath, SubtitleCount: count}
}

// Scene is one grouped subtitle-entry window with its derived image prompt.
// Field tags match the on-disk splits.json schema (spec.md §6), not Go
// field naming, since that file is read back by later steps as the
// authoritative scene list for an execution.
type Scene struct {
	Index   int    `json:"index"`
	StartMS int64  `json:"start"`
	EndMS   int64  `json:"end"`
	Text    string `json:"text"`
	Prompt  string `json:"prompt"`
}

type SplitResult struct {
	baseResult
	Splits []Scene
}

func NewSplitResult(splits []Scene, metadata map[string]interface{}) *SplitResult {
	return &SplitResult{baseResult: newBase("Split", metadata), Splits: splits}
}

type ImageResult struct {
	baseResult
	ImagePaths     []string
	SelectedImages []string
	GenerationTime time.Duration
	ParallelCount  int
}

func NewImageResult(imagePaths, selected []string, genTime time.Duration, parallelCount int, metadata map[string]interface{}) *ImageResult {
	return &ImageResult{
		baseResult:     newBase("Image", metadata),
		ImagePaths:     imagePaths,
		SelectedImages: selected,
		GenerationTime: genTime,
		ParallelCount:  parallelCount,
	}
}

type VideoResult struct {
	baseResult
	VideoPath    string
	Duration     time.Duration
	SegmentCount int
}

func NewVideoResult(videoPath string, dur time.Duration, segmentCount int, metadata map[string]interface{}) *VideoResult {
	return &VideoResult{baseResult: newBase("Video", metadata), VideoPath: videoPath, Duration: dur, SegmentCount: segmentCount}
}

type DigitalHumanResult struct {
	baseResult
	VideoPath string // empty when the step degraded non-fatally
	Duration  time.Duration
}

func NewDigitalHumanResult(videoPath string, dur time.Duration, metadata map[string]interface{}) *DigitalHumanResult {
	return &DigitalHumanResult{baseResult: newBase("DigitalHuman", metadata), VideoPath: videoPath, Duration: dur}
}

type PostProcessResult struct {
	baseResult
	FinalVideoPath  string
	ProcessingSteps []string
}

func NewPostProcessResult(finalVideoPath string, steps []string, metadata map[string]interface{}) *PostProcessResult {
	return &PostProcessResult{baseResult: newBase("PostProcess", metadata), FinalVideoPath: finalVideoPath, ProcessingSteps: steps}
}

type UploadStatus string

const (
	UploadSuccess UploadStatus = "success"
	UploadPartial UploadStatus = "partial"
	UploadFailed  UploadStatus = "failed"
)

type UploadResult struct {
	baseResult
	URLs   map[string]string
	Status UploadStatus
	Sizes  map[string]int64
}

func NewUploadResult(urls map[string]string, status UploadStatus, sizes map[string]int64, metadata map[string]interface{}) *UploadResult {
	return &UploadResult{baseResult: newBase("Upload", metadata), URLs: urls, Status: status, Sizes: sizes}
}

// PipelineContext carries job identity, the workspace directory, and the
// configuration snapshot loaded from the Job and its catalog rows. It is
// read-only after construction; steps never write back into it — their
// outputs flow through StepResult and the resolver instead.
type PipelineContext struct {
	JobID        int64
	UserID       string
	Workspace    string
	IsHorizontal bool
	Content      string

	Execution *domain.JobExecution

	Language *domain.Language
	Voice    *domain.Voice
	Topic    *domain.Topic
	Account  *domain.Account

	JobExtra     domain.JobExtra
	TopicExtra   domain.TopicExtra
	AccountExtra domain.AccountExtra
}

// Orientation returns the image/video resolution pair for this job.
func (c *PipelineContext) Orientation() (width, height int) {
	if c.IsHorizontal {
		return 1360, 768
	}
	return 768, 1360
}

// ResultManager stores each step's output, keyed by step name, in the
// order produced; Run exposes the full map on success.
type ResultManager struct {
	order   []string
	results map[string]StepResult
}

func NewResultManager() *ResultManager {
	return &ResultManager{results: map[string]StepResult{}}
}

func (m *ResultManager) Set(name string, r StepResult) {
	if _, exists := m.results[name]; !exists {
		m.order = append(m.order, name)
	}
	m.results[name] = r
}

func (m *ResultManager) Get(name string) (StepResult, bool) {
	r, ok := m.results[name]
	return r, ok
}

func (m *ResultManager) All() map[string]StepResult {
	out := make(map[string]StepResult, len(m.results))
	for k, v := range m.results {
		out[k] = v
	}
	return out
}

// StepInputs is the resolved view of upstream results a step declared a
// dependency on, handed to Execute in place of reading the context.
type StepInputs struct {
	deps map[string]StepResult
}

// NewStepInputs builds a StepInputs directly from a name-to-result map,
// bypassing the dependency table in resolveInputs. Tests exercising a
// single step in isolation use this to hand it exactly the upstream
// results it declares a dependency on.
func NewStepInputs(deps map[string]StepResult) StepInputs {
	return StepInputs{deps: deps}
}

func (i StepInputs) Result(stepName string) (StepResult, bool) {
	r, ok := i.deps[stepName]
	return r, ok
}

// Step is the contract every pipeline stage implements. Execute's output is
// returned, never written into PipelineContext as a side effect.
type Step interface {
	Name() string
	Description() string
	Validate(pctx *PipelineContext) error
	Execute(ctx context.Context, pctx *PipelineContext, inputs StepInputs) (StepResult, error)
	PostProcess(pctx *PipelineContext, result StepResult)
}

// ConditionalStep is implemented by steps the executor may skip entirely
// (currently only DigitalHumanStep).
type ConditionalStep interface {
	Step
	ShouldExecute(pctx *PipelineContext) bool
}
