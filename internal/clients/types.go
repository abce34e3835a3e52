// Copyright 2025 James Ross
// Package clients holds the abstract interfaces and HTTP/S3 adapters for
// the external collaborators a pipeline step calls out to: speech
// synthesis, image generation, digital-human rendering, object storage,
// and an LLM used for prompt enrichment. Each interface is dependency-
// inverted the way the teacher's queue backend was: steps depend on the
// interface, main wires the concrete adapter.
package clients

import "context"

// TTSRequest asks for speech synthesis of text in a voice at a given speed.
type TTSRequest struct {
	Text        string
	VoicePath   string
	SpeechSpeed float64
	Language    string
}

type TTSResponse struct {
	AudioPath   string
	DurationMS  int64
	SRTPath     string
}

type TTSService interface {
	Synthesize(ctx context.Context, req TTSRequest) (*TTSResponse, error)
}

// ImageRequest asks for one generated image matching a prompt, optionally
// adapted to a named style.
type ImageRequest struct {
	Prompt             string
	StyleAdapterName   string
	StyleAdapterWeight int
	Width              int
	Height             int
}

type ImageResponse struct {
	ImagePath string
}

type ImageGenerationService interface {
	Generate(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// DigitalHumanRequest asks for a lip-synced overlay render driven by an
// audio track.
type DigitalHumanRequest struct {
	AudioPath string
	Mode      string // fullscreen | corner
}

type DigitalHumanResponse struct {
	VideoPath string
}

type DigitalHumanService interface {
	Render(ctx context.Context, req DigitalHumanRequest) (*DigitalHumanResponse, error)
}

// FileStorageService abstracts the object store a finished artifact (video,
// cover image, audio, subtitle file) is uploaded to.
type FileStorageService interface {
	Upload(ctx context.Context, localPath, key string) (objectKey string, err error)
	PresignGet(ctx context.Context, key string) (url string, err error)
}

// LLMRequest asks a chat-completion model for a single text response.
type LLMRequest struct {
	Prompt string
	Model  string
}

type LLMResponse struct {
	Text   string
	Cached bool
}

type LLMService interface {
	Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error)
}
