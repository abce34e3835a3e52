// Copyright 2025 James Ross
// Package domain holds the catalog/job/execution entities shared by the
// store, pipeline and control-plane packages. Entities are plain structs
// with db tags; no ORM relations are embedded, callers join explicitly.
package domain

import (
	"encoding/json"
	"time"
)

// User is the identity principal. Never hard-deleted.
type User struct {
	ID           string    `db:"user_id" json:"user_id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

// Language is a catalog entity owned by a user.
type Language struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Platform     string     `db:"platform" json:"platform"`
	LanguageName string     `db:"language_name" json:"language_name"`
	UserID       *string    `db:"user_id" json:"user_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Voice is a catalog entity: a named reference audio sample.
type Voice struct {
	ID        int64      `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Path      string     `db:"path" json:"path"`
	UserID    *string    `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Topic carries the prompt templates driving image generation plus an
// optional style-adapter name and weight.
type Topic struct {
	ID               int64           `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	PromptGenImage   string          `db:"prompt_gen_image" json:"prompt_gen_image"`
	PromptCoverImage string          `db:"prompt_cover_image" json:"prompt_cover_image"`
	PromptImagePrefix string         `db:"prompt_image_prefix" json:"prompt_image_prefix"`
	StyleAdapterName string          `db:"style_adapter_name" json:"style_adapter_name"`
	StyleAdapterWeight int           `db:"style_adapter_weight" json:"style_adapter_weight"`
	Extra            json.RawMessage `db:"extra" json:"extra"`
	UserID           *string         `db:"user_id" json:"user_id,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// TopicExtra is the decoded shape of Topic.Extra; undefined fields default
// to the most conservative setting per SPEC_FULL §9 (no transitions,
// fullscreen, legacy generator).
type TopicExtra struct {
	GenerateType                string `json:"generate_type"`
	EnableSRTConcatTransition    bool   `json:"enable_srt_concat_transition"`
	HumanInsertionMode           string `json:"human_insertion_mode"`
	SegmentDurationSeconds       float64 `json:"segment_duration_seconds"`
}

// Account carries logo location and digital-human/subtitle styling.
type Account struct {
	ID        int64           `db:"id" json:"id"`
	Username  string          `db:"username" json:"username"`
	Logo      string          `db:"logo" json:"logo"`
	Platform  string          `db:"platform" json:"platform"`
	Extra     json.RawMessage `db:"extra" json:"extra"`
	UserID    *string         `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// AccountExtra is the decoded shape of Account.Extra.
type AccountExtra struct {
	DigitalHuman  *DigitalHumanConfig `json:"digital_human_config,omitempty"`
	SubtitleStyle SubtitleStyle       `json:"subtitle_style"`
}

// DigitalHumanConfig configures the optional lip-synced overlay.
type DigitalHumanConfig struct {
	Mode                string   `json:"mode"` // fullscreen | corner
	IntroDuration       float64  `json:"intro_duration_seconds"`
	OutroDuration       float64  `json:"outro_duration_seconds"`
	EnableTransition    bool     `json:"enable_transition"`
	TransitionDuration  float64  `json:"transition_duration_seconds"`
	TransitionList      []string `json:"transition_list"`
	CornerWidthPx       int      `json:"corner_width_px"`
	CornerPositionX     int      `json:"corner_position_x"`
	CornerPositionY     int      `json:"corner_position_y"`
	ChromaKeyThreshold  float64  `json:"chroma_key_threshold"`
}

// SubtitleStyle configures the burned-in subtitle renderer.
type SubtitleStyle struct {
	FontName  string `json:"font_name"`
	FontSize  int    `json:"font_size"`
	ColorBGR  string `json:"color_bgr"` // BGR hex, per the renderer's native color order
	LogoWidthPx int  `json:"logo_width_px"`
}

// Job is the immutable configuration of a video to produce. Execution state
// lives on JobExecution, never here.
type Job struct {
	ID            int64           `db:"id" json:"id"`
	OwnerID       string          `db:"user_id" json:"user_id"`
	Title         string          `db:"title" json:"title"`
	Content       string          `db:"content" json:"content"`
	LanguageID    *int64          `db:"language_id" json:"language_id,omitempty"`
	VoiceID       *int64          `db:"voice_id" json:"voice_id,omitempty"`
	TopicID       *int64          `db:"topic_id" json:"topic_id,omitempty"`
	AccountID     *int64          `db:"account_id" json:"account_id,omitempty"`
	SpeechSpeed   float64         `db:"speech_speed" json:"speech_speed"`
	IsHorizontal  bool            `db:"is_horizontal" json:"is_horizontal"`
	Extra         json.RawMessage `db:"extra" json:"extra"`
	RunOrder      int             `db:"run_order" json:"run_order"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// JobExtra is the decoded shape of Job.Extra.
type JobExtra struct {
	LanguageConfig       LanguageConfig `json:"language_config"`
	EnableDigitalHuman   bool           `json:"enable_digital_human"`
}

// LanguageConfig carries per-job text-processing toggles.
type LanguageConfig struct {
	TraditionalChinese bool `json:"traditional_chinese"`
	NormalizeFullwidth bool `json:"normalize_fullwidth"`
}

// ExecutionStatus is the durable, English-named status enum. Localized or
// legacy labels live only in StatusDetail (see LegacyStatus).
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "PENDING"
	StatusRunning   ExecutionStatus = "RUNNING"
	StatusSuccess   ExecutionStatus = "SUCCESS"
	StatusFailed    ExecutionStatus = "FAILED"
	StatusCancelled ExecutionStatus = "CANCELLED"
	StatusTimeout   ExecutionStatus = "TIMEOUT"
	StatusSkipped   ExecutionStatus = "SKIPPED"
)

// legacyStatusAliases maps historical lower-case English string values
// (several past naming schemes) onto the current enum, per spec.md §6.
var legacyStatusAliases = map[string]ExecutionStatus{
	"pending": StatusPending, "waiting": StatusPending,
	"processing": StatusRunning, "running": StatusRunning, "in_progress": StatusRunning,
	"success": StatusSuccess, "completed": StatusSuccess, "finished": StatusSuccess,
	"failed": StatusFailed, "error": StatusFailed,
	"cancelled": StatusCancelled,
	"timeout":   StatusTimeout,
	"skipped":   StatusSkipped,
}

// ParseLegacyStatus converts a historical status string (import of
// historical rows) into the current enum. Returns ok=false for unknown
// values.
func ParseLegacyStatus(s string) (ExecutionStatus, bool) {
	v, ok := legacyStatusAliases[s]
	return v, ok
}

// allowedTransitions is the whitelist of status edges from spec.md §3/§8.
var allowedTransitions = map[ExecutionStatus]map[ExecutionStatus]bool{
	StatusPending: {StatusRunning: true, StatusCancelled: true},
	StatusRunning: {StatusSuccess: true, StatusFailed: true, StatusTimeout: true},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge.
func CanTransition(from, to ExecutionStatus) bool {
	edges, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// IsTerminal reports whether a status is terminal (no further transitions).
func IsTerminal(s ExecutionStatus) bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	default:
		return false
	}
}

// ResultKeyBundle is the JSON map stored on JobExecution.ResultKey.
type ResultKeyBundle struct {
	VideoOSSKey *string `json:"video_oss_key"`
	CoverOSSKey *string `json:"cover_oss_key"`
	AudioOSSKey *string `json:"audio_oss_key"`
	SRTOSSKey   *string `json:"srt_oss_key"`
}

// JobExecution is one attempt at executing a Job.
type JobExecution struct {
	ID              int64           `db:"id" json:"id"`
	JobID           int64           `db:"job_id" json:"job_id"`
	Status          ExecutionStatus `db:"status" json:"status"`
	StatusDetail    string          `db:"status_detail" json:"status_detail"`
	WorkerHostname  string          `db:"worker_hostname" json:"worker_hostname"`
	StartedAt       *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt      *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	RetryCount      int             `db:"retry_count" json:"retry_count"`
	ErrorMessage    string          `db:"error_message" json:"error_message,omitempty"`
	ResultKey       json.RawMessage `db:"result_key" json:"result_key,omitempty"`
	ExecutionMetadata json.RawMessage `db:"execution_metadata" json:"execution_metadata,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Duration returns the execution's wall-clock runtime, if both endpoints
// are set.
func (e *JobExecution) Duration() (time.Duration, bool) {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0, false
	}
	return e.FinishedAt.Sub(*e.StartedAt), true
}

// JobSplit is one scene boundary for a Job.
type JobSplit struct {
	ID         int64      `db:"id" json:"id"`
	JobID      int64      `db:"job_id" json:"job_id"`
	Index      int        `db:"index" json:"index"`
	StartMS    int64      `db:"start_ms" json:"start_ms"`
	EndMS      int64      `db:"end_ms" json:"end_ms"`
	Text       string     `db:"text" json:"text"`
	Prompt     string     `db:"prompt" json:"prompt"`
	Images     json.RawMessage `db:"images" json:"images,omitempty"`
	Selected   *string    `db:"selected" json:"selected,omitempty"`
	VideoPath  *string    `db:"video_path" json:"video_path,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// StepExecutionRecord is transient, per-step bookkeeping aggregated into
// JobExecution.ExecutionMetadata at terminal edges. Not persisted directly.
type StepExecutionRecord struct {
	Name        string     `json:"name"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"` // ok | failed | skipped
	Error       string     `json:"error,omitempty"`
}
