// Copyright 2025 James Ross
// Package controlapi is the control plane from spec.md §5: job submission,
// status/result lookup, and liveness/readiness probes, fronted by a
// hand-rolled HMAC-signed bearer token.
package controlapi

import (
	"encoding/json"

	"github.com/videoforge/engine/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SubmitJobRequest is the client-facing payload for creating a job and
// immediately enqueueing its first execution.
type SubmitJobRequest struct {
	Title        string          `json:"title"`
	Content      string          `json:"content"`
	LanguageID   *int64          `json:"language_id,omitempty"`
	VoiceID      *int64          `json:"voice_id,omitempty"`
	TopicID      *int64          `json:"topic_id,omitempty"`
	AccountID    *int64          `json:"account_id,omitempty"`
	SpeechSpeed  float64         `json:"speech_speed"`
	IsHorizontal bool            `json:"is_horizontal"`
	Extra        json.RawMessage `json:"extra,omitempty"`
	Priority     string          `json:"priority,omitempty"` // video|image|maintenance, defaults to video
}

type SubmitJobResponse struct {
	Job       *domain.Job          `json:"job"`
	Execution *domain.JobExecution `json:"execution"`
}

// Claims mirrors the hand-rolled bearer token shape: subject + roles +
// standard JWT time fields, HMAC-SHA256 signed.
type Claims struct {
	Subject   string   `json:"sub"`
	Roles     []string `json:"roles"`
	ExpiresAt int64    `json:"exp"`
	IssuedAt  int64    `json:"iat"`
}

func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
