// Copyright 2025 James Ross
package broker

import (
	"encoding/json"
	"time"
)

// Task is the wire payload moved between the broker's priority lanes,
// a worker's processing list, and the dead letter queue.
type Task struct {
	ExecutionID  int64     `json:"execution_id"`
	JobID        int64     `json:"job_id"`
	Queue        string    `json:"queue"`
	Retries      int       `json:"retries"`
	CreationTime time.Time `json:"creation_time"`
	TraceID      string    `json:"trace_id"`
	SpanID       string    `json:"span_id"`
}

func NewTask(executionID, jobID int64, queue, traceID, spanID string) Task {
	return Task{
		ExecutionID:  executionID,
		JobID:        jobID,
		Queue:        queue,
		Retries:      0,
		CreationTime: time.Now().UTC(),
		TraceID:      traceID,
		SpanID:       spanID,
	}
}

func (t Task) Marshal() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func UnmarshalTask(s string) (Task, error) {
	var t Task
	err := json.Unmarshal([]byte(s), &t)
	return t, err
}
