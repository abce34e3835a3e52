// Copyright 2025 James Ross
package broker

import "testing"

func TestTaskMarshalUnmarshal(t *testing.T) {
	task := NewTask(1, 2, "jobengine:video_processing", "trace-1", "span-1")
	s, err := task.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalTask(s)
	if err != nil {
		t.Fatal(err)
	}
	if got.ExecutionID != task.ExecutionID || got.JobID != task.JobID || got.Queue != task.Queue {
		t.Fatalf("roundtrip mismatch: %#v vs %#v", task, got)
	}
}
