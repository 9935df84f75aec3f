package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dekkonot/open-cloud-execute/internal/client"
	"github.com/dekkonot/open-cloud-execute/internal/models"
)

func TestRun(t *testing.T) {
	fake := newFakeCloud(t, models.TaskStateQueued, models.TaskStateProcessing, models.TaskStateComplete)
	fake.output = &models.TaskOutput{Results: []json.RawMessage{json.RawMessage(`"This is an example script."`)}}
	fake.logs = models.LogsResponse{TaskLogs: []models.LogEntry{{
		StructuredMessages: []models.StructuredMessage{
			{Message: "Hello World!", MessageType: models.MessageTypeOutput},
		},
	}}}
	svc, _ := startFakeCloud(t, fake)

	var stages []RunStage
	polls := 0
	result, err := svc.Run(context.Background(), RunRequest{
		APIKey:     "k",
		PlaceID:    "222",
		UniverseID: "111",
		Script:     `print("Hello World!")`,
	}, func(e RunEvent) {
		if e.Poll != nil {
			polls++
			return
		}
		stages = append(stages, e.Stage)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantStages := []RunStage{StageSubmitting, StageAwaiting, StageLogs, StageDone}
	if len(stages) != len(wantStages) {
		t.Fatalf("expected stages %v, got %v", wantStages, stages)
	}
	for i := range wantStages {
		if stages[i] != wantStages[i] {
			t.Fatalf("expected stages %v, got %v", wantStages, stages)
		}
	}
	if polls != 3 {
		t.Fatalf("expected 3 poll events, got %d", polls)
	}

	if !result.PathOK || result.Path.UniverseID != "111" || result.Path.PlaceID != "222" || result.Path.PlaceVersion != "3" {
		t.Fatalf("unexpected parsed path %+v", result.Path)
	}
	if result.Final == nil || result.Final.State != models.TaskStateComplete {
		t.Fatalf("unexpected final task %+v", result.Final)
	}
	if len(result.Logs) != 1 || result.Logs[0].Message != "Hello World!" {
		t.Fatalf("unexpected logs %+v", result.Logs)
	}
}

func TestRunKeepsSubmittedTaskOnFailure(t *testing.T) {
	fake := newFakeCloud(t, models.TaskStateProcessing)
	server := startServer(t, fake)
	cfg := newTestConfig(server)
	cfg.PollTimeout = cfg.RetryDelay * 20
	svc := NewExecutionService(cfg)

	result, err := svc.Run(context.Background(), RunRequest{APIKey: "k", PlaceID: "222", UniverseID: "111", Script: "while true do end"}, nil)
	if !errors.Is(err, client.ErrPollTimeout) {
		t.Fatalf("expected poll timeout, got %v", err)
	}
	if result == nil || result.Task == nil || result.Task.Path != testTaskPath {
		t.Fatalf("expected the submitted task to be reported, got %+v", result)
	}
	if result.Final != nil {
		t.Fatalf("timed out run must not carry a final task")
	}
}
