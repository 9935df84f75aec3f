package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dekkonot/open-cloud-execute/internal/async"
	"github.com/dekkonot/open-cloud-execute/internal/client"
	"github.com/dekkonot/open-cloud-execute/internal/models"
)

func TestBuildTaskURL(t *testing.T) {
	base := "https://apis.roblox.com/cloud/v2"

	live := BuildTaskURL(base, "222", "111", "")
	if live != base+"/universes/111/places/222/luau-execution-session-tasks" {
		t.Fatalf("unexpected live url %s", live)
	}
	versioned := BuildTaskURL(base+"/", "222", "111", "17")
	if versioned != base+"/universes/111/places/222/versions/17/luau-execution-session-tasks" {
		t.Fatalf("unexpected versioned url %s", versioned)
	}
	if again := BuildTaskURL(base, "222", "111", ""); again != live {
		t.Fatalf("BuildTaskURL is not deterministic: %s vs %s", live, again)
	}
	if odd := BuildTaskURL(base, "not a number", "x/y", ""); !strings.Contains(odd, "universes/x/y/places/not a number/") {
		t.Fatalf("ids must pass through unchanged, got %s", odd)
	}
}

func TestCreateTaskDefaultTimeout(t *testing.T) {
	fake := newFakeCloud(t, models.TaskStateComplete)
	svc, _ := startFakeCloud(t, fake)

	task, err := svc.CreateTask(context.Background(), "my-key", svc.BuildTaskURL("222", "111", ""), "print('hi')", 0)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Path != testTaskPath || task.State != models.TaskStateQueued || task.User != "42" {
		t.Fatalf("unexpected task %+v", task)
	}

	if _, err := svc.CreateTask(context.Background(), "my-key", svc.BuildTaskURL("222", "111", "3"), "print('hi')", 1.5); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.uploads) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(fake.uploads))
	}
	if got := fake.uploads[0]["timeout"]; got != "300.000000000s" {
		t.Fatalf("expected default timeout, got %q", got)
	}
	if got := fake.uploads[1]["timeout"]; got != "1.500000000s" {
		t.Fatalf("expected 1.5s timeout, got %q", got)
	}
	if fake.uploads[0]["script"] != "print('hi')" {
		t.Fatalf("unexpected script %q", fake.uploads[0]["script"])
	}
	if fake.apiKeys[0] != "my-key" {
		t.Fatalf("expected api key header, got %q", fake.apiKeys[0])
	}
}

func TestCreateTaskRemoteRejection(t *testing.T) {
	fake := newFakeCloud(t, models.TaskStateComplete)
	svc, server := startFakeCloud(t, fake)

	_, err := svc.CreateTask(context.Background(), "k", server.URL+"/nowhere", "x", 0)
	var apiErr *client.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != client.KindRemoteRejection {
		t.Fatalf("expected remote rejection, got %v", err)
	}
	if apiErr.Code != "NOT_FOUND" || apiErr.Message != "no such resource" {
		t.Fatalf("unexpected rejection %+v", apiErr)
	}
}

func TestInvalidAPIKeyFailsBeforeRequest(t *testing.T) {
	fake := newFakeCloud(t, models.TaskStateComplete)
	svc, _ := startFakeCloud(t, fake)

	ctx := context.Background()
	checks := map[string]error{}
	_, checks["create"] = svc.CreateTask(ctx, "bad\nkey", svc.BuildTaskURL("1", "2", ""), "x", 0)
	_, checks["await"] = svc.AwaitTask(ctx, "bad\nkey", testTaskPath)
	_, checks["flat"] = svc.GetLogsFlat(ctx, "bad\nkey", testTaskPath)
	_, checks["structured"] = svc.GetLogsStructured(ctx, "bad\nkey", testTaskPath)

	for name, err := range checks {
		if !errors.Is(err, client.ErrInvalidCredential) {
			t.Fatalf("%s: expected invalid credential, got %v", name, err)
		}
	}
	if hits := fake.hitCount(); hits != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}
}

func TestAwaitTaskEndToEnd(t *testing.T) {
	fake := newFakeCloud(t, models.TaskStateQueued, models.TaskStateProcessing, models.TaskStateComplete)
	fake.output = &models.TaskOutput{Results: []json.RawMessage{json.RawMessage("42")}}
	svc, _ := startFakeCloud(t, fake)

	task, err := svc.CreateTask(context.Background(), "k", svc.BuildTaskURL("222", "111", ""), "return 42", 0)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	final, err := svc.AwaitTask(context.Background(), "k", task.Path)
	if err != nil {
		t.Fatalf("AwaitTask: %v", err)
	}
	if final.State != models.TaskStateComplete {
		t.Fatalf("expected COMPLETE, got %s", final.State)
	}
	if final.Error != nil {
		t.Fatalf("expected no task error, got %+v", final.Error)
	}
	if final.Output == nil || len(final.Output.Results) != 1 || string(final.Output.Results[0]) != "42" {
		t.Fatalf("unexpected output %+v", final.Output)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.queries != 3 {
		t.Fatalf("expected 3 status queries, got %d", fake.queries)
	}
}

func TestAwaitTaskObservesStates(t *testing.T) {
	fake := newFakeCloud(t, models.TaskStateUnspecified, models.TaskStateProcessing, models.TaskStateFailed)
	fake.taskErr = &models.TaskError{Code: models.TaskErrorScript, Message: "boom"}
	server := httptest.NewServer(fake)
	defer server.Close()

	cfg := newTestConfig(server)
	apiClient := client.NewAPIClient(cfg)
	tasks := NewTaskService(apiClient, async.NewPoller(cfg))
	key, err := client.NewAPIKey("k")
	if err != nil {
		t.Fatalf("NewAPIKey: %v", err)
	}

	var events []PollEvent
	final, err := tasks.AwaitTask(context.Background(), key, testTaskPath, func(e PollEvent) {
		events = append(events, e)
	})
	if err != nil {
		t.Fatalf("AwaitTask: %v", err)
	}
	if final.State != models.TaskStateFailed || final.Error == nil || final.Error.Message != "boom" {
		t.Fatalf("unexpected final task %+v", final)
	}
	if final.Output != nil {
		t.Fatalf("failed task should have no output")
	}

	want := []models.TaskState{models.TaskStateUnspecified, models.TaskStateProcessing, models.TaskStateFailed}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), events)
	}
	for i, e := range events {
		if e.State != want[i] || e.Number != i+1 {
			t.Fatalf("event %d: unexpected %+v", i, e)
		}
	}
	if events[2].NextDelay != 0 || events[0].NextDelay <= 0 {
		t.Fatalf("unexpected delays %+v", events)
	}
}

func TestAwaitTaskTimeout(t *testing.T) {
	fake := newFakeCloud(t, models.TaskStateProcessing)
	server := httptest.NewServer(fake)
	defer server.Close()

	cfg := newTestConfig(server)
	cfg.PollTimeout = 50 * time.Millisecond
	svc := NewExecutionService(cfg)

	task, err := svc.AwaitTask(context.Background(), "k", testTaskPath)
	if !errors.Is(err, client.ErrPollTimeout) {
		t.Fatalf("expected poll timeout, got %v", err)
	}
	if task != nil {
		t.Fatalf("expected no task on timeout, got %+v", task)
	}
}

func TestAwaitTaskQueryFailureAborts(t *testing.T) {
	fake := newFakeCloud(t, models.TaskStateProcessing)
	svc, _ := startFakeCloud(t, fake)

	_, err := svc.AwaitTask(context.Background(), "k", "universes/1/places/2/unknown")
	if client.KindOf(err) != client.KindRemoteRejection {
		t.Fatalf("expected remote rejection, got %v", err)
	}
	if fake.hitCount() != 1 {
		t.Fatalf("query failures must not be retried, got %d requests", fake.hitCount())
	}
}
