package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dekkonot/open-cloud-execute/internal/logger"
	"github.com/dekkonot/open-cloud-execute/internal/services"
)

// TaskMonitor runs one script under a full screen progress view.
type TaskMonitor struct {
	service     *services.ExecutionService
	pollTimeout time.Duration
	program     *tea.Program
}

func NewTaskMonitor(service *services.ExecutionService, pollTimeout time.Duration, opts ...tea.ProgramOption) *TaskMonitor {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TaskMonitor{
		service:     service,
		pollTimeout: pollTimeout,
		program:     tea.NewProgram(NewModel(pollTimeout), opts...),
	}
}

type outcome struct {
	result *services.RunResult
	err    error
}

// Run executes req while the view is shown. Quitting the view cancels the run.
func (tm *TaskMonitor) Run(ctx context.Context, req services.RunRequest) (*services.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		result, err := tm.service.Run(ctx, req, func(e services.RunEvent) {
			tm.program.Send(RunUpdate{Event: e})
		})
		if err != nil {
			logger.Error("Run failed: %v", err)
		}
		tm.program.Send(Finished{Result: result, Err: err})
		done <- outcome{result: result, err: err}
		tm.program.Quit()
	}()

	if _, err := tm.program.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("failed to run TUI: %w", err)
	}

	// the view may have been closed by the user before the run finished
	cancel()
	out := <-done
	return out.result, out.err
}
