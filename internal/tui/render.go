package tui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/dekkonot/open-cloud-execute/internal/models"
)

var messageStyles = map[models.MessageType]lipgloss.Style{
	models.MessageTypeInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	models.MessageTypeOutput:  lipgloss.NewStyle(),
	models.MessageTypeWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	models.MessageTypeError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

// RenderLogs writes structured log lines coloured by their type.
func RenderLogs(w io.Writer, messages []models.StructuredMessage) {
	for _, msg := range messages {
		style, ok := messageStyles[msg.MessageType]
		if !ok {
			style = messageStyles[models.MessageTypeOutput]
		}
		fmt.Fprintln(w, style.Render(msg.Message))
	}
}

// RenderFlatLogs writes plain log lines.
func RenderFlatLogs(w io.Writer, messages []string) {
	for _, msg := range messages {
		fmt.Fprintln(w, msg)
	}
}

// RenderTaskResult writes the task error, if any, and the script's return values.
func RenderTaskResult(w io.Writer, task *models.FullExecutionTask) error {
	if task == nil {
		return nil
	}

	switch task.State {
	case models.TaskStateCancelled:
		fmt.Fprintln(w, messageStyles[models.MessageTypeWarning].Render("Task was cancelled"))
	case models.TaskStateFailed:
		fmt.Fprintln(w, messageStyles[models.MessageTypeError].Render("Script failed to finish"))
	}

	if task.Error != nil {
		fmt.Fprintln(w, messageStyles[models.MessageTypeError].Render(
			fmt.Sprintf("%s\n%s", task.Error.Code, task.Error.Message)))
	}

	if task.Output == nil {
		return nil
	}

	results := task.Output.Results
	if results == nil {
		results = []json.RawMessage{}
	}
	pretty, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format return values: %w", err)
	}
	fmt.Fprintln(w, lipgloss.NewStyle().Bold(true).Render("Return values:"))
	fmt.Fprintln(w, string(pretty))
	return nil
}
