package services

import (
	"context"
	"iter"

	"github.com/dekkonot/open-cloud-execute/internal/client"
	"github.com/dekkonot/open-cloud-execute/internal/models"
)

// LogService reads the logs of finished tasks
type LogService struct {
	client *client.APIClient
}

// NewLogService creates a new log service
func NewLogService(apiClient *client.APIClient) *LogService {
	return &LogService{client: apiClient}
}

// GetLogsFlat returns the plain text log lines of the task at path.
func (s *LogService) GetLogsFlat(ctx context.Context, key client.APIKey, path string) ([]string, error) {
	entry, err := s.firstEntry(ctx, key, path, models.LogViewFlat, "get task logs")
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Messages == nil {
		return []string{}, nil
	}
	return entry.Messages, nil
}

// GetLogsStructured returns the typed log lines of the task at path.
func (s *LogService) GetLogsStructured(ctx context.Context, key client.APIKey, path string) ([]models.StructuredMessage, error) {
	entry, err := s.firstEntry(ctx, key, path, models.LogViewStructured, "get task structured logs")
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.StructuredMessages == nil {
		return []models.StructuredMessage{}, nil
	}
	return entry.StructuredMessages, nil
}

func (s *LogService) firstEntry(ctx context.Context, key client.APIKey, path string, view models.LogView, op string) (*models.LogEntry, error) {
	for page, err := range s.pages(ctx, key, path, view, op) {
		if err != nil {
			return nil, err
		}
		if entry := page.FirstEntry(); entry != nil {
			return entry, nil
		}
	}
	return nil, nil
}

// followPages stays off until Open Cloud paginates task logs; the endpoint currently
// returns every line in the first page along with a token that leads nowhere.
const followPages = false

// pages yields the pages of the logs endpoint in order.
func (s *LogService) pages(ctx context.Context, key client.APIKey, path string, view models.LogView, op string) iter.Seq2[*models.LogsResponse, error] {
	return func(yield func(*models.LogsResponse, error) bool) {
		pageToken := ""
		for {
			url := client.BuildURLWithParams(s.client.BuildURL(path)+"/logs", map[string]string{
				"view":      string(view),
				"pageToken": pageToken,
			})

			var page models.LogsResponse
			if err := s.client.Get(ctx, op, key, url, &page); err != nil {
				yield(nil, err)
				return
			}
			if !yield(&page, nil) {
				return
			}

			next, ok := page.NextPage()
			if !ok || !followPages {
				return
			}
			pageToken = next
		}
	}
}
