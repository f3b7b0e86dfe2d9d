package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/camstream/internal/api/models"
	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/logging"
)

// LogQueryInput filters buffered log entries.
type LogQueryInput struct {
	Limit    int    `query:"limit" minimum:"0" maximum:"1000" default:"100" doc:"Newest entries to return, 0 for all"`
	StreamID string `query:"stream_id" doc:"Only entries logged for this stream"`
}

// LogLevelBody is the new level for a module.
type LogLevelBody struct {
	Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
}

// LogLevelInput changes one module's level.
type LogLevelInput struct {
	Module string `path:"module" example:"runner" doc:"Logger module"`
	Body   LogLevelBody
}

// registerLogRoutes registers log history, level control and the log SSE stream.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Log History",
		Description: "Return buffered log entries, oldest first",
		Tags:        []string{"logs"},
		Errors:      []int{401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *LogQueryInput) (*models.LogListResponse, error) {
		var entries []logging.LogEntry
		if history := logging.GetHistory(); history != nil {
			entries = history.Tail(input.Limit, input.StreamID)
		}
		out := make([]models.LogEntryData, len(entries))
		for i, e := range entries {
			out[i] = models.LogEntryData{
				Timestamp:  e.Timestamp,
				Level:      e.Level,
				Module:     e.Module,
				StreamID:   e.StreamID,
				Message:    e.Message,
				Attributes: e.Attributes,
			}
		}
		return &models.LogListResponse{
			Body: models.LogListData{Entries: out, Count: len(out)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-log-levels",
		Method:      http.MethodGet,
		Path:        "/api/logs/levels",
		Summary:     "Log Levels",
		Description: "Effective level of every configured module",
		Tags:        []string{"logs"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.LogLevelsResponse, error) {
		return &models.LogLevelsResponse{Body: models.LogLevelsData{Levels: logging.ModuleLevels()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/levels/{module}",
		Summary:     "Set Log Level",
		Description: "Change one module's level at runtime",
		Tags:        []string{"logs"},
		Errors:      []int{400, 401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *LogLevelInput) (*models.LogLevelsResponse, error) {
		if err := logging.SetModuleLevel(input.Module, input.Body.Level); err != nil {
			return nil, huma.Error400BadRequest("invalid log level", err)
		}
		s.logger.Info("Log level changed", "module", input.Module, "level", input.Body.Level)
		return &models.LogLevelsResponse{Body: models.LogLevelsData{Levels: logging.ModuleLevels()}}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Subscribe before replaying so nothing logged in between is lost.
		feed := events.NewFeed(100)
		events.Tap[events.LogEntryEvent](feed, s.eventBus)
		defer feed.Close()

		if history := logging.GetHistory(); history != nil {
			for _, entry := range history.Entries() {
				if err := send.Data(logEntryEvent(entry)); err != nil {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-feed.C():
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}

func logEntryEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

// LogEntryPublisher returns a logging callback that publishes each entry on
// bus for the log stream.
func LogEntryPublisher(bus *events.Bus) logging.LogCallback {
	var seq atomic.Uint64
	return func(entry logging.LogEntry) {
		ev := logEntryEvent(entry)
		ev.Seq = seq.Add(1)
		bus.Publish(ev)
	}
}
