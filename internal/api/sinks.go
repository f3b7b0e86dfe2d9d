package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camstream/internal/api/models"
	"github.com/smazurov/camstream/internal/sink"
)

// SinkNameInput selects one sink of one stream.
type SinkNameInput struct {
	StreamIDInput
	Name string `path:"name" example:"udp-5600" doc:"Sink branch name"`
}

func (s *Server) registerSinkRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "attach-sink",
		Method:        http.MethodPost,
		Path:          "/api/streams/{stream_id}/sinks",
		Summary:       "Attach Sink",
		Description:   "Link a consumer branch to a running stream's sink tee",
		Tags:          []string{"sinks"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 404, 409, 501, 504},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.SinkRequest) (*models.SinkResponse, error) {
		udp, err := sink.ParseEndpoint(input.Body.Endpoint)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		name := input.Body.Name
		if name == "" {
			name = udp.Name()
		}

		if err := s.streams.AttachSink(ctx, input.StreamID, name, udp.Description()); err != nil {
			return nil, s.mapStreamError(err)
		}

		info, err := s.streams.Get(input.StreamID)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.SinkResponse{
			Body: models.SinkData{
				StreamID: input.StreamID,
				Name:     name,
				Pipeline: udp.Description(),
				Sinks:    info.Sinks,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "detach-sink",
		Method:        http.MethodDelete,
		Path:          "/api/streams/{stream_id}/sinks/{name}",
		Summary:       "Detach Sink",
		Description:   "Remove a consumer branch from a running stream",
		Tags:          []string{"sinks"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404, 409, 501, 504},
		Security:      withAuth(),
	}, func(ctx context.Context, input *SinkNameInput) (*struct{}, error) {
		if err := s.streams.DetachSink(ctx, input.StreamID, input.Name); err != nil {
			return nil, s.mapStreamError(err)
		}
		return &struct{}{}, nil
	})
}
