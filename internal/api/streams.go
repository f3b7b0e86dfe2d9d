package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camstream/internal/api/models"
	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/metrics"
	"github.com/smazurov/camstream/internal/pipeline"
	"github.com/smazurov/camstream/internal/runner"
	"github.com/smazurov/camstream/internal/sink"
	"github.com/smazurov/camstream/internal/streams"
	"github.com/smazurov/camstream/internal/video"
)

// StreamIDInput selects one stream by path.
type StreamIDInput struct {
	StreamID string `path:"stream_id" example:"2f1c9a3e-5b7d-4e8a-9c61-0d3f4b2a7e15" doc:"Stream identifier"`
}

// registerStreamRoutes registers all stream-related endpoints
func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-streams",
		Method:      http.MethodGet,
		Path:        "/api/streams",
		Summary:     "List Streams",
		Description: "List registered streams in the order they were added",
		Tags:        []string{"streams"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.StreamListResponse, error) {
		list := s.streams.List()
		apiStreams := make([]models.StreamData, len(list))
		for i, info := range list {
			apiStreams[i] = domainToAPIStream(info)
		}
		return &models.StreamListResponse{
			Body: models.StreamListData{
				Streams: apiStreams,
				Count:   len(apiStreams),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-stream",
		Method:        http.MethodPost,
		Path:          "/api/streams",
		Summary:       "Create Stream",
		Description:   "Build and start a stream for a capture device. Nothing is registered when any step fails.",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 409, 422, 500, 504},
		Security:      withAuth(),
	}, func(ctx context.Context, input *models.StreamRequest) (*models.StreamResponse, error) {
		desc, err := apiToDescriptor(input.Body)
		if err != nil {
			return nil, err
		}
		id, err := s.streams.AddAndStart(ctx, desc)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		s.persist()

		info, err := s.streams.Get(id)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamResponse{Body: domainToAPIStream(info)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream",
		Method:      http.MethodGet,
		Path:        "/api/streams/{stream_id}",
		Summary:     "Get Stream",
		Description: "Get details of a specific stream",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *StreamIDInput) (*models.StreamResponse, error) {
		info, err := s.streams.Get(input.StreamID)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamResponse{Body: domainToAPIStream(info)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-status",
		Method:      http.MethodGet,
		Path:        "/api/streams/{stream_id}/status",
		Summary:     "Get Stream Status",
		Description: "Get the runner state of a specific stream",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *StreamIDInput) (*models.StreamStatusResponse, error) {
		info, err := s.streams.Get(input.StreamID)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamStatusResponse{
			Body: models.StreamStatusData{
				StreamID:  info.ID,
				State:     string(info.State),
				LastError: info.LastError,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-stream",
		Method:        http.MethodDelete,
		Path:          "/api/streams/{stream_id}",
		Summary:       "Delete Stream",
		Description:   "Stop a stream and release its device",
		Tags:          []string{"streams"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404, 500, 504},
		Security:      withAuth(),
	}, func(ctx context.Context, input *StreamIDInput) (*struct{}, error) {
		if err := s.streams.Remove(ctx, input.StreamID); err != nil {
			return nil, s.mapStreamError(err)
		}
		s.persist()
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-stream",
		Method:      http.MethodPost,
		Path:        "/api/streams/{stream_id}/restart",
		Summary:     "Restart Stream",
		Description: "Tear down and rebuild a stream's pipeline under the same id. A stream that fails to restart is removed.",
		Tags:        []string{"streams"},
		Errors:      []int{401, 404, 422, 500, 504},
		Security:    withAuth(),
	}, func(ctx context.Context, input *StreamIDInput) (*models.StreamResponse, error) {
		// Restart leaves the store alone. A stream removed by a failed
		// restart stays in the file, so the next startup or reload tries it
		// again, until a create or delete rewrites the file from the registry.
		if err := s.streams.Restart(ctx, input.StreamID); err != nil {
			return nil, s.mapStreamError(err)
		}
		info, err := s.streams.Get(input.StreamID)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.StreamResponse{Body: domainToAPIStream(info)}, nil
	})
}

// persist writes the registry back to the store. The request already
// succeeded, so a failed save is logged rather than returned.
func (s *Server) persist() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.streams.Descriptors()); err != nil {
		s.logger.Error("Failed to persist streams", "error", err)
	}
}

// apiToDescriptor converts a create request into a descriptor. Encodes the
// service has no template for pass through and are rejected by the builder.
func apiToDescriptor(body models.StreamRequestData) (video.StreamDescriptor, error) {
	desc := video.StreamDescriptor{
		Name:      body.Name,
		Source:    &video.Local{Name: body.Name, DevicePath: body.DevicePath},
		Endpoints: body.Endpoints,
	}

	c := body.Configuration
	switch c.Kind {
	case "", models.CaptureKindVideo:
		var errs []error
		if c.Encode == "" {
			errs = append(errs, &huma.ErrorDetail{Location: "body.configuration.encode", Message: "required for video capture"})
		}
		if c.Width == 0 || c.Height == 0 {
			errs = append(errs, &huma.ErrorDetail{Location: "body.configuration", Message: "width and height are required for video capture"})
		}
		if c.FrameInterval == nil {
			errs = append(errs, &huma.ErrorDetail{Location: "body.configuration.frame_interval", Message: "required for video capture"})
		}
		if len(errs) > 0 {
			return video.StreamDescriptor{}, huma.Error422UnprocessableEntity("invalid capture configuration", errs...)
		}
		desc.Configuration = video.VideoCapture{
			Encode: video.EncodeFromFourCC(c.Encode),
			Width:  c.Width,
			Height: c.Height,
			FrameInterval: video.FrameInterval{
				Numerator:   c.FrameInterval.Numerator,
				Denominator: c.FrameInterval.Denominator,
			},
		}
	case models.CaptureKindRedirect:
		desc.Configuration = video.RedirectCapture{}
	default:
		return video.StreamDescriptor{}, huma.Error422UnprocessableEntity("unknown capture kind " + c.Kind)
	}
	return desc, nil
}

// domainToAPIStream converts a registry snapshot to API stream data
func domainToAPIStream(info streams.StreamInfo) models.StreamData {
	data := models.StreamData{
		StreamID:      info.ID,
		Name:          info.Descriptor.Name,
		DevicePath:    info.Descriptor.DevicePath(),
		Configuration: apiCapture(info.Descriptor.Configuration),
		Endpoints:     info.Descriptor.Endpoints,
		State:         string(info.State),
		LastError:     info.LastError,
		Pipeline:      info.Description,
		Sinks:         info.Sinks,
		CreatedAt:     info.CreatedAt,
	}
	if info.Descriptor.Source != nil {
		data.Source = info.Descriptor.Source.Description()
	}
	if !info.CreatedAt.IsZero() {
		data.Uptime = time.Since(info.CreatedAt).Truncate(time.Second).Seconds()
	}
	if m := metrics.GetStreamMetrics(info.ID); m != nil {
		data.Transitions = m.Transitions
		data.Restarts = m.Restarts
	}
	return data
}

func apiCapture(cfg video.CaptureConfiguration) models.CaptureData {
	switch c := cfg.(type) {
	case video.VideoCapture:
		return models.CaptureData{
			Kind:   models.CaptureKindVideo,
			Encode: string(c.Encode),
			Width:  c.Width,
			Height: c.Height,
			FrameInterval: &models.FrameIntervalData{
				Numerator:   c.FrameInterval.Numerator,
				Denominator: c.FrameInterval.Denominator,
			},
		}
	case video.RedirectCapture:
		return models.CaptureData{Kind: models.CaptureKindRedirect}
	default:
		return models.CaptureData{}
	}
}

// mapStreamError maps domain errors to HTTP errors
func (s *Server) mapStreamError(err error) error {
	var construction *pipeline.ConstructionError
	switch {
	case errors.Is(err, streams.ErrNotFound):
		return huma.Error404NotFound("stream not found", err)
	case errors.Is(err, streams.ErrDeviceBusy):
		return huma.Error409Conflict("device already in use", err)
	case errors.Is(err, streams.ErrInvalidSource):
		return huma.Error422UnprocessableEntity("video source failed validation", err)
	case errors.Is(err, pipeline.ErrUnsupported),
		errors.Is(err, pipeline.ErrUnsupportedSource),
		errors.Is(err, pipeline.ErrUnsupportedConfiguration):
		return huma.Error422UnprocessableEntity("unsupported capture configuration", err)
	case errors.As(err, &construction):
		return huma.Error422UnprocessableEntity("pipeline construction failed", err)
	case errors.Is(err, sink.ErrInvalidEndpoint), errors.Is(err, sink.ErrUnsupportedKind):
		return huma.Error400BadRequest("invalid sink endpoint", err)
	case errors.Is(err, engine.ErrBranchExists), errors.Is(err, runner.ErrInvalidTransition):
		return huma.Error409Conflict("conflicting stream state", err)
	case errors.Is(err, engine.ErrBranchNotFound):
		return huma.Error404NotFound("sink not attached", err)
	case errors.Is(err, engine.ErrBranchUnsupported):
		return huma.Error501NotImplemented("engine cannot edit a running pipeline", err)
	case errors.Is(err, runner.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("pipeline did not respond in time", err)
	default:
		s.logger.Error("Unhandled stream error", "error", err)
		return huma.Error500InternalServerError("internal server error", err)
	}
}
