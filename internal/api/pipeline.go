package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camstream/internal/api/models"
	"github.com/smazurov/camstream/internal/pipeline"
)

// previewID names the elements of a previewed description.
const previewID = "preview"

func (s *Server) registerPipelineRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "preview-pipeline",
		Method:      http.MethodPost,
		Path:        "/api/pipeline",
		Summary:     "Preview Pipeline",
		Description: "Generate the gst-launch description for a stream request without opening the device",
		Tags:        []string{"pipeline"},
		Errors:      []int{401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.StreamRequest) (*models.PipelineResponse, error) {
		desc, err := apiToDescriptor(input.Body)
		if err != nil {
			return nil, err
		}
		description, err := pipeline.Build(previewID, desc)
		if err != nil {
			return nil, s.mapStreamError(err)
		}
		return &models.PipelineResponse{Body: models.PipelineData{Pipeline: description}}, nil
	})
}
