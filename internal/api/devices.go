package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camstream/internal/api/models"
	"github.com/smazurov/camstream/internal/video"
)

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List V4L2 capture devices with their formats and the stream holding each one",
		Tags:        []string{"devices"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceListResponse, error) {
		locals, err := s.devices()
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to enumerate devices", err)
		}

		holders := make(map[string]string)
		for _, info := range s.streams.List() {
			if path := info.Descriptor.DevicePath(); path != "" {
				holders[path] = info.ID
			}
		}

		devices := make([]models.DeviceData, 0, len(locals))
		for _, local := range locals {
			devices = append(devices, models.DeviceData{
				DevicePath: local.DevicePath,
				DeviceName: local.Name,
				InUse:      holders[local.DevicePath],
				Formats:    apiFormats(local.Capabilities),
			})
		}
		return &models.DeviceListResponse{
			Body: models.DeviceListData{
				Devices: devices,
				Count:   len(devices),
			},
		}, nil
	})
}

func apiFormats(formats []video.Format) []models.DeviceFormat {
	if len(formats) == 0 {
		return nil
	}
	out := make([]models.DeviceFormat, 0, len(formats))
	for _, f := range formats {
		df := models.DeviceFormat{Encode: string(f.Encode)}
		for _, size := range f.Sizes {
			ds := models.DeviceSize{Width: size.Width, Height: size.Height}
			for _, iv := range size.Intervals {
				ds.Intervals = append(ds.Intervals, models.FrameIntervalData{
					Numerator:   iv.Numerator,
					Denominator: iv.Denominator,
				})
			}
			df.Sizes = append(df.Sizes, ds)
		}
		out = append(out, df)
	}
	return out
}
