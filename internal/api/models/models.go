package models

import (
	"time"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Streams int    `json:"streams" example:"2" doc:"Streams held by the manager"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	Modified  bool   `json:"modified" doc:"Built from a tree with uncommitted changes"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Operating system and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Capture configuration kinds accepted in stream requests.
const (
	CaptureKindVideo    = "video"
	CaptureKindRedirect = "redirect"
)

// FrameIntervalData is the time between frames as a fraction of a second.
type FrameIntervalData struct {
	Numerator   uint32 `json:"numerator" minimum:"1" example:"1" doc:"Interval numerator"`
	Denominator uint32 `json:"denominator" minimum:"1" example:"30" doc:"Interval denominator"`
}

// CaptureData describes how frames are captured.
type CaptureData struct {
	Kind          string             `json:"kind,omitempty" enum:"video,redirect" example:"video" doc:"Capture kind, video when omitted"`
	Encode        string             `json:"encode,omitempty" example:"H264" doc:"Pixel or bitstream format: H264, YUYV, MJPG"`
	Width         uint32             `json:"width,omitempty" example:"1280" doc:"Frame width in pixels"`
	Height        uint32             `json:"height,omitempty" example:"720" doc:"Frame height in pixels"`
	FrameInterval *FrameIntervalData `json:"frame_interval,omitempty" doc:"Frame interval, 1/30 for 30 fps"`
}

// Stream models
type StreamRequestData struct {
	Name          string      `json:"name" minLength:"1" maxLength:"64" example:"front" doc:"Stream name"`
	DevicePath    string      `json:"device_path" minLength:"1" pattern:"^/" example:"/dev/video0" doc:"V4L2 capture device"`
	Configuration CaptureData `json:"configuration" doc:"Capture configuration"`
	Endpoints     []string    `json:"endpoints,omitempty" doc:"Endpoints advertised to clients"`
}

type StreamRequest struct {
	Body StreamRequestData
}

type StreamData struct {
	StreamID      string      `json:"stream_id" example:"2f1c9a3e-5b7d-4e8a-9c61-0d3f4b2a7e15" doc:"Unique stream identifier"`
	Name          string      `json:"name" example:"front" doc:"Stream name"`
	DevicePath    string      `json:"device_path" example:"/dev/video0" doc:"Capture device"`
	Source        string      `json:"source" example:"local device \"front\" (/dev/video0)" doc:"Source description"`
	Configuration CaptureData `json:"configuration" doc:"Capture configuration"`
	Endpoints     []string    `json:"endpoints,omitempty" doc:"Endpoints advertised to clients"`
	State         string      `json:"state" example:"running" doc:"Runner state: constructed, running, degraded, stopped"`
	LastError     string      `json:"last_error,omitempty" doc:"Failure that degraded the stream"`
	Pipeline      string      `json:"pipeline" doc:"gst-launch description of the running graph"`
	Sinks         []string    `json:"sinks,omitempty" doc:"Attached sink branches"`
	CreatedAt     time.Time   `json:"created_at" doc:"When the stream was started"`
	Uptime        float64     `json:"uptime_seconds" example:"3600" doc:"Seconds since the stream was started"`
	Transitions   int         `json:"transitions" example:"2" doc:"State transitions since the stream was added"`
	Restarts      int         `json:"restarts" example:"0" doc:"Automatic restarts after degradation"`
}

type StreamListData struct {
	Streams []StreamData `json:"streams" doc:"List of registered streams"`
	Count   int          `json:"count" example:"2" doc:"Number of registered streams"`
}

type StreamListResponse struct {
	Body StreamListData
}

type StreamResponse struct {
	Body StreamData
}

type StreamStatusData struct {
	StreamID  string `json:"stream_id" doc:"Stream identifier"`
	State     string `json:"state" example:"running" doc:"Runner state"`
	LastError string `json:"last_error,omitempty" doc:"Failure that degraded the stream"`
}

type StreamStatusResponse struct {
	Body StreamStatusData
}

// Pipeline preview models
type PipelineData struct {
	Pipeline string `json:"pipeline" example:"v4l2src device=/dev/video0 do-timestamp=false ! h264parse ! ..." doc:"Generated gst-launch description"`
}

type PipelineResponse struct {
	Body PipelineData
}

// Sink models
type SinkRequestData struct {
	Name     string `json:"name,omitempty" maxLength:"64" pattern:"^[A-Za-z0-9_-]+$" example:"gcs" doc:"Branch name, derived from the endpoint when omitted"`
	Endpoint string `json:"endpoint" minLength:"1" example:"udp://10.0.0.2:5600" doc:"Sink endpoint"`
}

type SinkRequest struct {
	StreamID string `path:"stream_id" doc:"Stream identifier"`
	Body     SinkRequestData
}

type SinkData struct {
	StreamID string   `json:"stream_id" doc:"Stream identifier"`
	Name     string   `json:"name" example:"udp-5600" doc:"Sink branch name"`
	Pipeline string   `json:"pipeline" example:"queue ! udpsink host=10.0.0.2 port=5600 sync=false" doc:"Branch description"`
	Sinks    []string `json:"sinks" doc:"All sinks attached to the stream"`
}

type SinkResponse struct {
	Body SinkData
}

// Device models
type DeviceFormat struct {
	Encode string       `json:"encode" example:"H264" doc:"Pixel or bitstream format"`
	Sizes  []DeviceSize `json:"sizes,omitempty" doc:"Supported sizes"`
}

type DeviceSize struct {
	Width     uint32              `json:"width" example:"1920"`
	Height    uint32              `json:"height" example:"1080"`
	Intervals []FrameIntervalData `json:"intervals,omitempty" doc:"Supported frame intervals"`
}

type DeviceData struct {
	DevicePath string         `json:"device_path" example:"/dev/video0" doc:"Device node"`
	DeviceName string         `json:"device_name" example:"USB Camera" doc:"Card name reported by the driver"`
	InUse      string         `json:"in_use_by,omitempty" doc:"Stream holding the device"`
	Formats    []DeviceFormat `json:"formats,omitempty" doc:"Capability set"`
}

type DeviceListData struct {
	Devices []DeviceData `json:"devices" doc:"Capture devices present on the host"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

// Log models
type LogEntryData struct {
	Timestamp  time.Time      `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"streams" doc:"Source module"`
	StreamID   string         `json:"stream_id,omitempty" doc:"Stream the entry belongs to"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogListData struct {
	Entries []LogEntryData `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int            `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogListResponse struct {
	Body LogListData
}

type LogLevelsData struct {
	Levels map[string]string `json:"levels" doc:"Effective level per module"`
}

type LogLevelsResponse struct {
	Body LogLevelsData
}
