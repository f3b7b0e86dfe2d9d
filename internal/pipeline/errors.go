package pipeline

import (
	"errors"
	"fmt"
)

// Build errors. Validation failures wrap one of these sentinels.
var (
	// ErrUnsupportedConfiguration is returned for capture kinds other than video.
	ErrUnsupportedConfiguration = errors.New("capture configuration not supported by V4L2 pipeline")
	// ErrUnsupportedSource is returned for source kinds other than local devices.
	ErrUnsupportedSource = errors.New("source kind not supported by V4L2 pipeline")
	// ErrUnsupported is returned for encodes without a template.
	ErrUnsupported = errors.New("encode not supported by V4L2 pipeline")
)

// ConstructionError reports that the engine rejected a generated description.
type ConstructionError struct {
	Description string
	Err         error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("pipeline construction failed: %v (description: %s)", e.Err, e.Description)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}
