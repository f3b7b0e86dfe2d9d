package pipeline

// Element name prefixes. The stream id is appended with a dash so names are
// unique across every stream in the process.
const (
	FilterPrefix  = "filter"
	SinkTeePrefix = "sink-tee"
)

// FilterName returns the capsfilter name for a stream.
func FilterName(id string) string {
	return FilterPrefix + "-" + id
}

// SinkTeeName returns the fan-out tee name for a stream.
func SinkTeeName(id string) string {
	return SinkTeePrefix + "-" + id
}
