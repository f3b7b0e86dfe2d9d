package launch

import "strings"

// ParseLogLevel extracts the log level from gst-launch-1.0 output.
// gst-launch reports bus messages as "ERROR: from element ..." or
// "WARNING: from element ...", and GST_DEBUG output carries the level as
// the fourth whitespace separated field:
//
//	0:00:00.015 1234 0x55d0 WARN v4l2src gstv4l2src.c:692:gst_v4l2src_query: message
func ParseLogLevel(line string) (level, msg string) {
	switch {
	case strings.HasPrefix(line, "ERROR: "):
		return "error", strings.TrimPrefix(line, "ERROR: ")
	case strings.HasPrefix(line, "WARNING: "):
		return "warning", strings.TrimPrefix(line, "WARNING: ")
	case strings.HasPrefix(line, "Additional debug info:"):
		return "debug", line
	}

	fields := strings.Fields(line)
	if len(fields) >= 5 && strings.HasPrefix(fields[0], "0:") {
		if lvl, ok := gstDebugLevel(fields[3]); ok {
			rest := line[strings.Index(line, fields[3])+len(fields[3]):]
			return lvl, strings.TrimSpace(rest)
		}
	}

	return "info", line
}

func gstDebugLevel(s string) (string, bool) {
	switch s {
	case "ERROR":
		return "error", true
	case "WARN", "FIXME":
		return "warning", true
	case "INFO":
		return "info", true
	case "DEBUG", "LOG":
		return "debug", true
	case "TRACE", "MEMDUMP":
		return "trace", true
	}
	return "", false
}
