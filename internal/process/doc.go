// Package process supervises a single subprocess.
//
// A Process is started once and stopped once:
//   - Stop sends SIGINT and waits for a graceful exit
//   - the process is killed when the graceful timeout or the caller's
//     deadline passes first
//   - stdout and stderr are streamed line by line through a LogParser
//     into a module logger and an optional OutputHandler
//
// Example:
//
//	p := process.New("cam0", []string{"gst-launch-1.0", "-e", "videotestsrc", "!", "fakesink"},
//	    logging.GetLogger("engine"), process.Options{})
//	if err := p.Start(); err != nil {
//	    return err
//	}
//	<-p.Done()
package process
