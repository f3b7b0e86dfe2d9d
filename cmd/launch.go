package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/camstream/internal/engine/launch"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/pipeline"
	"github.com/smazurov/camstream/internal/process"
	"github.com/smazurov/camstream/internal/runner"
	"github.com/smazurov/camstream/internal/video"
	"github.com/spf13/cobra"
)

// ErrDegraded is returned when the launched pipeline fails while running.
var ErrDegraded = errors.New("pipeline degraded")

// CreateLaunchCmd creates the launch command.
func CreateLaunchCmd() *cobra.Command {
	var streamsFile string
	var binary string
	var timeout time.Duration
	var verbose bool
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "launch <name>",
		Short: "Run one stream in the foreground",
		Long: `Builds the named stream from the streams file and runs it through gst-launch-1.0 ` +
			`until interrupted or until the pipeline ends. Exits non-zero when the pipeline fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loggingConfig := logging.Config{Level: "info", Format: "text", Verbose: verbose}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			descs, err := loadStreams(streamsFile, args[0])
			if err != nil {
				return err
			}
			desc := descs[0]

			id := uuid.NewString()
			logger := logging.GetLogger("launch").With("stream_id", id)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !video.NewDeviceRegistry().Refresh(ctx, desc.Source) {
				return fmt.Errorf("video source unusable: %s", desc.Source.Description())
			}

			eng, err := launch.New(binary, process.Options{})
			if err != nil {
				return err
			}
			graph, err := pipeline.NewBuilder(eng).Construct(id, desc)
			if err != nil {
				return err
			}

			transitions := make(chan runner.Transition, 8)
			r := runner.New(id, graph, runner.Options{
				Timeout: timeout,
				Notify:  runner.ChannelNotifier(transitions, nil),
			})

			logger.Info("Launching stream", "name", desc.Name, "description", graph.Description())
			if err := r.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				if err := r.Stop(stopCtx); err != nil {
					logger.Warn("Pipeline did not stop cleanly", "error", err)
				}
			}()

			return waitForExit(ctx, transitions, logger.Info)
		},
	}

	cmd.Flags().StringVar(&streamsFile, "streams", "streams.toml", "Path to streams configuration file")
	cmd.Flags().StringVar(&binary, "binary", launch.DefaultBinary, "gst-launch binary, optionally with arguments")
	cmd.Flags().DurationVar(&timeout, "timeout", runner.DefaultTimeout, "Pipeline start and stop timeout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// waitForExit blocks until ctx ends or the runner leaves the running state.
func waitForExit(ctx context.Context, transitions <-chan runner.Transition, logf func(string, ...any)) error {
	for {
		select {
		case <-ctx.Done():
			logf("Interrupted, stopping pipeline")
			return nil
		case t := <-transitions:
			switch t.To {
			case runner.StateDegraded:
				return fmt.Errorf("%w: %w", ErrDegraded, t.Err)
			case runner.StateStopped:
				logf("Pipeline stopped")
				return nil
			}
		}
	}
}
