package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/camstream/cmd"
	"github.com/smazurov/camstream/internal/api"
	"github.com/smazurov/camstream/internal/config"
	"github.com/smazurov/camstream/internal/engine"
	"github.com/smazurov/camstream/internal/engine/gstreamer"
	"github.com/smazurov/camstream/internal/engine/launch"
	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/led"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/pipeline"
	"github.com/smazurov/camstream/internal/process"
	"github.com/smazurov/camstream/internal/streams"
	"github.com/smazurov/camstream/internal/streams/store"
	"github.com/smazurov/camstream/internal/video"
)

const shutdownTimeout = 15 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Streams settings
	StreamsConfigFile     string `help:"Stream definitions file" default:"streams.toml" toml:"streams.config_file" env:"STREAMS_CONFIG_FILE"`
	StreamsWatch          bool   `help:"Reload streams when the file changes" default:"true" toml:"streams.watch" env:"STREAMS_WATCH"`
	StreamsAutoRestart    bool   `help:"Restart degraded streams" default:"false" toml:"streams.auto_restart" env:"STREAMS_AUTO_RESTART"`
	StreamsRestartBackoff string `help:"Delay before restarting a degraded stream" default:"2s" toml:"streams.restart_backoff" env:"STREAMS_RESTART_BACKOFF"`

	// Engine settings
	EngineKind         string `help:"Pipeline engine (gst, launch)" default:"gst" toml:"engine.kind" env:"ENGINE_KIND"`
	EngineLaunchBinary string `help:"gst-launch binary for the launch engine" default:"gst-launch-1.0" toml:"engine.launch_binary" env:"ENGINE_LAUNCH_BINARY"`

	// Runner settings
	RunnerTimeout      string `help:"Pipeline start and stop timeout" default:"5s" toml:"runner.timeout" env:"RUNNER_TIMEOUT"`
	RunnerNotifyBuffer int    `help:"Buffered state transitions before drops" default:"64" toml:"runner.notify_buffer" env:"RUNNER_NOTIFY_BUFFER"`

	// Device settings
	DevicesHotplug bool `help:"Publish video device add and remove events" default:"true" toml:"devices.hotplug" env:"DEVICES_HOTPLUG"`

	// Features settings
	FeaturesStatusLED     bool   `help:"Show stream health on the board status LED" default:"false" toml:"features.status_led" env:"FEATURES_STATUS_LED"`
	FeaturesStatusLEDName string `help:"LED class device name, detected from the board when empty" default:"" toml:"features.status_led_name" env:"FEATURES_STATUS_LED_NAME"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingIdentifier string `help:"Journal identifier" default:"camstream" toml:"logging.identifier" env:"LOGGING_IDENTIFIER"`
	Verbose           bool   `help:"Log at debug level" short:"v" default:"false" toml:"logging.verbose" env:"VERBOSE"`
	LoggingStreams    string `help:"Streams logging level" default:"info" toml:"logging.streams" env:"LOGGING_STREAMS"`
	LoggingPipeline   string `help:"Pipeline logging level" default:"info" toml:"logging.pipeline" env:"LOGGING_PIPELINE"`
	LoggingRunner     string `help:"Runner logging level" default:"info" toml:"logging.runner" env:"LOGGING_RUNNER"`
	LoggingEngine     string `help:"Engine logging level" default:"info" toml:"logging.engine" env:"LOGGING_ENGINE"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingDevices    string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingConfig     string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingHTTP       string `help:"HTTP access logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func (o *Options) durations() (runnerTimeout, backoff time.Duration, err error) {
	runnerTimeout, err = time.ParseDuration(o.RunnerTimeout)
	if err != nil {
		return 0, 0, fmt.Errorf("runner.timeout: %w", err)
	}
	backoff, err = time.ParseDuration(o.StreamsRestartBackoff)
	if err != nil {
		return 0, 0, fmt.Errorf("streams.restart_backoff: %w", err)
	}
	return runnerTimeout, backoff, nil
}

func newEngine(opts *Options) (engine.Engine, error) {
	switch opts.EngineKind {
	case "gst", "":
		return gstreamer.New(), nil
	case "launch":
		return launch.New(opts.EngineLaunchBinary, process.Options{})
	default:
		return nil, fmt.Errorf("unknown engine %q", opts.EngineKind)
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically; explicit flags win.
		configErr := config.LoadConfig(opts, cli.Root())

		logging.Initialize(logging.Config{
			Level:      opts.LoggingLevel,
			Format:     opts.LoggingFormat,
			Verbose:    opts.Verbose,
			Identifier: opts.LoggingIdentifier,
			Modules: map[string]string{
				"streams":  opts.LoggingStreams,
				"pipeline": opts.LoggingPipeline,
				"runner":   opts.LoggingRunner,
				"engine":   opts.LoggingEngine,
				"api":      opts.LoggingAPI,
				"devices":  opts.LoggingDevices,
				"config":   opts.LoggingConfig,
				"http":     opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")
		if configErr != nil {
			logger.Warn("Failed to load config", "error", configErr)
		}

		runnerTimeout, backoff, err := opts.durations()
		if err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}

		eng, err := newEngine(opts)
		if err != nil {
			logger.Error("Failed to create pipeline engine", "error", err)
			os.Exit(1)
		}

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(api.LogEntryPublisher(eventBus))

		registry := video.NewDeviceRegistry()
		manager := streams.NewManager(streams.Options{
			Builder:       pipeline.NewBuilder(eng),
			Registry:      registry,
			EventBus:      eventBus,
			RunnerTimeout: runnerTimeout,
			NotifyBuffer:  opts.RunnerNotifyBuffer,
			AutoRestart:   streams.AutoRestart{Enabled: opts.StreamsAutoRestart, Backoff: backoff},
		})

		streamStore := store.NewTOML(opts.StreamsConfigFile)
		svc := &app{
			opts:     opts,
			logger:   logger,
			manager:  manager,
			registry: registry,
			eventBus: eventBus,
			store:    streamStore,
			server: api.NewServer(&api.Options{
				AuthUsername:      opts.AuthUsername,
				AuthPassword:      opts.AuthPassword,
				CORSOrigin:        opts.CORSOrigin,
				Streams:           manager,
				Store:             streamStore,
				EventBus:          eventBus,
				PrometheusHandler: promhttp.Handler(),
			}),
			timeout: runnerTimeout,
		}
		if opts.FeaturesStatusLED {
			ctrl := led.New(led.Config{Name: opts.FeaturesStatusLEDName}, logging.GetLogger("led"))
			svc.led = led.NewManager(ctrl, manager, eventBus, logging.GetLogger("led"))
		}

		hooks.OnStart(svc.start)
		hooks.OnStop(svc.stop)
	})

	cli.Root().AddCommand(cmd.CreateDescribeCmd())
	cli.Root().AddCommand(cmd.CreateLaunchCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}

// app holds what the server command starts and stops.
type app struct {
	opts     *Options
	logger   *slog.Logger
	manager  *streams.Manager
	registry *video.DeviceRegistry
	eventBus *events.Bus
	store    *store.TOML
	server   *api.Server
	led      *led.Manager
	watcher  interface{ Stop() error }
	timeout  time.Duration

	stopDevices context.CancelFunc
	devicesDone chan struct{}
}

func (a *app) start() {
	if a.led != nil {
		a.led.Start()
	}

	descs, err := a.store.Load()
	if err != nil {
		a.logger.Error("Failed to load streams", "path", a.store.Path(), "error", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(len(descs)+1)*a.timeout)
		if err := a.manager.LoadAndStart(ctx, descs); err != nil {
			a.logger.Warn("Some streams failed to start", "error", err)
		}
		cancel()
	}

	if a.opts.StreamsWatch {
		w, err := config.WatchStreams(a.store.Path(), a.manager, time.Duration(len(descs)+1)*a.timeout)
		if err != nil {
			a.logger.Warn("Streams file watch disabled", "path", a.store.Path(), "error", err)
		} else {
			a.watcher = w
		}
	}

	if a.opts.DevicesHotplug {
		a.watchDevices()
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.logger.Warn("Failed to notify systemd", "error", err)
	} else if sent {
		a.logger.Debug("Notified systemd ready")
	}

	a.logger.Info("Starting HTTP server", "port", a.opts.Port)
	if err := a.server.Start(a.opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("Failed to start HTTP server", "error", err)
		os.Exit(1)
	}
}

func (a *app) stop() {
	a.logger.Info("Shutting down server")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if err := a.server.Stop(); err != nil {
		a.logger.Error("Error stopping HTTP server", "error", err)
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Error stopping streams watcher", "error", err)
		}
	}

	if a.stopDevices != nil {
		a.stopDevices()
		<-a.devicesDone
	}

	// Stop pipelines after the API stops accepting requests.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.manager.Shutdown(ctx); err != nil {
		a.logger.Error("Streams did not stop cleanly", "error", err)
	}

	if a.led != nil {
		a.led.Stop()
	}
}

// watchDevices publishes video device hotplug events until stop.
func (a *app) watchDevices() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopDevices = cancel
	a.devicesDone = make(chan struct{})

	go func() {
		defer close(a.devicesDone)
		err := video.WatchDevices(ctx, a.registry, func(c video.DeviceChange) {
			a.eventBus.Publish(events.DeviceChangedEvent{
				Action:     c.Action,
				DevicePath: c.DevicePath,
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
			})
		})
		if err != nil {
			a.logger.Warn("Device hotplug monitoring stopped", "error", err)
		}
	}()
}
