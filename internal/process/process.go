package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/camstream/internal/logging"
)

// ExitKilled is reported when the process had to be killed.
const ExitKilled = 137

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// Options configures a Process. Zero values select defaults.
type Options struct {
	// OutputLogger receives subprocess output; Logger is used when nil.
	OutputLogger    logging.Logger
	LogParser       LogParser
	OutputHandler   OutputHandler
	GracefulTimeout time.Duration
	KillTimeout     time.Duration
}

// Process manages the lifecycle of one subprocess run.
type Process struct {
	id              string
	args            []string
	logger          logging.Logger
	outputLogger    logging.Logger
	logParser       LogParser
	outputHandler   OutputHandler
	gracefulTimeout time.Duration
	killTimeout     time.Duration

	mu         sync.Mutex
	cmd        *exec.Cmd
	started    bool
	done       chan struct{}
	outputDone chan struct{}
	exitCode   int
	exitErr    error
}

// New creates a process for args without starting it.
func New(id string, args []string, logger logging.Logger, opts Options) *Process {
	p := &Process{
		id:              id,
		args:            args,
		logger:          logger,
		outputLogger:    opts.OutputLogger,
		logParser:       opts.LogParser,
		outputHandler:   opts.OutputHandler,
		gracefulTimeout: opts.GracefulTimeout,
		killTimeout:     opts.KillTimeout,
		done:            make(chan struct{}),
	}
	if p.outputLogger == nil {
		p.outputLogger = logger
	}
	if p.gracefulTimeout <= 0 {
		p.gracefulTimeout = 5 * time.Second
	}
	if p.killTimeout <= 0 {
		p.killTimeout = 5 * time.Second
	}
	return p
}

// Args returns the command line.
func (p *Process) Args() []string {
	return p.args
}

// Start launches the subprocess. Output is streamed and the exit status is
// collected in the background; Done is closed once both are finished.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("process already started")
	}
	if len(p.args) == 0 {
		return errors.New("empty command")
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "error", err, "command", strings.Join(p.args, " "))
		return err
	}

	p.cmd = cmd
	p.started = true
	p.outputDone = make(chan struct{}, 2)
	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid)

	go func() {
		p.streamOutput(stdout, "stdout")
		p.outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr")
		p.outputDone <- struct{}{}
	}()
	go p.wait()

	return nil
}

func (p *Process) wait() {
	<-p.outputDone
	<-p.outputDone
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	if p.exitCode == 0 {
		p.exitCode = exitCodeFromError(err)
	}
	code := p.exitCode
	p.mu.Unlock()

	if err != nil && code == 1 {
		p.logger.Error("Process exited with error", "error", err)
	}
	p.logger.Info("Process exited", "id", p.id, "exit_code", code)
	close(p.done)
}

// Done is closed after the process has exited and its output is drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode returns the exit code once Done is closed.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// PID returns the subprocess pid, or 0 before Start.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Run starts the process and blocks until it exits or ctx ends, in which
// case it is stopped gracefully. Returns the exit code.
func (p *Process) Run(ctx context.Context) int {
	if err := p.Start(); err != nil {
		return 1
	}
	select {
	case <-p.done:
		return p.ExitCode()
	case <-ctx.Done():
		p.logger.Info("Context cancelled, shutting down process")
		return p.Stop(context.Background())
	}
}

// Stop sends SIGINT and waits for a graceful exit. The process is killed
// when the graceful timeout or ctx expires first. Stop on an exited or
// never started process returns immediately.
func (p *Process) Stop(ctx context.Context) int {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return 0
	}

	select {
	case <-p.done:
		return p.ExitCode()
	default:
	}

	p.sendStopSignal()

	timer := time.NewTimer(p.gracefulTimeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.ExitCode()
	case <-timer.C:
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", p.gracefulTimeout)
	case <-ctx.Done():
		p.logger.Warn("Stop deadline reached, forcing kill")
	}

	p.kill()
	select {
	case <-p.done:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after kill signal")
	}
	return ExitKilled
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.logger.Debug("Sending SIGINT to process", "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

func (p *Process) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitCode = ExitKilled
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	// The whole process group goes, so children do not keep the output pipes open.
	if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err == nil {
		return
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Error("Failed to kill process", "error", err)
	}
}

// exitCodeFromError returns 0 for nil, the exit code for an ExitError and 1
// for anything else.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// streamOutput forwards subprocess output to the handler and the output
// logger, at the level the parser extracts.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "error":
			p.outputLogger.Error(msg)
		case "warning":
			p.outputLogger.Warn(msg)
		case "debug", "trace":
			p.outputLogger.Debug(msg)
		default:
			p.outputLogger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

// ParseCommand splits a command string into arguments, honoring quotes and
// backslash escapes.
func ParseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(command))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}
	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}
	return args, nil
}
