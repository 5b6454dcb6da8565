// Package remediate runs the operator-triggered database restart command.
package remediate

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/nrep-ug/mysql-monitor/internal/metrics"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"

	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds one command run.
const DefaultTimeout = 2 * time.Minute

// Error is returned when the command fails. Output is the command's stderr,
// or its stdout when stderr is empty.
type Error struct {
	Output string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remediation command failed: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Runner executes command and returns its captured streams.
type Runner func(ctx context.Context, command string) (stdout, stderr []byte, err error)

// Recorder is notified of each successful run.
type Recorder interface {
	RecordRemediation(at time.Time)
}

// Remediator runs the configured command. Overlapping calls share a single
// run and all receive its outcome.
type Remediator struct {
	command  string
	recorder Recorder
	run      Runner
	timeout  time.Duration
	now      func() time.Time
	group    singleflight.Group
	logger   logging.Logger
	metrics  *metrics.Metrics
}

// Option configures a Remediator.
type Option func(*Remediator)

// WithRunner replaces the shell runner.
func WithRunner(run Runner) Option {
	return func(r *Remediator) { r.run = run }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Remediator) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics counts runs by result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Remediator) { r.metrics = m }
}

// New returns a Remediator for command. recorder may be nil.
func New(command string, recorder Recorder, logger logging.Logger, opts ...Option) *Remediator {
	r := &Remediator{
		command:  command,
		recorder: recorder,
		run:      ShellRunner,
		timeout:  DefaultTimeout,
		now:      time.Now,
		logger:   logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Command returns the configured command line.
func (r *Remediator) Command() string {
	return r.command
}

// Remediate runs the command once and returns its stdout. A caller that
// arrives while a run is in flight waits for that run instead of starting
// another.
func (r *Remediator) Remediate(ctx context.Context) (string, error) {
	ch := r.group.DoChan("remediate", func() (any, error) {
		return r.execute(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			r.logger.WithField("command", r.command).Debug("Joined in-flight remediation")
		}
		out, _ := res.Val.(string)
		return out, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Remediator) execute(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log := r.logger.WithField("command", r.command)
	log.Warn("Running remediation command")

	stdout, stderr, err := r.run(ctx, r.command)
	if err != nil {
		output := string(stderr)
		if output == "" {
			output = string(stdout)
		}
		if output == "" {
			output = err.Error()
		}
		r.count("failure")
		log.WithError(err).WithField("stderr", string(stderr)).Error("Remediation command failed")
		return "", &Error{Output: output, Err: err}
	}

	if r.recorder != nil {
		r.recorder.RecordRemediation(r.now())
	}
	r.count("success")
	log.WithField("stdout", string(stdout)).Info("Remediation command succeeded")
	return string(stdout), nil
}

func (r *Remediator) count(result string) {
	if r.metrics != nil {
		r.metrics.Remediations.WithLabelValues(result).Inc()
	}
}

// ShellRunner runs command through sh -c.
func ShellRunner(ctx context.Context, command string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children of sh may hold the pipes open after a kill.
	cmd.WaitDelay = 500 * time.Millisecond
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
