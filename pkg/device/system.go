package device

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Runner executes the host-OS operations the API exposes. Handlers depend
// on this interface so tests never touch the real machine.
type Runner interface {
	SetHostname(ctx context.Context, name string) error
	SetTimezone(ctx context.Context, zone string) error
	Reboot(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ExecRunner shells out to the systemd tools present on the device image.
type ExecRunner struct {
	log *slog.Logger
}

// NewExecRunner creates the production Runner.
func NewExecRunner(log *slog.Logger) *ExecRunner {
	if log == nil {
		log = slog.Default()
	}
	return &ExecRunner{log: log.With("component", "system")}
}

var _ Runner = (*ExecRunner)(nil)

func (r *ExecRunner) SetHostname(ctx context.Context, name string) error {
	return r.run(ctx, "hostnamectl", "set-hostname", name)
}

func (r *ExecRunner) SetTimezone(ctx context.Context, zone string) error {
	return r.run(ctx, "timedatectl", "set-timezone", zone)
}

func (r *ExecRunner) Reboot(ctx context.Context) error {
	return r.run(ctx, "shutdown", "-r", "now")
}

func (r *ExecRunner) Shutdown(ctx context.Context) error {
	return r.run(ctx, "shutdown", "-h", "now")
}

func (r *ExecRunner) run(ctx context.Context, name string, args ...string) error {
	r.log.Info("running system command", "command", name, "args", args)

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, out)
	}
	return nil
}

// NopRunner ignores every system operation. Used when the backend runs
// somewhere that is not the device, such as local development.
type NopRunner struct{}

var _ Runner = (*NopRunner)(nil)

func (NopRunner) SetHostname(context.Context, string) error { return nil }
func (NopRunner) SetTimezone(context.Context, string) error { return nil }
func (NopRunner) Reboot(context.Context) error              { return nil }
func (NopRunner) Shutdown(context.Context) error            { return nil }
