package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RecordingRunner captures system calls instead of executing them.
type RecordingRunner struct {
	Calls []string
	Err   error
}

var _ Runner = (*RecordingRunner)(nil)

func (r *RecordingRunner) SetHostname(_ context.Context, name string) error {
	r.Calls = append(r.Calls, "hostname="+name)
	return r.Err
}

func (r *RecordingRunner) SetTimezone(_ context.Context, zone string) error {
	r.Calls = append(r.Calls, "timezone="+zone)
	return r.Err
}

func (r *RecordingRunner) Reboot(context.Context) error {
	r.Calls = append(r.Calls, "reboot")
	return r.Err
}

func (r *RecordingRunner) Shutdown(context.Context) error {
	r.Calls = append(r.Calls, "shutdown")
	return r.Err
}

func TestRecordingRunner_CapturesCalls(t *testing.T) {
	r := &RecordingRunner{}

	require.NoError(t, r.SetHostname(context.Background(), "clock-01"))
	require.NoError(t, r.Reboot(context.Background()))

	assert.Equal(t, []string{"hostname=clock-01", "reboot"}, r.Calls)
}

func TestNopRunner_DoesNothing(t *testing.T) {
	var r NopRunner

	assert.NoError(t, r.SetHostname(context.Background(), "x"))
	assert.NoError(t, r.SetTimezone(context.Background(), "Europe/Vienna"))
	assert.NoError(t, r.Reboot(context.Background()))
	assert.NoError(t, r.Shutdown(context.Background()))
}
