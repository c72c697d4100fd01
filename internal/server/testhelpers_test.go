package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclock/clockd/pkg/clock"
	"github.com/openclock/clockd/pkg/device"
)

// fakeRunner records system calls instead of executing them.
type fakeRunner struct {
	calls []string
	err   error
}

func (r *fakeRunner) SetHostname(_ context.Context, name string) error {
	r.calls = append(r.calls, "hostname="+name)
	return r.err
}

func (r *fakeRunner) SetTimezone(_ context.Context, zone string) error {
	r.calls = append(r.calls, "timezone="+zone)
	return r.err
}

func (r *fakeRunner) Reboot(context.Context) error {
	r.calls = append(r.calls, "reboot")
	return r.err
}

func (r *fakeRunner) Shutdown(context.Context) error {
	r.calls = append(r.calls, "shutdown")
	return r.err
}

var _ device.Runner = (*fakeRunner)(nil)

func testApp(t *testing.T, runner device.Runner) *clock.App {
	t.Helper()

	cfg := &clock.Config{
		Server: clock.ServerConfig{Address: ":0", DataDir: t.TempDir()},
		Untis: clock.UntisConfig{
			RefreshInterval: time.Hour,
			DayRange:        10,
			Timeout:         5 * time.Second,
			Insecure:        true,
		},
		Microsoft: clock.MicrosoftConfig{RefreshInterval: time.Hour},
		Logging:   clock.LoggingConfig{Level: "info", Format: "text"},
	}
	if runner == nil {
		runner = device.NopRunner{}
	}

	app, err := clock.New(cfg, clock.Options{Runner: runner, Version: "test"})
	require.NoError(t, err)
	return app
}

// do runs one request against the handler and decodes the JSON body.
func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	decoded := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}
