package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReboot(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(testApp(t, runner))

	w, body := do(t, h, http.MethodPost, "/system/reboot", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rebooting", body["status"])
	assert.Equal(t, []string{"reboot"}, runner.calls)
}

func TestShutdown_RunnerFailureIs500(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no permission")}
	h := NewHandler(testApp(t, runner))

	w, _ := do(t, h, http.MethodPost, "/system/shutdown", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetSystemStatus(t *testing.T) {
	h := NewHandler(testApp(t, nil))

	w, body := do(t, h, http.MethodGet, "/system/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["setup"])
	assert.Equal(t, "Mini", body["model"])
	assert.Equal(t, "dev", body["version"])
}
