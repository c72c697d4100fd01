package untis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclock/clockd/pkg/session"
)

const (
	testUser     = "40146720210116"
	testPassword = "x"
	testSchool   = "litec"
	testCookie   = "ABC123"
)

// fakeUntis is a scripted WebUntis JSON-RPC endpoint.
type fakeUntis struct {
	t *testing.T

	authFailures atomic.Int32 // remaining authenticate calls to reject
	loginCalls   atomic.Int32
	logoutCalls  atomic.Int32
}

func (f *fakeUntis) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(f.t, "2.0", req.JSONRPC)
		require.NotEmpty(f.t, req.ID)

		switch req.Method {
		case "authenticate":
			f.authenticate(w, req)
		case "getTimetable":
			f.requireSession(w, r, f.timetable)
		case "getHolidays":
			f.requireSession(w, r, f.holidays)
		case "logout":
			f.logoutCalls.Add(1)
			writeRPC(w, json.RawMessage(`{}`), nil)
		default:
			f.t.Fatalf("unexpected method %q", req.Method)
		}
	}
}

func (f *fakeUntis) authenticate(w http.ResponseWriter, req rpcRequest) {
	f.loginCalls.Add(1)

	params, _ := req.Params.(map[string]any)
	if f.authFailures.Load() > 0 || params["user"] != testUser || params["password"] != testPassword {
		f.authFailures.Add(-1)
		writeRPC(w, nil, &RemoteError{Code: codeBadCredentials, Message: "bad credentials"})
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: testCookie})
	writeRPC(w, json.RawMessage(`{"sessionId":"`+testCookie+`","personType":5,"personId":123}`), nil)
}

func (f *fakeUntis) requireSession(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter)) {
	if !strings.Contains(r.Header.Get("Cookie"), "JSESSIONID="+testCookie) {
		writeRPC(w, nil, &RemoteError{Code: codeNotAuthenticated, Message: "not authenticated"})
		return
	}
	next(w)
}

func (f *fakeUntis) timetable(w http.ResponseWriter) {
	writeRPC(w, json.RawMessage(`[
		{"date":20260901,"startTime":950,"endTime":1040,"su":[{"id":2,"name":"E"}],"ro":[{"id":9,"name":"207"}],"kl":[{"id":1,"name":"3AHEL"}]},
		{"date":20260901,"startTime":800,"endTime":945,"su":[{"id":1,"name":"SEW"}],"ro":[{"id":7,"name":"104"}],"kl":[{"id":1,"name":"3AHEL"},{"id":2,"name":"3BHEL"}]},
		{"date":20260902,"startTime":800,"endTime":945,"su":[],"ro":[],"kl":[]}
	]`), nil)
}

func (f *fakeUntis) holidays(w http.ResponseWriter) {
	writeRPC(w, json.RawMessage(`[
		{"name":"herbst","longName":"Herbstferien","startDate":20261026,"endDate":20261031}
	]`), nil)
}

func writeRPC(w http.ResponseWriter, result json.RawMessage, rpcErr *RemoteError) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{Result: result, Error: rpcErr})
}

// newFakeServer returns a running fake endpoint plus matching credentials.
func newFakeServer(t *testing.T) (*fakeUntis, Credentials) {
	t.Helper()

	fake := &fakeUntis{t: t}
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	creds := Credentials{
		Username:  testUser,
		Password:  testPassword,
		Server:    strings.TrimPrefix(ts.URL, "http://"),
		School:    testSchool,
		UserAgent: "OpenClock",
	}
	return fake, creds
}

func newTestClient() *Client {
	return NewClient(Config{Insecure: true, Timeout: 5 * time.Second})
}

func TestClient_Login(t *testing.T) {
	fake, creds := newFakeServer(t)
	client := newTestClient()

	sess, err := client.Login(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, 123, sess.personID)
	assert.Equal(t, 5, sess.personType)
	assert.Equal(t, int32(1), fake.loginCalls.Load())
}

func TestClient_LoginBadCredentials(t *testing.T) {
	_, creds := newFakeServer(t)
	creds.Password = "wrong"
	client := newTestClient()

	_, err := client.Login(context.Background(), creds)
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestClient_LoginUnreachableServer(t *testing.T) {
	client := newTestClient()
	creds := Credentials{
		Username: testUser, Password: testPassword,
		Server: "127.0.0.1:1", School: testSchool,
	}

	_, err := client.Login(context.Background(), creds)
	require.Error(t, err)
	assert.Equal(t, session.KindTransient, session.Classify(err),
		"network failures are transient, not credential errors")
}

func TestSession_Timetable(t *testing.T) {
	_, creds := newFakeServer(t)
	client := newTestClient()
	ctx := context.Background()

	sess, err := client.Login(ctx, creds)
	require.NoError(t, err)

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)
	lessons, err := sess.Timetable(ctx, start, start.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Len(t, lessons, 3)

	first := lessons[0]
	assert.Equal(t, "E", first.Subject)
	assert.Equal(t, "207", first.Room)
	assert.Equal(t, []string{"3AHEL"}, first.Classes)
	assert.Equal(t, time.Date(2026, 9, 1, 9, 50, 0, 0, time.Local), first.Start)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 40, 0, 0, time.Local), first.End)

	second := lessons[1]
	assert.Equal(t, []string{"3AHEL", "3BHEL"}, second.Classes)

	// Periods without subject or room come through with empty fields.
	third := lessons[2]
	assert.Empty(t, third.Subject)
	assert.Empty(t, third.Room)
	assert.Empty(t, third.Classes)
}

func TestSession_Holidays(t *testing.T) {
	_, creds := newFakeServer(t)
	client := newTestClient()
	ctx := context.Background()

	sess, err := client.Login(ctx, creds)
	require.NoError(t, err)

	holidays, err := sess.Holidays(ctx)
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "Herbstferien", holidays[0].Name)
	assert.Equal(t, time.Date(2026, 10, 26, 0, 0, 0, 0, time.Local), holidays[0].Start)
	assert.Equal(t, time.Date(2026, 10, 31, 0, 0, 0, 0, time.Local), holidays[0].End)
}

func TestSession_ExpiredCookieClassifiesAsInvalid(t *testing.T) {
	_, creds := newFakeServer(t)
	client := newTestClient()
	ctx := context.Background()

	sess, err := client.Login(ctx, creds)
	require.NoError(t, err)

	// Simulate a provider-side session drop.
	sess.cookie = "JSESSIONID=expired"

	_, err = sess.Timetable(ctx, time.Now(), time.Now())
	assert.ErrorIs(t, err, session.ErrInvalidCredentials,
		"a dropped provider session must force a re-login")
}

func TestSession_Logout(t *testing.T) {
	fake, creds := newFakeServer(t)
	client := newTestClient()
	ctx := context.Background()

	sess, err := client.Login(ctx, creds)
	require.NoError(t, err)

	require.NoError(t, sess.Logout(ctx))
	assert.Equal(t, int32(1), fake.logoutCalls.Load())
}

// staticSource returns fixed credentials for connector tests.
type staticSource struct {
	creds      Credentials
	configured bool
}

func (s *staticSource) Credentials() (Credentials, bool) {
	return s.creds, s.configured
}

func TestConnector_NotConfigured(t *testing.T) {
	client := newTestClient()
	conn := NewConnector(client, &staticSource{})

	_, _, err := conn.Connect(context.Background())
	assert.ErrorIs(t, err, session.ErrNotConfigured)
}

func TestConnector_ConnectAndLogout(t *testing.T) {
	fake, creds := newFakeServer(t)
	client := newTestClient()
	conn := NewConnector(client, &staticSource{creds: creds, configured: true})
	ctx := context.Background()

	sess, expiry, err := conn.Connect(ctx)
	require.NoError(t, err)
	assert.True(t, expiry.IsZero(), "webuntis communicates no expiry")

	require.NoError(t, conn.Logout(ctx, sess))
	assert.Equal(t, int32(1), fake.logoutCalls.Load())
}

func TestUntisDateConversions(t *testing.T) {
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local), untisDate(20260901))
	assert.True(t, untisDate(0).IsZero())

	assert.Equal(t, time.Date(2026, 9, 1, 8, 0, 0, 0, time.Local), untisDateTime(20260901, 800))
	assert.Equal(t, time.Date(2026, 9, 1, 13, 45, 0, 0, time.Local), untisDateTime(20260901, 1345))

	assert.Equal(t, 20260901, asUntisDate(time.Date(2026, 9, 1, 15, 0, 0, 0, time.Local)))
}
