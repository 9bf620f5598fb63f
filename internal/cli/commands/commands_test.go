package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/web/auth"
)

const testSecret = "commands-test-secret"

// backend serves the collections the commands read.
func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/rest/v1/location", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"uuid":"loc-1","display":"Outpatient Clinic"},
			{"uuid":"loc-2","display":"Ward"}
		]}`))
	})
	mux.HandleFunc("/ws/rest/v1/order", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T) {
	t.Helper()
	srv := backend(t)
	t.Setenv("SLOTKIT_BACKEND_BASE_URL", srv.URL)
	t.Setenv("SLOTKIT_SESSION_SECRET", testSecret)
	t.Setenv("SLOTKIT_LOGGING_LEVEL", "error")
	t.Setenv("SLOTKIT_SERVER_RENDER_TIMEOUT", "1s")
}

func execute(ctx context.Context, args ...string) (string, string, error) {
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "slotkit", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"version", "serve", "slots", "preview", "fetch", "login", "e2e"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestVersionCommand(t *testing.T) {
	Version, GitCommit, BuildDate, GoVersion = "1.0.0-test", "abc123", "2026-01-01", "go1.24"
	t.Cleanup(func() { Version, GitCommit, BuildDate, GoVersion = "dev", "unknown", "unknown", "unknown" })

	out, _, err := execute(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "slotkit version: 1.0.0-test")
	assert.Contains(t, out, "Git commit:      abc123")
	assert.Contains(t, out, "go1.24")
}

func TestSlotsCommand(t *testing.T) {
	setupEnv(t)

	out, _, err := execute(context.Background(), "slots")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`(?m)^SLOT\s+NAME\s+ORDER`), out)
	assert.Contains(t, out, "left-panel")
	assert.Contains(t, out, "pharmacy-dashboard-slot")
}

func TestSlotsCommand_JSON(t *testing.T) {
	setupEnv(t)

	out, _, err := execute(context.Background(), "slots", "left-panel", "--json")
	require.NoError(t, err)

	var entries []extension.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, extension.SlotLeftPanel, e.Slot)
		assert.Equal(t, "link", e.Kind)
	}
}

func TestSlotsCommand_UnknownSlotSuggests(t *testing.T) {
	setupEnv(t)

	_, _, err := execute(context.Background(), "slots", "left-panl")
	require.Error(t, err)

	var msg *messageError
	require.True(t, errors.As(err, &msg))
	assert.Equal(t, []string{"left-panel"}, msg.Suggestions)
	assert.Contains(t, msg.Format(), "Cannot find slot 'left-panl'.")
}

func TestPreviewCommand(t *testing.T) {
	setupEnv(t)

	out, _, err := execute(context.Background(), "preview", "left-panel")
	require.NoError(t, err)
	assert.Contains(t, out, "Pharmacy")
	assert.Contains(t, out, "Radiology")
}

func TestPreviewCommand_BoundCard(t *testing.T) {
	setupEnv(t)

	out, _, err := execute(context.Background(), "preview", "pharmacy-dashboard-slot")
	require.NoError(t, err)
	assert.Contains(t, out, "Active prescriptions")
}

func TestPreviewCommand_UnknownSlot(t *testing.T) {
	setupEnv(t)

	_, _, err := execute(context.Background(), "preview", "nowhere")
	var msg *messageError
	require.True(t, errors.As(err, &msg))
	assert.Empty(t, msg.Suggestions)
}

func TestFetchCommand(t *testing.T) {
	setupEnv(t)

	out, _, err := execute(context.Background(), "fetch", "/ws/rest/v1/location", "tag=Login Location")
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "loc-1", items[0]["uuid"])
}

func TestFetchCommand_Limit(t *testing.T) {
	setupEnv(t)

	out, _, err := execute(context.Background(), "fetch", "/ws/rest/v1/location", "--limit", "1")
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Len(t, items, 1)
}

func TestParseRequest(t *testing.T) {
	req, err := parseRequest("/ws/rest/v1/patient", []string{"q=ali", "v=default"})
	require.NoError(t, err)
	assert.Equal(t, "/ws/rest/v1/patient?q=ali&v=default", req.Key())

	_, err = parseRequest("ws/rest/v1/patient", nil)
	assert.Error(t, err)
	_, err = parseRequest("/ws/rest/v1/patient", []string{"novalue"})
	assert.Error(t, err)
}

func TestLoginCommand(t *testing.T) {
	setupEnv(t)

	out, _, err := execute(context.Background(), "login", "--location", "ward", "--user", "nurse")
	require.NoError(t, err)
	assert.Contains(t, out, "location: Ward")

	m := regexp.MustCompile(`(?m)^token:\s+(\S+)$`).FindStringSubmatch(out)
	require.Len(t, m, 2)

	sessions, err := auth.NewSessionService(testSecret, time.Hour)
	require.NoError(t, err)
	sess, err := sessions.Parse(m[1])
	require.NoError(t, err)
	assert.Equal(t, "nurse", sess.User)
	assert.Equal(t, "loc-2", sess.Location)
	assert.Equal(t, "Ward", sess.LocationName)
}

func TestLoginCommand_Errors(t *testing.T) {
	setupEnv(t)

	_, _, err := execute(context.Background(), "login", "--location", "nowhere")
	assert.EqualError(t, err, `unknown location "nowhere"`)

	t.Setenv("SLOTKIT_SESSION_SECRET", "")
	_, _, err = execute(context.Background(), "login", "--location", "Ward")
	assert.EqualError(t, err, "session.secret is required to issue tokens")
}

func TestServeCommand_StopsWithContext(t *testing.T) {
	setupEnv(t)
	t.Setenv("SLOTKIT_SERVER_SHUTDOWN_TIMEOUT", "2s")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, _, err := execute(ctx, "serve", "--port", "0")
	assert.NoError(t, err)
}

func TestConfigErrorIsReported(t *testing.T) {
	t.Setenv("SLOTKIT_BACKEND_BASE_URL", "not a url")

	_, _, err := execute(context.Background(), "slots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.base_url")
}
