package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhis/slotkit/internal/apps"
	"github.com/openhis/slotkit/internal/apps/home"
	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/web/auth"
	"github.com/openhis/slotkit/internal/web/ratelimit"
	"github.com/openhis/slotkit/internal/web/response"
	"github.com/openhis/slotkit/internal/web/websocket"
)

type fixture struct {
	shell    *Shell
	server   *httptest.Server
	sessions *auth.SessionService
	registry *extension.Registry
}

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(resource.VisitEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"uuid":"v1","patient":{"display":"100HM - Jane Doe"},"visitType":{"display":"Outpatient"},"startDatetime":"2024-03-07T14:05:00.000+0000"},
			{"uuid":"v2","patient":{"display":"Closed"},"stopDatetime":"2024-03-07T16:00:00.000+0000"}
		]}`))
	})
	mux.HandleFunc(resource.OrderEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	mux.HandleFunc(resource.PatientEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"uuid":"p1","display":"Jane","person":{"display":"Jane Doe","gender":"F","age":34}}]}`))
	})
	mux.HandleFunc(resource.LocationEndpoint, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tag") != "Login Location" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"uuid":"loc-1","display":"Inpatient Ward"},{"uuid":"loc-2","display":"Outpatient Clinic"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	client, err := resource.NewClient(backend(t).URL)
	require.NoError(t, err)
	store := swr.NewStore()
	t.Cleanup(store.Close)

	reg := extension.NewRegistry()
	_, err = apps.Install(reg, store, client)
	require.NoError(t, err)

	sessions, err := auth.NewSessionService("test-secret", time.Hour)
	require.NoError(t, err)

	cfg := Config{
		Registry: reg,
		Store:    store,
		Client:   client,
		Sessions: sessions,
		User:     "admin",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return &fixture{shell: s, server: srv, sessions: sessions, registry: reg}
}

func (f *fixture) token(t *testing.T) string {
	t.Helper()
	token, err := f.sessions.Issue(auth.Session{User: "admin", Location: "loc-1", LocationName: "Inpatient Ward"})
	require.NoError(t, err)
	return token
}

func (f *fixture) get(t *testing.T, path string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestNew_Validates(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry is required")
	assert.Contains(t, err.Error(), "session service is required")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var h Health
	require.NoError(t, json.Unmarshal([]byte(body), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, f.registry.Count(), h.Extensions)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAPI_Slots(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/slots", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []SlotView
	require.NoError(t, json.Unmarshal([]byte(body), &views))
	var panel *SlotView
	for i := range views {
		if views[i].Slot == extension.SlotLeftPanel {
			panel = &views[i]
		}
	}
	require.NotNil(t, panel)
	var names []string
	for _, e := range panel.Extensions {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"home", "pharmacy", "radiology", "laboratory", "patient-search"}, names)

	resp, body = f.get(t, "/api/slots/"+extension.DashboardSlot("pharmacy"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "active-prescriptions")
}

func TestAPI_SlotsNotModified(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/slots", "/api/slots/" + extension.SlotLeftPanel, "/slots/" + extension.SlotLeftPanel} {
		resp, body := f.get(t, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		etag := resp.Header.Get("ETag")
		require.NotEmpty(t, etag, path)

		resp, body2 := f.get(t, path, http.Header{"If-None-Match": {etag}})
		assert.Equal(t, http.StatusNotModified, resp.StatusCode, path)
		assert.Empty(t, body2, path)
		assert.NotEmpty(t, body, path)
	}
}

func TestAPI_UnknownSlot(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/slots/nope", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var er response.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &er))
	assert.Equal(t, "not_found", er.Error)
	assert.Equal(t, http.StatusNotFound, er.Code)
}

func TestAPI_Routes(t *testing.T) {
	f := newFixture(t)
	_, body := f.get(t, "/api/routes", nil)
	assert.Contains(t, body, `"/ws"`)
	assert.Contains(t, body, `"/spa/*"`)
}

func TestFragments(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/slots/left-panel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `data-extension="pharmacy"`)
	assert.Contains(t, body, `href="/spa/radiology"`)

	resp, body = f.get(t, "/slots/left-panel/radiology", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-extension="radiology"`)
	assert.NotContains(t, body, `data-extension="pharmacy"`)

	resp, _ = f.get(t, "/slots/left-panel/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFragments_BoundUnitWaitsForData(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/slots/"+extension.DashboardSlot("home")+"/active-visits", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "100HM - Jane Doe")
	assert.NotContains(t, body, "Closed")
}

func TestPage_RedirectsWithoutLocation(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.get(t, "/spa/pharmacy", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, LocationPath+"?next="+url.QueryEscape("/spa/pharmacy"), resp.Header.Get("Location"))
}

func TestPage_Dashboard(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/spa/home", bearer(f.token(t)))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Contains(t, body, "<title>Home</title>")
	assert.Contains(t, body, "Inpatient Ward")
	assert.Contains(t, body, "Active visits")
	assert.Contains(t, body, "100HM - Jane Doe")
	assert.Contains(t, body, `side-nav__link side-nav__link--active" href="/spa/home"`)
	assert.Contains(t, body, `data-slot="home-dashboard-slot"`)
}

func TestPage_Search(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/spa/patient-search?q=doe", bearer(f.token(t)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Jane Doe")
}

func TestPage_RootAndUnknown(t *testing.T) {
	f := newFixture(t)
	token := f.token(t)

	resp, _ := f.get(t, "/spa", bearer(token))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/spa/home", resp.Header.Get("Location"))

	resp, _ = f.get(t, "/spa/billing", bearer(token))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogin_Flow(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, LocationPath+"?next=/spa/pharmacy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<option value="loc-1">Inpatient Ward</option>`)
	assert.Contains(t, body, `id="confirm-location"`)

	form := url.Values{"location": {"loc-2"}}
	resp, err := noRedirect().PostForm(f.server.URL+LocationPath+"?next=/spa/pharmacy", form)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/spa/pharmacy", resp.Header.Get("Location"))

	var token string
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)
	sess, err := f.sessions.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", sess.User)
	assert.Equal(t, "loc-2", sess.Location)
	assert.Equal(t, "Outpatient Clinic", sess.LocationName)

	resp, body = f.get(t, "/spa/pharmacy", http.Header{"Cookie": {auth.CookieName + "=" + token}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "No active prescriptions")
}

func TestLogin_Rejects(t *testing.T) {
	f := newFixture(t)

	for name, form := range map[string]url.Values{
		"missing": {},
		"unknown": {"location": {"loc-9"}},
	} {
		resp, err := noRedirect().PostForm(f.server.URL+LocationPath, form)
		require.NoError(t, err, name)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
}

func TestLogin_JSON(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodPost, f.server.URL+LocationPath+"?next=//evil", strings.NewReader("location=loc-1"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res LoginResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "loc-1", res.Location)
	assert.Equal(t, "/spa/home", res.Next)
	_, err = f.sessions.Parse(res.Token)
	assert.NoError(t, err)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (f *fixture) dial(t *testing.T, header http.Header) (*gws.Conn, *http.Response, error) {
	t.Helper()
	return gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http")+"/ws", header)
}

func readFrame(t *testing.T, conn *gws.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebsocket_ResourceStream(t *testing.T) {
	f := newFixture(t)
	conn, _, err := f.dial(t, bearer(f.token(t)))
	require.NoError(t, err)
	defer conn.Close()

	key := home.ActiveVisits.Key()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": websocket.TypeSubscribe, "data": map[string]string{"key": key}}))

	ack := readFrame(t, conn)
	require.Equal(t, websocket.TypeSubscribed, ack.Type)
	assert.Contains(t, string(ack.Data), key)

	var msg ResourceMessage
	for {
		fr := readFrame(t, conn)
		require.Equal(t, websocket.TypeResource, fr.Type)
		var raw struct {
			Key     string            `json:"key"`
			Data    []json.RawMessage `json:"data"`
			Error   string            `json:"error"`
			Loading bool              `json:"loading"`
		}
		require.NoError(t, json.Unmarshal(fr.Data, &raw))
		if raw.Loading {
			continue
		}
		msg = ResourceMessage{Key: raw.Key, Data: raw.Data, Error: raw.Error}
		assert.Len(t, raw.Data, 2)
		break
	}
	assert.Equal(t, key, msg.Key)
	assert.Empty(t, msg.Error)
	assert.Equal(t, 1, f.shell.stream.open())

	require.NoError(t, conn.WriteJSON(map[string]any{"type": websocket.TypeUnsubscribe, "data": map[string]string{"key": key}}))
	require.Eventually(t, func() bool { return f.shell.stream.open() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocket_InvalidKey(t *testing.T) {
	f := newFixture(t)
	conn, _, err := f.dial(t, bearer(f.token(t)))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": websocket.TypeSubscribe, "data": map[string]string{"key": "visits"}}))
	fr := readFrame(t, conn)
	assert.Equal(t, websocket.TypeError, fr.Type)
	assert.Contains(t, string(fr.Data), "key must be a backend path")
}

func TestWebsocket_DisconnectReleases(t *testing.T) {
	f := newFixture(t)
	conn, _, err := f.dial(t, bearer(f.token(t)))
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": websocket.TypeSubscribe, "data": map[string]string{"key": home.ActiveVisits.Key()}}))
	assert.Equal(t, websocket.TypeSubscribed, readFrame(t, conn).Type)
	require.Equal(t, 1, f.shell.stream.open())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.shell.stream.open() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLogin_RateLimited(t *testing.T) {
	tb := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{Capacity: 1, Window: time.Hour})
	t.Cleanup(func() { tb.Close() })
	f := newFixture(t, func(c *Config) { c.Limiter = tb })

	form := url.Values{"location": {"loc-2"}}
	resp, err := noRedirect().PostForm(f.server.URL+LocationPath, form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, err = noRedirect().PostForm(f.server.URL+LocationPath, form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// The picker itself is not limited.
	resp, _ = f.get(t, LocationPath, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProfiling(t *testing.T) {
	off := newFixture(t)
	resp, _ := off.get(t, "/debug/pprof/", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	on := newFixture(t, func(c *Config) { c.Profiling = true })
	resp, body := on.get(t, "/debug/pprof/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "goroutine")
}

func TestResourceEvents(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	key := url.QueryEscape(resource.PatientEndpoint + "?q=jane")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/api/resources/events?key="+key, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token(t))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			event = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
			break
		}
	}
	require.Equal(t, websocket.TypeResource, event)

	var msg ResourceMessage
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	assert.Equal(t, resource.PatientEndpoint+"?q=jane", msg.Key)
	assert.False(t, msg.Loading)
	assert.Contains(t, data, `"uuid":"p1"`)
}

func TestResourceEvents_InvalidKey(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/resources/events?key=patients", bearer(f.token(t)))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "key must be a backend path")
}

func TestResourceEvents_RequiresLocation(t *testing.T) {
	f := newFixture(t)
	key := url.QueryEscape(resource.PatientEndpoint + "?q=jane")

	resp, body := f.get(t, "/api/resources/events?key="+key, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "a session with a location is required")

	noLocation, err := f.sessions.Issue(auth.Session{User: "admin"})
	require.NoError(t, err)
	resp, _ = f.get(t, "/api/resources/events?key="+key, bearer(noLocation))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestResourceEvents_RejectsOtherEndpoints(t *testing.T) {
	f := newFixture(t)

	for _, key := range []string{
		"/ws/rest/v1/user",
		resource.SessionEndpoint,
		"/ws/rest/v1/patient/../user",
		"/ws/rest/v1/patient/%2e%2e/user",
		"/ws/rest/v1/patientx",
	} {
		resp, body := f.get(t, "/api/resources/events?key="+url.QueryEscape(key), bearer(f.token(t)))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, key)
		assert.Contains(t, body, "key must name a resource endpoint", key)
	}
}

func TestCanonicalKey(t *testing.T) {
	key, err := canonicalKey(resource.PatientEndpoint + "/p1?v=full&a=1")
	require.NoError(t, err)
	assert.Equal(t, resource.PatientEndpoint+"/p1?a=1&v=full", key)

	_, err = canonicalKey("/ws/rest/v1/user")
	assert.ErrorIs(t, err, errUnknownEndpoint)
	_, err = canonicalKey("visits")
	assert.ErrorIs(t, err, errInvalidKey)
}

func TestWebsocket_RequiresLocation(t *testing.T) {
	f := newFixture(t)

	conn, resp, err := f.dial(t, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Nil(t, conn)
}

func TestWebsocket_RejectsOtherEndpoints(t *testing.T) {
	f := newFixture(t)
	conn, _, err := f.dial(t, bearer(f.token(t)))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": websocket.TypeSubscribe, "data": map[string]string{"key": "/ws/rest/v1/user"}}))
	fr := readFrame(t, conn)
	assert.Equal(t, websocket.TypeError, fr.Type)
	assert.Contains(t, string(fr.Data), "key must name a resource endpoint")
	assert.Equal(t, 0, f.shell.stream.open())
}
