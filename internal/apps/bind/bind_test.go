package bind

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/ui"
)

func newDeps(t *testing.T, handler http.HandlerFunc) Deps {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := resource.NewClient(srv.URL)
	require.NoError(t, err)
	s := swr.NewStore()
	t.Cleanup(s.Close)
	return Deps{Store: s, Client: c}
}

func TestList_BindsRows(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "drug", r.URL.Query().Get("orderTypes"))
		_, _ = w.Write([]byte(`{"results":[
			{"uuid":"o1","patient":{"display":"Jane Doe"},"concept":{"display":"Aspirin"},"urgency":"ROUTINE"},
			{"uuid":"o2","patient":{"display":"John Roe"},"concept":{"display":"Ibuprofen"},"fulfillerStatus":"COMPLETED"}
		]}`))
	})

	binder := List[resource.Order](deps, Fixed(resource.NewRequest(resource.OrderEndpoint, "orderTypes", "drug")),
		CardRows[resource.Order](func(o resource.Order) bool { return o.FulfillerStatus != "COMPLETED" }, OrderRow))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p := binder(ctx, ui.Props{ui.KeyTitle: "Prescriptions"})

	assert.False(t, p.Bool(ui.KeyLoading))
	assert.Nil(t, p.Err(ui.KeyError))
	assert.Equal(t, "/ws/rest/v1/order?orderTypes=drug", p.String(ui.KeyKey))
	assert.Equal(t, []ui.Row{{Primary: "Jane Doe", Secondary: "Aspirin", Meta: "ROUTINE"}}, p.Rows(ui.KeyRows))
}

func TestList_NoRequestSkipsFetch(t *testing.T) {
	var hits atomic.Int32
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	binder := List[resource.Patient](deps, func(ui.Props) (resource.Request, bool) { return resource.Request{}, false },
		func(st swr.State[[]resource.Patient], p ui.Props) ui.Props { return p })

	p := binder(context.Background(), ui.Props{})
	assert.Equal(t, "", p.String(ui.KeyKey))
	assert.False(t, p.Bool(ui.KeyLoading))
	assert.Zero(t, hits.Load())
}

func TestList_ErrorSurfacesInProps(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	binder := List[resource.Visit](deps, Fixed(resource.NewRequest(resource.VisitEndpoint)),
		CardRows[resource.Visit](nil, func(v resource.Visit) ui.Row { return ui.Row{Primary: v.Display} }))

	p := binder(context.Background(), ui.Props{})
	err := p.Err(ui.KeyError)
	require.Error(t, err)
	assert.True(t, resource.IsKind(err, resource.KindNetwork))
	assert.Nil(t, p.Rows(ui.KeyRows))
}

func TestList_DeadlineLeavesLoading(t *testing.T) {
	release := make(chan struct{})
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	binder := List[resource.Visit](deps, Fixed(resource.NewRequest(resource.VisitEndpoint)),
		CardRows[resource.Visit](nil, func(v resource.Visit) ui.Row { return ui.Row{Primary: v.Display} }))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	p := binder(ctx, ui.Props{})
	assert.True(t, p.Bool(ui.KeyLoading))
}

func TestBanner(t *testing.T) {
	p := Banner("pharmacy")(context.Background(), ui.Props{ui.KeyLocation: "Outpatient Clinic"})
	assert.Equal(t, "pharmacy", p.String(ui.KeyIllus))
	assert.Equal(t, "Outpatient Clinic", p.String(ui.KeySubtitle))
}

func TestFormatters(t *testing.T) {
	ts := resource.Time{Time: time.Date(2024, 3, 7, 14, 5, 0, 0, time.UTC)}
	assert.Equal(t, "07-Mar-2024, 14:05", FormatTime(&ts))
	assert.Equal(t, "", FormatTime(nil))
	age := 42
	assert.Equal(t, "42", FormatAge(&age))
	assert.Equal(t, "", FormatAge(nil))
}
