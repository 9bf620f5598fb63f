package shell

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/ui"
	"github.com/openhis/slotkit/internal/web/auth"
	"github.com/openhis/slotkit/internal/web/middleware"
	"github.com/openhis/slotkit/internal/web/response"
	"github.com/openhis/slotkit/internal/web/router"
)

// renderConcurrency caps the units of one request rendered at once.
const renderConcurrency = 8

// Health is the body of /healthz.
type Health struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	Extensions int       `json:"extensions"`
	Streams    int       `json:"streams"`
	Clients    int       `json:"clients"`
	Store      swr.Stats `json:"store"`
}

// SlotView lists the extensions of one slot.
type SlotView struct {
	Slot       string            `json:"slot"`
	Extensions []extension.Entry `json:"extensions"`
}

func (s *Shell) health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, Health{
		Status:     "ok",
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Extensions: s.cfg.Registry.Count(),
		Streams:    s.stream.open(),
		Clients:    s.hub.ClientCount(),
		Store:      s.cfg.Store.Stats(),
	})
}

func (s *Shell) listRoutes(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, s.router.Routes())
}

func (s *Shell) slotViews() []SlotView {
	var views []SlotView
	for _, e := range s.cfg.Registry.Snapshot() {
		if n := len(views); n == 0 || views[n-1].Slot != e.Slot {
			views = append(views, SlotView{Slot: e.Slot})
		}
		last := &views[len(views)-1]
		last.Extensions = append(last.Extensions, e)
	}
	return views
}

func (s *Shell) listSlots(w http.ResponseWriter, r *http.Request) {
	views := s.slotViews()
	if views == nil {
		views = []SlotView{}
	}
	response.ConditionalJSON(w, r, views)
}

func (s *Shell) showSlot(w http.ResponseWriter, r *http.Request) {
	slot := router.PathParam(r, "slot")
	for _, v := range s.slotViews() {
		if v.Slot == slot {
			response.ConditionalJSON(w, r, v)
			return
		}
	}
	s.fail(w, r, notFound(fmt.Sprintf("slot %q has no extensions", slot)))
}

func (s *Shell) renderSlot(w http.ResponseWriter, r *http.Request) {
	slot := router.PathParam(r, "slot")
	descs := s.cfg.Registry.Slot(slot)
	if len(descs) == 0 {
		s.fail(w, r, notFound(fmt.Sprintf("slot %q has no extensions", slot)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
	defer cancel()
	frags := s.renderAll(ctx, descs, s.requestProps(r))
	response.ConditionalHTML(w, r, string(ui.Join(frags...)))
}

func (s *Shell) renderExtension(w http.ResponseWriter, r *http.Request) {
	slot, name := router.PathParam(r, "slot"), router.PathParam(r, "name")
	d, ok := s.cfg.Registry.Get(slot, name)
	if !ok {
		s.fail(w, r, notFound(fmt.Sprintf("no extension %q in slot %q", name, slot)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
	defer cancel()
	response.HTML(w, http.StatusOK, string(d.Render(ctx, s.requestProps(r))))
}

// requestProps are the props every unit of a request receives.
func (s *Shell) requestProps(r *http.Request) ui.Props {
	p := ui.Props{ui.KeyBase: s.cfg.SPABase}
	if q := router.QueryParam(r, ui.KeyQuery, ""); q != "" {
		p[ui.KeyQuery] = q
	}
	if sess := auth.FromContext(r.Context()); sess.HasLocation() {
		p[ui.KeyLocation] = sess.LocationName
	}
	return p
}

// renderAll renders descs concurrently, keeping their order. Each unit waits
// for its data until ctx ends.
func (s *Shell) renderAll(ctx context.Context, descs []extension.Descriptor, extra ui.Props) []ui.Fragment {
	frags := make([]ui.Fragment, len(descs))
	var g errgroup.Group
	g.SetLimit(renderConcurrency)
	for i, d := range descs {
		g.Go(func() error {
			frags[i] = d.Render(ctx, extra)
			return nil
		})
	}
	_ = g.Wait()
	return frags
}

func notFound(msg string) error {
	return response.NotFound(msg)
}

// fail writes err as JSON for API clients and as an HTML empty state
// otherwise.
func (s *Shell) fail(w http.ResponseWriter, r *http.Request, err error) {
	he := response.FromError(err)
	if he.Status >= http.StatusInternalServerError {
		s.cfg.Logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}
	if response.WantsJSON(r) || strings.HasPrefix(r.URL.Path, "/api/") {
		response.RenderError(w, err)
		return
	}
	response.HTML(w, he.Status, string(ui.EmptyState(ui.Props{
		ui.KeyTitle:   http.StatusText(he.Status),
		ui.KeyMessage: he.Message,
	})))
}
