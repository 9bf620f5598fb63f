package shell

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/navigation"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/ui"
	"github.com/openhis/slotkit/internal/web/auth"
	"github.com/openhis/slotkit/internal/web/response"
	"github.com/openhis/slotkit/internal/web/router"
)

// LocationPath is the location picker.
const LocationPath = "/login/location"

// LoginLocations lists the locations a session may select.
var LoginLocations = resource.NewRequest(resource.LocationEndpoint, "tag", "Login Location", "v", "default")

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body data-spa-base="{{.Base}}">
<div class="shell">
<header class="shell-header" data-slot="header">{{.Header}}{{if .Location}}<span class="shell-header__location">{{.Location}}</span>{{end}}</header>
<nav class="side-nav" data-slot="left-panel">{{.Nav}}</nav>
<main class="dashboard" data-slot="{{.Slot}}">{{.Dashboard}}</main>
</div>
</body>
</html>
`))

type pageData struct {
	Title     string
	Base      string
	Location  string
	Slot      string
	Header    ui.Fragment
	Nav       ui.Fragment
	Dashboard ui.Fragment
}

func (s *Shell) redirectHome(w http.ResponseWriter, r *http.Request) {
	navigation.Redirect(w, r, http.StatusFound).Navigate(s.home())
}

func (s *Shell) home() string {
	return navigation.Join(s.cfg.SPABase, s.cfg.Home)
}

// linkFor returns the left-panel link whose path is the longest prefix of
// rest.
func (s *Shell) linkFor(rest string) (extension.Descriptor, bool) {
	var best extension.Descriptor
	found := false
	for _, d := range s.cfg.Registry.Slot(extension.SlotLeftPanel) {
		if d.Path == "" {
			continue
		}
		if rest != d.Path && !strings.HasPrefix(rest, d.Path+"/") {
			continue
		}
		if !found || len(d.Path) > len(best.Path) {
			best, found = d, true
		}
	}
	return best, found
}

func (s *Shell) page(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	if !sess.HasLocation() {
		http.Redirect(w, r, LocationPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}

	rest := strings.Trim(router.Wildcard(r), "/")
	if rest == "" {
		s.redirectHome(w, r)
		return
	}
	link, ok := s.linkFor(rest)
	if !ok {
		s.fail(w, r, notFound("no dashboard at "+rest))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
	defer cancel()

	props := s.requestProps(r)
	slot := extension.DashboardSlot(link.Path)

	var nav []ui.Fragment
	for _, d := range s.cfg.Registry.Slot(extension.SlotLeftPanel) {
		nav = append(nav, d.Render(ctx, props.Merge(ui.Props{ui.KeyActive: d.Name == link.Name})))
	}
	data := pageData{
		Title:     link.Title,
		Base:      s.cfg.SPABase,
		Location:  sess.LocationName,
		Slot:      slot,
		Header:    ui.Join(s.renderAll(ctx, s.cfg.Registry.Slot(extension.SlotHeader), props)...),
		Nav:       ui.Join(nav...),
		Dashboard: ui.Join(s.renderAll(ctx, s.cfg.Registry.Slot(slot), props)...),
	}
	if data.Title == "" {
		data.Title = link.Name
	}

	var buf bytes.Buffer
	if err := layout.Execute(&buf, data); err != nil {
		s.fail(w, r, err)
		return
	}
	response.HTML(w, http.StatusOK, buf.String())
}

// locations loads the selectable locations through the store, so repeated
// logins share one request.
func (s *Shell) locations(ctx context.Context) ([]resource.Location, error) {
	h := swr.UseKey(s.cfg.Store, LoginLocations.Key(), swr.List[resource.Location](s.cfg.Client), nil)
	defer h.Close()

	st, err := h.Wait(ctx)
	switch {
	case st.HasData:
		return st.Data, nil
	case st.Err != nil:
		return nil, st.Err
	case err != nil:
		return nil, &resource.Error{Kind: resource.KindNetwork, Op: "locations", Err: err}
	}
	return nil, nil
}

// next returns the page to open after login. Only pages of the shell are
// accepted.
func (s *Shell) next(r *http.Request) string {
	next := r.FormValue("next")
	if strings.HasPrefix(next, s.cfg.SPABase+"/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return s.home()
}

func (s *Shell) locationForm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
	defer cancel()

	locs, err := s.locations(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if response.WantsJSON(r) {
		response.JSON(w, http.StatusOK, locs)
		return
	}

	opts := make([]ui.Option, 0, len(locs))
	for _, l := range locs {
		opts = append(opts, ui.Option{Value: l.UUID, Label: l.Display})
	}
	p := ui.Props{
		ui.KeyLocations: opts,
		ui.KeyAction:    LocationPath + "?next=" + url.QueryEscape(s.next(r)),
	}
	if sess := auth.FromContext(r.Context()); sess.HasLocation() {
		p[ui.KeySelected] = sess.Location
	}
	response.HTML(w, http.StatusOK, string(ui.LocationPicker(p)))
}

// LoginResult is the JSON answer to a location selection.
type LoginResult struct {
	Token        string `json:"token"`
	Location     string `json:"location"`
	LocationName string `json:"location_name"`
	Next         string `json:"next"`
}

func (s *Shell) selectLocation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, response.BadRequest("malformed form"))
		return
	}
	uuid := r.PostForm.Get("location")
	if uuid == "" {
		s.fail(w, r, response.BadRequest("location is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
	defer cancel()
	locs, err := s.locations(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var loc *resource.Location
	for i := range locs {
		if locs[i].UUID == uuid {
			loc = &locs[i]
			break
		}
	}
	if loc == nil {
		s.fail(w, r, response.BadRequest("unknown location "+uuid))
		return
	}

	user := s.cfg.User
	if sess := auth.FromContext(r.Context()); sess != nil && sess.User != "" {
		user = sess.User
	}
	token, err := s.cfg.Sessions.Issue(auth.Session{User: user, Location: loc.UUID, LocationName: loc.Display})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cfg.Sessions.SetCookie(w, token, s.cfg.SecureCookies)
	s.cfg.Logger.Info("location selected", zap.String("user", user), zap.String("location", loc.UUID))

	next := s.next(r)
	if response.WantsJSON(r) {
		response.JSON(w, http.StatusOK, LoginResult{Token: token, Location: loc.UUID, LocationName: loc.Display, Next: next})
		return
	}
	navigation.Redirect(w, r, http.StatusSeeOther).Navigate(next)
}
