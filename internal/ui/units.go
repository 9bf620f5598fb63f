package ui

import (
	"fmt"
	"strings"

	"github.com/openhis/slotkit/internal/navigation"
)

const (
	DefaultIcon         = "application"
	DefaultIllustration = "generic"
	defaultIconSize     = 16
)

// Icon renders an icon sprite reference. Props: name, size.
func Icon(p Props) Fragment {
	size := defaultIconSize
	if n, ok := p["size"].(int); ok && n > 0 {
		size = n
	}
	return render("icon", struct {
		Name string
		Size int
	}{p.StringOr(KeyName, DefaultIcon), size})
}

// Illustration renders a decorative illustration. Props: name, title.
func Illustration(p Props) Fragment {
	name := p.StringOr(KeyName, DefaultIllustration)
	return render("illustration", struct {
		Name  string
		Label string
	}{name, p.StringOr(KeyTitle, name+" illustration")})
}

// LinkHref joins the SPA base and a dashboard path. A path carrying a
// ${spaBase} placeholder is interpolated instead.
func LinkHref(base, to string) string {
	if strings.Contains(to, "${") {
		return navigation.Interpolate(to, map[string]string{"spaBase": navigation.Join(base)})
	}
	return navigation.Join(base, to)
}

// DashboardLink renders a side navigation link. Props: name, title, path,
// base, icon, active.
func DashboardLink(p Props) Fragment {
	name := p.String(KeyName)
	title := p.StringOr(KeyTitle, name)
	if title == "" {
		title = Placeholder
	}
	var icon Fragment
	if p.String(KeyIcon) != "" {
		icon = Icon(Props{KeyName: p.String(KeyIcon)})
	}
	return render("dashboard-link", struct {
		Name   string
		Title  string
		Href   string
		Icon   Fragment
		Active bool
	}{name, title, LinkHref(p.String(KeyBase), p.StringOr(KeyPath, name)), icon, p.Bool(KeyActive)})
}

// Banner renders a page header. Props: title, subtitle, illustration.
func Banner(p Props) Fragment {
	return render("banner", struct {
		Title        string
		Subtitle     string
		Illustration Fragment
	}{
		p.StringOr(KeyTitle, Placeholder),
		p.String(KeySubtitle),
		Illustration(Props{KeyName: p.String(KeyIllus)}),
	})
}

// EmptyState renders the placeholder of an empty listing. Props: title,
// message.
func EmptyState(p Props) Fragment {
	return render("empty-state", struct {
		Title   string
		Message string
	}{p.StringOr(KeyTitle, "Nothing to show"), p.StringOr(KeyMessage, "There are no records to display")})
}

// Card renders a titled listing with loading, error and empty states.
// Props: title, key, rows, loading, error, message.
func Card(p Props) Fragment {
	title := p.StringOr(KeyTitle, Placeholder)
	return render("card", struct {
		Key     string
		Title   string
		Loading bool
		Error   string
		Rows    []Row
		Empty   Fragment
	}{
		Key:     p.String(KeyKey),
		Title:   title,
		Loading: p.Bool(KeyLoading) && len(p.Rows(KeyRows)) == 0,
		Error:   errorText(p, "Unable to load "+strings.ToLower(title)),
		Rows:    p.Rows(KeyRows),
		Empty:   EmptyState(Props{KeyTitle: "No " + strings.ToLower(title), KeyMessage: p.String(KeyMessage)}),
	})
}

// PatientTable renders patient search results. Props: key, patients,
// loading, error, q.
func PatientTable(p Props) Fragment {
	msg := "No patients found"
	if q := p.String(KeyQuery); q != "" {
		msg = fmt.Sprintf("No patients found matching %q", q)
	}
	return render("patient-table", struct {
		Key     string
		Loading bool
		Error   string
		Rows    []PatientRow
		Empty   Fragment
	}{
		Key:     p.String(KeyKey),
		Loading: p.Bool(KeyLoading) && len(p.Patients(KeyPatients)) == 0,
		Error:   errorText(p, "Unable to search patients"),
		Rows:    p.Patients(KeyPatients),
		Empty:   EmptyState(Props{KeyTitle: "Search results", KeyMessage: msg}),
	})
}

// LocationPicker renders the login location form. Props: locations,
// selected, action, title.
func LocationPicker(p Props) Fragment {
	return render("location-picker", struct {
		Title    string
		Action   string
		Options  []Option
		Selected string
		Empty    Fragment
	}{
		Title:    p.StringOr(KeyTitle, "Select your location"),
		Action:   p.StringOr(KeyAction, "/login/location"),
		Options:  p.Options(KeyLocations),
		Selected: p.String(KeySelected),
		Empty:    EmptyState(Props{KeyTitle: "No locations", KeyMessage: "No locations are available for this session"}),
	})
}

// errorText is shown instead of data when a load failed but nothing is
// cached. Stale data takes precedence over the error.
func errorText(p Props, text string) string {
	if p.Err(KeyError) == nil || len(p.Rows(KeyRows)) > 0 || len(p.Patients(KeyPatients)) > 0 {
		return ""
	}
	return text
}
