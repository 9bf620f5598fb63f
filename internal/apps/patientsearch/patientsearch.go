// Package patientsearch contributes patient search.
package patientsearch

import (
	"strings"

	"github.com/openhis/slotkit/internal/apps/bind"
	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/ui"
)

const (
	ModuleName = "patient-search-app"
	Path       = "patient-search"
)

// Request returns the search request for query. A blank query has no
// request, so nothing is fetched until the user types.
func Request(query string) (resource.Request, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return resource.Request{}, false
	}
	return resource.NewRequest(resource.PatientEndpoint, "q", q, "v", "full"), true
}

// Key is the cache key of the search for query.
func Key(query string) string {
	req, ok := Request(query)
	if !ok {
		return ""
	}
	return req.Key()
}

// Module returns the patient search extensions.
func Module(deps bind.Deps) extension.Module {
	return extension.Module{
		Name:    ModuleName,
		Feature: "patient-search",
		Extensions: []extension.Descriptor{
			extension.DashboardLink(extension.DashboardLinkOptions{
				Name:  "patient-search",
				Title: "Patient search",
				Path:  Path,
				Icon:  "search",
				Order: 40,
			}),
			{
				Name:      "patient-search-results",
				SlotID:    extension.DashboardSlot(Path),
				Title:     "Search results",
				Component: ui.PatientTable,
				Meta:      map[string]string{"kind": "patients"},
				Bind: bind.List[resource.Patient](deps, func(p ui.Props) (resource.Request, bool) {
					return Request(p.String(ui.KeyQuery))
				}, patientProps),
			},
		},
	}
}

func patientProps(st swr.State[[]resource.Patient], p ui.Props) ui.Props {
	if !st.HasData {
		return p
	}
	rows := make([]ui.PatientRow, 0, len(st.Data))
	for _, pt := range st.Data {
		rows = append(rows, Row(pt))
	}
	p[ui.KeyPatients] = rows
	return p
}

// Row maps a patient to a table row.
func Row(p resource.Patient) ui.PatientRow {
	name := p.Person.Display
	if name == "" {
		name = p.Display
	}
	return ui.PatientRow{
		UUID:       p.UUID,
		Name:       name,
		Identifier: p.PreferredIdentifier(),
		Gender:     p.Person.Gender,
		Age:        bind.FormatAge(p.Person.Age),
	}
}
