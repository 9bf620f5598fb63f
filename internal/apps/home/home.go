// Package home contributes the home dashboard.
package home

import (
	"github.com/openhis/slotkit/internal/apps/bind"
	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/ui"
)

const (
	ModuleName = "home-app"
	Path       = "home"
)

// ActiveVisits is the request behind the active visits card.
var ActiveVisits = resource.NewRequest(resource.VisitEndpoint, "includeInactive", "false", "v", "default")

// Module returns the home extensions.
func Module(deps bind.Deps) extension.Module {
	slot := extension.DashboardSlot(Path)
	return extension.Module{
		Name:    ModuleName,
		Feature: "home",
		Extensions: []extension.Descriptor{
			extension.DashboardLink(extension.DashboardLinkOptions{
				Name:  "home",
				Title: "Home",
				Path:  Path,
				Icon:  "home",
			}),
			{
				Name:      "home-header",
				SlotID:    slot,
				Title:     "Home",
				Component: ui.Banner,
				Meta:      map[string]string{"kind": "banner"},
				Bind:      bind.Banner("home"),
			},
			{
				Name:      "active-visits",
				SlotID:    slot,
				Title:     "Active visits",
				Order:     10,
				Component: ui.Card,
				Meta:      map[string]string{"kind": "card"},
				Bind: bind.List[resource.Visit](deps, bind.Fixed(ActiveVisits),
					bind.CardRows(resource.Visit.Active, visitRow)),
			},
		},
	}
}

func visitRow(v resource.Visit) ui.Row {
	return ui.Row{
		Primary:   v.Patient.Display,
		Secondary: v.VisitType.Display,
		Meta:      bind.FormatTime(v.StartDatetime),
	}
}
