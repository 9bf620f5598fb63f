// Package pharmacy contributes the pharmacy dashboard.
package pharmacy

import (
	"github.com/openhis/slotkit/internal/apps/bind"
	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/ui"
)

const (
	ModuleName = "pharmacy-app"
	Path       = "pharmacy"
)

// ActivePrescriptions is the request behind the prescriptions card.
var ActivePrescriptions = resource.NewRequest(resource.OrderEndpoint, "orderTypes", "drug", "status", "active", "v", "full")

// Module returns the pharmacy extensions.
func Module(deps bind.Deps) extension.Module {
	slot := extension.DashboardSlot(Path)
	return extension.Module{
		Name:    ModuleName,
		Feature: "pharmacy",
		Extensions: []extension.Descriptor{
			extension.DashboardLink(extension.DashboardLinkOptions{
				Name:  "pharmacy",
				Title: "Pharmacy",
				Path:  Path,
				Icon:  "medication",
				Order: 10,
			}),
			{
				Name:      "pharmacy-header",
				SlotID:    slot,
				Title:     "Pharmacy",
				Component: ui.Banner,
				Meta:      map[string]string{"kind": "banner"},
				Bind:      bind.Banner("pharmacy"),
			},
			{
				Name:      "active-prescriptions",
				SlotID:    slot,
				Title:     "Active prescriptions",
				Order:     10,
				Component: ui.Card,
				Meta:      map[string]string{"kind": "card"},
				Bind: bind.List[resource.Order](deps, bind.Fixed(ActivePrescriptions),
					bind.CardRows(notDiscontinued, bind.OrderRow)),
			},
		},
	}
}

func notDiscontinued(o resource.Order) bool {
	return o.Action != "DISCONTINUE"
}
