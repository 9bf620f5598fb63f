// Package laboratory contributes the laboratory dashboard.
package laboratory

import (
	"github.com/openhis/slotkit/internal/apps/bind"
	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/ui"
)

const (
	ModuleName = "laboratory-app"
	Path       = "laboratory"
)

// PendingTests is the request behind the pending lab orders card.
var PendingTests = resource.NewRequest(resource.OrderEndpoint, "orderTypes", "test", "v", "full")

// Module returns the laboratory extensions.
func Module(deps bind.Deps) extension.Module {
	slot := extension.DashboardSlot(Path)
	return extension.Module{
		Name:    ModuleName,
		Feature: "laboratory",
		Extensions: []extension.Descriptor{
			extension.DashboardLink(extension.DashboardLinkOptions{
				Name:  "laboratory",
				Title: "Laboratory",
				Path:  Path,
				Icon:  "chemistry",
				Order: 30,
			}),
			{
				Name:      "laboratory-header",
				SlotID:    slot,
				Title:     "Laboratory",
				Component: ui.Banner,
				Meta:      map[string]string{"kind": "banner"},
				Bind:      bind.Banner("laboratory"),
			},
			{
				Name:      "pending-lab-orders",
				SlotID:    slot,
				Title:     "Pending lab orders",
				Order:     10,
				Component: ui.Card,
				Meta:      map[string]string{"kind": "card"},
				Bind: bind.List[resource.Order](deps, bind.Fixed(PendingTests),
					bind.CardRows(pending, bind.OrderRow)),
			},
		},
	}
}

// pending excludes orders the lab has finished with.
func pending(o resource.Order) bool {
	switch o.FulfillerStatus {
	case "COMPLETED", "DECLINED", "EXCEPTION":
		return false
	}
	return o.Action != "DISCONTINUE"
}
