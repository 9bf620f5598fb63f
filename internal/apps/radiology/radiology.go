// Package radiology contributes the radiology dashboard.
package radiology

import (
	"github.com/openhis/slotkit/internal/apps/bind"
	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/ui"
)

const (
	ModuleName = "radiology-app"
	Path       = "radiology"
)

// ImagingOrders is the request behind the imaging orders card.
var ImagingOrders = resource.NewRequest(resource.OrderEndpoint, "orderTypes", "radiology", "v", "full")

// Module returns the radiology extensions.
func Module(deps bind.Deps) extension.Module {
	slot := extension.DashboardSlot(Path)
	return extension.Module{
		Name:    ModuleName,
		Feature: "radiology",
		Extensions: []extension.Descriptor{
			extension.DashboardLink(extension.DashboardLinkOptions{
				Name:  "radiology",
				Title: "Radiology",
				Path:  Path,
				Icon:  "radiology",
				Order: 20,
			}),
			{
				Name:      "radiology-header",
				SlotID:    slot,
				Title:     "Radiology",
				Component: ui.Banner,
				Meta:      map[string]string{"kind": "banner"},
				Bind:      bind.Banner("radiology"),
			},
			{
				Name:      "imaging-orders",
				SlotID:    slot,
				Title:     "Imaging orders",
				Order:     10,
				Component: ui.Card,
				Meta:      map[string]string{"kind": "card"},
				Bind: bind.List[resource.Order](deps, bind.Fixed(ImagingOrders),
					bind.CardRows(nil, imagingRow)),
			},
		},
	}
}

func imagingRow(o resource.Order) ui.Row {
	row := bind.OrderRow(o)
	if o.Urgency == "STAT" {
		row.Meta = "Urgent"
	}
	return row
}
