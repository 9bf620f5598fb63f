package extension

import (
	"errors"

	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/ui"
)

// Module is a named group of extensions installed together.
type Module struct {
	Name       string
	Feature    string
	Extensions []Descriptor
}

// Install registers the extensions of every module. A failing extension does
// not prevent the others from registering; all failures are returned joined.
func Install(reg *Registry, modules ...Module) ([]*Handle, error) {
	var (
		handles []*Handle
		errs    []error
	)
	for _, m := range modules {
		opts := LifecycleOptions{ModuleName: m.Name, FeatureName: m.Feature}
		for _, d := range m.Extensions {
			h, err := reg.Register(d, opts)
			if err != nil {
				reg.logger.Error("extension registration failed",
					zap.String("module", m.Name),
					zap.String("slot", d.SlotID),
					zap.String("name", d.Name),
					zap.Error(err))
				errs = append(errs, err)
				continue
			}
			handles = append(handles, h)
		}
	}
	return handles, errors.Join(errs...)
}

// DashboardLinkOptions configure a side navigation link.
type DashboardLinkOptions struct {
	// Name defaults to "<path>-dashboard-link".
	Name  string
	Slot  string
	Title string
	Path  string
	Icon  string
	Order int
}

// DashboardLink builds the descriptor of a link to the dashboard at Path.
// Links go to the left panel unless Slot is set.
func DashboardLink(opts DashboardLinkOptions) Descriptor {
	name := opts.Name
	if name == "" {
		name = opts.Path + "-dashboard-link"
	}
	slot := opts.Slot
	if slot == "" {
		slot = SlotLeftPanel
	}
	return Descriptor{
		Name:      name,
		SlotID:    slot,
		Title:     opts.Title,
		Path:      opts.Path,
		Icon:      opts.Icon,
		Order:     opts.Order,
		Component: ui.DashboardLink,
		Meta:      map[string]string{"kind": "link", "dashboard": DashboardSlot(opts.Path)},
	}
}
