// Package extension is the registry that mounts named units into slots.
//
// Modules describe their units with a Descriptor and register them once at
// startup. A name is unique within its slot; registering it twice is a
// configuration error that fails that extension only.
package extension

import (
	"context"
	"regexp"
	"strings"

	"github.com/openhis/slotkit/internal/ui"
)

// Well-known slots.
const (
	SlotLeftPanel = "left-panel"
	SlotHeader    = "header"
)

// DashboardSlot is the slot holding the content of the dashboard at path.
func DashboardSlot(path string) string {
	return strings.Trim(path, "/") + "-dashboard-slot"
}

// Binder resolves the data a component renders, starting from the
// descriptor's own props. It must return within ctx.
type Binder func(ctx context.Context, props ui.Props) ui.Props

// Descriptor declares one unit.
type Descriptor struct {
	Name      string
	SlotID    string
	Title     string
	Path      string
	Icon      string
	Component ui.Component
	Order     int
	Meta      map[string]string
	Bind      Binder
}

var namePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Validate checks the descriptor is well formed.
func (d Descriptor) Validate() error {
	fail := func(reason string) error {
		return &ConfigurationError{Slot: d.SlotID, Name: d.Name, Reason: reason}
	}
	switch {
	case d.Name == "":
		return fail("name is required")
	case !namePattern.MatchString(d.Name):
		return fail("name must be lower-case words separated by dashes")
	case d.SlotID == "":
		return fail("slot is required")
	case strings.HasPrefix(d.Path, "/"):
		return fail("path must be relative to the application base")
	case d.Component == nil:
		return fail("component is required")
	}
	return nil
}

// Kind is the presentational kind recorded in Meta["kind"].
func (d Descriptor) Kind() string {
	return d.Meta["kind"]
}

// Props returns the descriptor's own fields as props.
func (d Descriptor) Props() ui.Props {
	p := ui.Props{ui.KeyName: d.Name}
	if d.Title != "" {
		p[ui.KeyTitle] = d.Title
	}
	if d.Path != "" {
		p[ui.KeyPath] = d.Path
	}
	if d.Icon != "" {
		p[ui.KeyIcon] = d.Icon
	}
	return p
}

// Resolve returns the props the component renders with: the descriptor's
// own, then extra, then whatever the binder adds.
func (d Descriptor) Resolve(ctx context.Context, extra ui.Props) ui.Props {
	p := d.Props().Merge(extra)
	if d.Bind != nil {
		p = d.Bind(ctx, p)
	}
	return p
}

// Render resolves props and renders the component.
func (d Descriptor) Render(ctx context.Context, extra ui.Props) ui.Fragment {
	return d.Component(d.Resolve(ctx, extra))
}

func (d Descriptor) clone() Descriptor {
	if d.Meta != nil {
		meta := make(map[string]string, len(d.Meta))
		for k, v := range d.Meta {
			meta[k] = v
		}
		d.Meta = meta
	}
	return d
}
