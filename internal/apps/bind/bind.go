// Package bind connects resource hooks to presentational units.
package bind

import (
	"context"
	"strconv"

	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/ui"
)

// Deps are the collaborators shared by every module.
type Deps struct {
	Store  *swr.Store
	Client *resource.Client
}

// RequestFunc derives the request of a unit from its props. Returning false
// means there is nothing to fetch yet.
type RequestFunc func(ui.Props) (resource.Request, bool)

// Fixed always returns req.
func Fixed(req resource.Request) RequestFunc {
	return func(ui.Props) (resource.Request, bool) { return req, true }
}

// List binds a collection resource to a unit. The binder follows the key
// derived from the props, waits until it settles or ctx ends, and hands the
// state to props.
func List[T any](deps Deps, req RequestFunc, props func(swr.State[[]T], ui.Props) ui.Props) extension.Binder {
	fetch := swr.List[T](deps.Client)
	return func(ctx context.Context, p ui.Props) ui.Props {
		var key string
		if r, ok := req(p); ok {
			key = r.Key()
		}

		h := swr.UseKey(deps.Store, key, fetch, nil)
		defer h.Close()
		// A deadline leaves the state loading, which units render as such.
		st, _ := h.Wait(ctx)

		out := p.Merge(ui.Props{ui.KeyKey: key, ui.KeyLoading: st.IsLoading})
		if st.Err != nil {
			out[ui.KeyError] = st.Err
		}
		return props(st, out)
	}
}

// Rows maps the data of st to card rows. It returns nil while there is no
// data and a non-nil slice otherwise.
func Rows[T any](st swr.State[[]T], keep func(T) bool, row func(T) ui.Row) []ui.Row {
	if !st.HasData {
		return nil
	}
	rows := make([]ui.Row, 0, len(st.Data))
	for _, v := range st.Data {
		if keep != nil && !keep(v) {
			continue
		}
		rows = append(rows, row(v))
	}
	return rows
}

// CardRows is a props function that sets the card rows.
func CardRows[T any](keep func(T) bool, row func(T) ui.Row) func(swr.State[[]T], ui.Props) ui.Props {
	return func(st swr.State[[]T], p ui.Props) ui.Props {
		if rows := Rows(st, keep, row); rows != nil {
			p[ui.KeyRows] = rows
		}
		return p
	}
}

// Static merges fixed props.
func Static(extra ui.Props) extension.Binder {
	return func(_ context.Context, p ui.Props) ui.Props {
		return p.Merge(extra)
	}
}

// Banner returns a binder for a page header that shows the session location
// as subtitle.
func Banner(illustration string) extension.Binder {
	return func(_ context.Context, p ui.Props) ui.Props {
		out := p.Merge(ui.Props{ui.KeyIllus: illustration})
		if loc := p.String(ui.KeyLocation); loc != "" {
			out[ui.KeySubtitle] = loc
		}
		return out
	}
}

// FormatTime renders a backend timestamp for lists.
func FormatTime(t *resource.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("02-Jan-2006, 15:04")
}

// FormatAge renders an optional age.
func FormatAge(age *int) string {
	if age == nil {
		return ""
	}
	return strconv.Itoa(*age)
}

// OrderRow is the common card row of an order.
func OrderRow(o resource.Order) ui.Row {
	meta := o.FulfillerStatus
	if meta == "" {
		meta = o.Urgency
	}
	return ui.Row{Primary: o.Patient.Display, Secondary: o.Concept.Display, Meta: meta}
}
