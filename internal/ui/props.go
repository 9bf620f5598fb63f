// Package ui holds the presentational units mounted into extension slots.
//
// Every unit is a pure function of its Props. Missing optional values render
// a fixed placeholder; units never fail.
package ui

import (
	"fmt"
	"html/template"
)

// Fragment is rendered, trusted HTML.
type Fragment = template.HTML

// Component renders props to a fragment.
type Component func(Props) Fragment

// Props are the explicit inputs of a unit.
type Props map[string]any

// Prop keys shared between units and the code that binds data to them.
const (
	KeyName      = "name"
	KeyTitle     = "title"
	KeySubtitle  = "subtitle"
	KeyPath      = "path"
	KeyBase      = "base"
	KeyActive    = "active"
	KeyIcon      = "icon"
	KeyIllus     = "illustration"
	KeyLocation  = "location"
	KeyRows      = "rows"
	KeyPatients  = "patients"
	KeyLocations = "locations"
	KeySelected  = "selected"
	KeyAction    = "action"
	KeyLoading   = "loading"
	KeyError     = "error"
	KeyMessage   = "message"
	KeyQuery     = "q"
	KeyKey       = "key"
)

// Placeholder is shown for absent optional text.
const Placeholder = "--"

// Row is one line of a card listing.
type Row struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
	Meta      string `json:"meta,omitempty"`
}

// PatientRow is one line of a patient table.
type PatientRow struct {
	UUID       string `json:"uuid"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Gender     string `json:"gender"`
	Age        string `json:"age"`
}

// Option is a selectable value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Merge returns a copy of p with other applied on top.
func (p Props) Merge(other Props) Props {
	out := make(Props, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// String returns the text value of key, or "" when absent.
func (p Props) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// StringOr returns the text value of key, or def when it is empty.
func (p Props) StringOr(key, def string) string {
	if s := p.String(key); s != "" {
		return s
	}
	return def
}

// Bool reports whether key holds true.
func (p Props) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Err returns the error held by key.
func (p Props) Err(key string) error {
	err, _ := p[key].(error)
	return err
}

// Rows returns the card rows held by key.
func (p Props) Rows(key string) []Row {
	rows, _ := p[key].([]Row)
	return rows
}

// Patients returns the patient rows held by key.
func (p Props) Patients(key string) []PatientRow {
	rows, _ := p[key].([]PatientRow)
	return rows
}

// Options returns the options held by key.
func (p Props) Options(key string) []Option {
	opts, _ := p[key].([]Option)
	return opts
}
