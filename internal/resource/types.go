package resource

import (
	"bytes"
	"fmt"
	"time"
)

// REST endpoints of the backend, relative to the configured base URL.
const (
	PatientEndpoint  = "/ws/rest/v1/patient"
	OrderEndpoint    = "/ws/rest/v1/order"
	VisitEndpoint    = "/ws/rest/v1/visit"
	LocationEndpoint = "/ws/rest/v1/location"
	SessionEndpoint  = "/ws/rest/v1/session"
)

// Ref is the abbreviated representation the backend uses for linked entities.
type Ref struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
}

// Patient is a search or list result.
type Patient struct {
	UUID        string       `json:"uuid"`
	Display     string       `json:"display"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
	Person      Person       `json:"person"`
}

// Identifier is one patient identifier.
type Identifier struct {
	Identifier     string `json:"identifier"`
	IdentifierType Ref    `json:"identifierType"`
	Preferred      bool   `json:"preferred"`
}

// Person carries the demographic fields shown in lists.
type Person struct {
	Gender    string `json:"gender"`
	Age       *int   `json:"age,omitempty"`
	Birthdate string `json:"birthdate,omitempty"`
	Display   string `json:"display,omitempty"`
}

// PreferredIdentifier returns the preferred identifier, or the first one.
func (p Patient) PreferredIdentifier() string {
	for _, id := range p.Identifiers {
		if id.Preferred {
			return id.Identifier
		}
	}
	if len(p.Identifiers) > 0 {
		return p.Identifiers[0].Identifier
	}
	return ""
}

// Order is a clinical order (drug, imaging, test).
type Order struct {
	UUID            string `json:"uuid"`
	OrderNumber     string `json:"orderNumber"`
	Display         string `json:"display"`
	Action          string `json:"action"`
	Urgency         string `json:"urgency,omitempty"`
	FulfillerStatus string `json:"fulfillerStatus,omitempty"`
	DateActivated   *Time  `json:"dateActivated,omitempty"`
	Patient         Ref    `json:"patient"`
	Concept         Ref    `json:"concept"`
	OrderType       Ref    `json:"orderType"`
}

// Visit is a patient visit.
type Visit struct {
	UUID          string `json:"uuid"`
	Display       string `json:"display"`
	StartDatetime *Time  `json:"startDatetime,omitempty"`
	StopDatetime  *Time  `json:"stopDatetime,omitempty"`
	Patient       Ref    `json:"patient"`
	VisitType     Ref    `json:"visitType"`
	Location      *Ref   `json:"location,omitempty"`
}

// Active reports whether the visit has not been closed.
func (v Visit) Active() bool {
	return v.StopDatetime == nil
}

// Location is a facility location.
type Location struct {
	UUID    string `json:"uuid"`
	Display string `json:"display"`
	Name    string `json:"name,omitempty"`
	Tags    []Ref  `json:"tags,omitempty"`
}

// Time accepts the backend's timestamp layouts, which use a numeric zone
// without a colon.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("timestamp %s is not a string", b)
	}
	s := string(b[1 : len(b)-1])
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
