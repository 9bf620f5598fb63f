package term

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openhis/slotkit/internal/ui"
)

func TestLink(t *testing.T) {
	out := Link(ui.Props{ui.KeyName: "pharmacy", ui.KeyTitle: "Pharmacy", ui.KeyBase: "/spa"})
	assert.Contains(t, out, "Pharmacy")
	assert.Contains(t, out, "/spa/pharmacy")
}

func TestCard(t *testing.T) {
	out := Card(ui.Props{ui.KeyTitle: "Active visits", ui.KeyRows: []ui.Row{{Primary: "Jane Doe", Secondary: "Outpatient"}}})
	assert.Contains(t, out, "Active visits")
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "Outpatient")

	assert.Contains(t, Card(ui.Props{ui.KeyTitle: "Orders"}), "No orders")
	assert.Contains(t, Card(ui.Props{ui.KeyTitle: "Orders", ui.KeyError: errors.New("x")}), "Unable to load orders")
	assert.Contains(t, Card(ui.Props{ui.KeyTitle: "Orders", ui.KeyLoading: true}), "Loading...")
}

func TestPatients(t *testing.T) {
	out := Patients(ui.Props{ui.KeyPatients: []ui.PatientRow{{Name: "Jane Doe", Identifier: "100HM", Age: "34"}}})
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "100HM")
	assert.Contains(t, out, ui.Placeholder)

	assert.Contains(t, Patients(nil), "No patients found")
}

func TestRender_UnknownKind(t *testing.T) {
	assert.Contains(t, Render("widget", ui.Props{ui.KeyName: "home"}), "home")
	assert.Contains(t, Render(KindBanner, ui.Props{ui.KeyTitle: "Home"}), "Home")
}
