//go:build integration

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhis/slotkit/internal/web/auth"
)

// pickerSite mimics the shell: pages redirect to the picker until a
// location cookie is set.
func pickerSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/spa/home", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(auth.CookieName)
		if err != nil {
			http.Redirect(w, r, "/login/location?next=/spa/home", http.StatusSeeOther)
			return
		}
		fmt.Fprintf(w, "<html><body><h1>Home</h1><p id=loc>%s</p></body></html>", c.Value)
	})
	mux.HandleFunc("/login/location", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.SetCookie(w, &http.Cookie{Name: auth.CookieName, Value: r.FormValue("location"), Path: "/"})
			http.Redirect(w, r, "/spa/home", http.StatusSeeOther)
			return
		}
		fmt.Fprint(w, `<html><body><form method="post" action="/login/location">
<select id="location" name="location"><option value="loc-1">Inpatient Ward</option><option value="loc-2">Outpatient Clinic</option></select>
<button type="submit" id="confirm-location">Confirm</button></form></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDriver_SelectLocation(t *testing.T) {
	site := pickerSite(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	d, err := Launch(ctx, Options{BaseURL: site.URL, Headless: true, Timeout: 30 * time.Second})
	require.NoError(t, err)
	defer d.Close()

	res, err := d.SelectLocation(ctx, "/spa/home")
	require.NoError(t, err)
	assert.Equal(t, "Inpatient Ward", res.Location)
	assert.Equal(t, site.URL+"/spa/home", res.URL)
	assert.Equal(t, "loc-1", res.Token)
}
