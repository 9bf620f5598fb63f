// Package navigation changes the visible route. Navigation is fire-and-forget:
// callers never wait for the route change to complete.
package navigation

import (
	"net/http"
	"strings"
)

// Navigator requests a route change.
type Navigator interface {
	Navigate(to string)
}

// Func adapts a function to Navigator.
type Func func(to string)

// Navigate calls f.
func (f Func) Navigate(to string) { f(to) }

// Interpolate replaces ${name} placeholders in to with values from vars.
// Unknown placeholders are left as is.
func Interpolate(to string, vars map[string]string) string {
	if !strings.Contains(to, "${") {
		return to
	}

	var b strings.Builder
	rest := to
	for {
		open := strings.Index(rest, "${")
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		name := rest[open+2 : open+end]
		b.WriteString(rest[:open])
		if v, ok := vars[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(rest[open : open+end+1])
		}
		rest = rest[open+end+1:]
	}
}

// Join builds an absolute route from a base and path segments.
func Join(base string, parts ...string) string {
	var b strings.Builder
	for _, p := range append([]string{base}, parts...) {
		p = strings.Trim(p, "/")
		if p != "" {
			b.WriteString("/")
			b.WriteString(p)
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Redirect returns a Navigator answering r with an HTTP redirect.
func Redirect(w http.ResponseWriter, r *http.Request, code int) Navigator {
	return Func(func(to string) { http.Redirect(w, r, to, code) })
}
