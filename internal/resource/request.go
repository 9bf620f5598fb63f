package resource

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/openhis/slotkit/internal/web/cache"
)

// Request names one read against a backend endpoint. Endpoint may contain
// {name} placeholders that are filled from PathParams.
type Request struct {
	Endpoint   string
	PathParams map[string]string
	Query      url.Values
}

// NewRequest builds a Request from an endpoint and alternating query
// key/value pairs.
func NewRequest(endpoint string, kv ...string) Request {
	req := Request{Endpoint: endpoint}
	if len(kv) > 0 {
		req.Query = url.Values{}
		for i := 0; i+1 < len(kv); i += 2 {
			req.Query.Add(kv[i], kv[i+1])
		}
	}
	return req
}

// With returns a copy of r with a path parameter set.
func (r Request) With(name, value string) Request {
	params := make(map[string]string, len(r.PathParams)+1)
	for k, v := range r.PathParams {
		params[k] = v
	}
	params[name] = value
	r.PathParams = params
	return r
}

// Path expands the endpoint template.
func (r Request) Path() (string, error) {
	var b strings.Builder
	rest := r.Endpoint
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", &Error{Kind: KindConfiguration, Op: "expand", URL: r.Endpoint, Err: fmt.Errorf("unterminated placeholder")}
		}
		name := rest[open+1 : open+end]
		value, ok := r.PathParams[name]
		if !ok || value == "" {
			return "", &Error{Kind: KindConfiguration, Op: "expand", URL: r.Endpoint, Err: fmt.Errorf("missing path parameter %q", name)}
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(value))
		rest = rest[open+end+1:]
	}
	return b.String(), nil
}

// Key is the request signature used as the cache key. Query parameters are
// sorted so equivalent requests share an entry. An unexpandable request has
// an empty key, which subscribes to nothing.
func (r Request) Key() string {
	path, err := r.Path()
	if err != nil {
		return ""
	}
	return cache.GenerateKeyWithQuery(path, r.Query)
}

// RequestFromKey rebuilds a Request from a key produced by Key.
func RequestFromKey(key string) Request {
	path, rawQuery, _ := strings.Cut(key, "?")
	req := Request{Endpoint: path}
	if rawQuery != "" {
		if q, err := url.ParseQuery(rawQuery); err == nil {
			req.Query = q
		}
	}
	return req
}
