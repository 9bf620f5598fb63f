package ui

import (
	"bytes"
	"html/template"
	"strings"
)

var funcs = template.FuncMap{
	"orPlaceholder": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return Placeholder
		}
		return s
	},
	"lower": strings.ToLower,
}

var templates = template.Must(template.New("ui").Funcs(funcs).Parse(unitTemplates))

// render executes a unit template. Unit templates are fixed and take
// well-typed data, so an execution failure yields an empty fragment.
func render(name string, data any) Fragment {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return ""
	}
	return Fragment(buf.String())
}

// Join concatenates fragments.
func Join(frags ...Fragment) Fragment {
	var b strings.Builder
	for _, f := range frags {
		b.WriteString(string(f))
	}
	return Fragment(b.String())
}

const unitTemplates = `
{{define "icon"}}<svg class="icon icon--{{.Name}}" width="{{.Size}}" height="{{.Size}}" aria-hidden="true" focusable="false"><use href="#icon-{{.Name}}"></use></svg>{{end}}

{{define "illustration"}}<div class="illustration illustration--{{.Name}}" role="img" aria-label="{{.Label}}"></div>{{end}}

{{define "dashboard-link"}}<a class="side-nav__link{{if .Active}} side-nav__link--active{{end}}" href="{{.Href}}" data-extension="{{.Name}}">{{.Icon}}<span>{{.Title}}</span></a>{{end}}

{{define "banner"}}<header class="page-header">{{.Illustration}}<div class="page-header__text"><p class="page-header__subtitle">{{orPlaceholder .Subtitle}}</p><h1 class="page-header__title">{{.Title}}</h1></div></header>{{end}}

{{define "empty-state"}}<div class="empty-state"><h4>{{.Title}}</h4><p>{{.Message}}</p></div>{{end}}

{{define "card"}}<section class="card" data-key="{{.Key}}"><h3 class="card__title">{{.Title}}</h3>{{if .Loading}}<p class="card__loading" aria-busy="true">Loading...</p>{{else if .Error}}<p class="card__error" role="alert">{{.Error}}</p>{{else if .Rows}}<ul class="card__rows">{{range .Rows}}<li><span class="card__primary">{{orPlaceholder .Primary}}</span>{{if .Secondary}}<span class="card__secondary">{{.Secondary}}</span>{{end}}{{if .Meta}}<span class="card__meta">{{.Meta}}</span>{{end}}</li>{{end}}</ul>{{else}}{{.Empty}}{{end}}</section>{{end}}

{{define "patient-table"}}<div class="patient-table" data-key="{{.Key}}">{{if .Loading}}<p class="patient-table__loading" aria-busy="true">Searching...</p>{{else if .Error}}<p class="patient-table__error" role="alert">{{.Error}}</p>{{else if .Rows}}<table><thead><tr><th>Name</th><th>Identifier</th><th>Gender</th><th>Age</th></tr></thead><tbody>{{range .Rows}}<tr data-patient="{{.UUID}}"><td>{{orPlaceholder .Name}}</td><td>{{orPlaceholder .Identifier}}</td><td>{{orPlaceholder .Gender}}</td><td>{{orPlaceholder .Age}}</td></tr>{{end}}</tbody></table>{{else}}{{.Empty}}{{end}}</div>{{end}}

{{define "location-picker"}}<form class="location-picker" method="post" action="{{.Action}}"><label for="location">{{.Title}}</label>{{if .Options}}<select id="location" name="location">{{range .Options}}<option value="{{.Value}}"{{if eq .Value $.Selected}} selected{{end}}>{{orPlaceholder .Label}}</option>{{end}}</select><button type="submit" id="confirm-location">Confirm</button>{{else}}{{.Empty}}{{end}}</form>{{end}}
`
