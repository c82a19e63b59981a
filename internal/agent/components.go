package agent

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
)

// Component is one typed presentational block in an agent response.
type Component struct {
	Type  string          `json:"type"`
	Props json.RawMessage `json:"props"`
}

// Catalogue prop shapes. These mirror the backend's component contract.

// CardProps is a titled content card.
type CardProps struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
	Badge   string `json:"badge,omitempty"`
}

// HeroProps is a full-width banner.
type HeroProps struct {
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	Image      string `json:"image"`
	ButtonText string `json:"buttonText,omitempty"`
	ButtonLink string `json:"buttonLink,omitempty"`
}

// GalleryImage is one captioned gallery entry.
type GalleryImage struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

// GalleryProps is a titled image grid.
type GalleryProps struct {
	Title  string         `json:"title"`
	Images []GalleryImage `json:"images"`
}

// ListItem is one list row.
type ListItem struct {
	Text string `json:"text"`
	Icon string `json:"icon,omitempty"`
}

// ListProps is a titled item list.
type ListProps struct {
	Title string     `json:"title"`
	Items []ListItem `json:"items"`
}

// StatItem is one labelled figure.
type StatItem struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

// StatsProps is a titled figures row.
type StatsProps struct {
	Title string     `json:"title"`
	Data  []StatItem `json:"data"`
}

// TestimonialProps is an attributed quote.
type TestimonialProps struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

var componentTemplates = template.Must(template.New("components").Parse(`
{{- define "card" -}}
<div class="card" id="card-{{.Index}}">
{{- if .P.Badge}}<span class="badge">{{.P.Badge}}</span>{{end}}
{{- if .P.Image}}<img src="{{.P.Image}}" alt="{{.P.Title}}">{{end}}
<h2>{{.P.Title}}</h2><p>{{.P.Content}}</p></div>
{{- end}}
{{- define "hero" -}}
<section class="hero" id="hero-{{.Index}}"><h1>{{.P.Title}}</h1><p>{{.P.Subtitle}}</p>
{{- if .P.Image}}<img src="{{.P.Image}}" alt="{{.P.Title}}">{{end}}
{{- if .P.ButtonText}}<a id="hero-{{.Index}}-cta" href="{{.P.ButtonLink}}">{{.P.ButtonText}}</a>{{end}}</section>
{{- end}}
{{- define "gallery" -}}
<div class="gallery" id="gallery-{{.Index}}"><h2>{{.P.Title}}</h2>
{{- range .P.Images}}<figure><img src="{{.URL}}" alt="{{.Caption}}"><figcaption>{{.Caption}}</figcaption></figure>{{end}}</div>
{{- end}}
{{- define "list" -}}
<div class="list" id="list-{{.Index}}"><h2>{{.P.Title}}</h2><ul>
{{- range .P.Items}}<li>{{if .Icon}}{{.Icon}} {{end}}{{.Text}}</li>{{end}}</ul></div>
{{- end}}
{{- define "stats" -}}
<div class="stats" id="stats-{{.Index}}"><h2>{{.P.Title}}</h2><dl>
{{- range .P.Data}}<div><dt>{{.Label}}</dt><dd>{{.Value}}</dd></div>{{end}}</dl></div>
{{- end}}
{{- define "testimonial" -}}
<blockquote class="testimonial" id="testimonial-{{.Index}}"><p>{{.P.Quote}}</p>
<footer>{{.P.Author}}{{if .P.Role}}, {{.P.Role}}{{end}}</footer></blockquote>
{{- end}}
{{- define "unknown" -}}
<div class="card" id="unknown-{{.Index}}"><h2>Unknown component</h2>
<p>Component type {{.Type}} is not supported yet.</p></div>
{{- end}}`))

// RenderComponents projects an agent response onto a single HTML fragment
// so the same render surface can display fallback results.
func RenderComponents(components []Component) (string, error) {
	var sb strings.Builder
	sb.WriteString(`<div id="generated">`)

	for i, comp := range components {
		rendered, err := renderComponent(i, comp)
		if err != nil {
			return "", fmt.Errorf("render component %d (%s): %w", i, comp.Type, err)
		}
		sb.WriteString(rendered)
	}

	sb.WriteString(`</div>`)
	return sb.String(), nil
}

func renderComponent(index int, comp Component) (string, error) {
	var props any
	name := comp.Type
	switch comp.Type {
	case "card":
		props = &CardProps{}
	case "hero":
		props = &HeroProps{}
	case "gallery":
		props = &GalleryProps{}
	case "list":
		props = &ListProps{}
	case "stats":
		props = &StatsProps{}
	case "testimonial":
		props = &TestimonialProps{}
	default:
		name = "unknown"
	}

	if name != "unknown" && len(comp.Props) > 0 {
		if err := json.Unmarshal(comp.Props, props); err != nil {
			return "", fmt.Errorf("decode props: %w", err)
		}
	}

	var buf strings.Builder
	data := struct {
		Index int
		Type  string
		P     any
	}{Index: index, Type: comp.Type, P: props}
	if err := componentTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
