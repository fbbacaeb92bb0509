package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/evura/portal-api/internal/model"
)

const (
	SubjectPrefix = "E-Vura Healthcare: "
	defaultName   = "default"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[model.NotificationEvent]string{
	model.EventAppointmentRequest:   "New Appointment Request",
	model.EventAppointmentConfirmed: "Appointment Confirmed",
	model.EventAppointmentRejected:  "Appointment Update",
	model.EventAppointmentCompleted: "Consultation Complete",
}

// Subject returns the prefixed subject line for an event.
func Subject(event model.NotificationEvent) string {
	s, ok := subjects[event]
	if !ok {
		s = "Notification"
	}
	return SubjectPrefix + s
}

// Renderer turns notification data into HTML bodies. Each event has its own
// content block inside the shared layout; unknown events get the default.
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	names := []string{defaultName}
	for event := range subjects {
		names = append(names, string(event))
	}

	r := &Renderer{templates: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t, err := template.New(name).Option("missingkey=zero").
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Render returns the subject and HTML body for the event.
func (r *Renderer) Render(event model.NotificationEvent, data map[string]string) (string, string, error) {
	t, ok := r.templates[string(event)]
	if !ok {
		t = r.templates[defaultName]
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", event, err)
	}
	return Subject(event), buf.String(), nil
}
