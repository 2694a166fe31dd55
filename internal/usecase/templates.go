package usecase

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

// NotificationTemplate holds the subject and body templates for one key.
// Templates see .Event, .Payload and .Data.
type NotificationTemplate struct {
	Subject string
	Body    string
}

// TemplateRegistry compiles and caches notification templates by key.
type TemplateRegistry struct {
	mu       sync.RWMutex
	sources  map[string]NotificationTemplate
	compiled map[string]*compiledTemplate
}

type compiledTemplate struct {
	subject *template.Template
	body    *template.Template
}

func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		sources:  make(map[string]NotificationTemplate),
		compiled: make(map[string]*compiledTemplate),
	}
}

// DefaultTemplates returns a registry seeded with the built-in generic
// notification.
func DefaultTemplates() *TemplateRegistry {
	r := NewTemplateRegistry()
	r.Register("generic", NotificationTemplate{
		Subject: "Event {{.Event.EventType}} recorded",
		Body:    "Event {{.Event.ID}} of type {{.Event.EventType}} was recorded for subject {{.Event.SubjectID}}.",
	})
	return r
}

// Register adds or replaces a template. Compilation is deferred to first
// render so a bad admin-supplied template surfaces as an action failure,
// not a registration error.
func (r *TemplateRegistry) Register(key string, tpl NotificationTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[key] = tpl
	delete(r.compiled, key)
}

// Render produces the subject and body for the key. Unknown keys and
// template errors return an error; callers record it on the execution log.
func (r *TemplateRegistry) Render(key string, event domain.Event, data map[string]any) (string, string, error) {
	compiled, err := r.compile(key)
	if err != nil {
		return "", "", err
	}
	ctx := struct {
		Event   domain.Event
		Payload map[string]any
		Data    map[string]any
	}{Event: event, Payload: event.Payload, Data: data}

	var subject, body strings.Builder
	if err := compiled.subject.Execute(&subject, ctx); err != nil {
		return "", "", fmt.Errorf("render subject for template %q: %w", key, err)
	}
	if err := compiled.body.Execute(&body, ctx); err != nil {
		return "", "", fmt.Errorf("render body for template %q: %w", key, err)
	}
	return subject.String(), body.String(), nil
}

func (r *TemplateRegistry) compile(key string) (*compiledTemplate, error) {
	r.mu.RLock()
	if c, ok := r.compiled[key]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	src, ok := r.sources[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification template %q is not registered", key)
	}

	subject, err := template.New(key + ":subject").Option("missingkey=zero").Parse(src.Subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject template %q: %w", key, err)
	}
	body, err := template.New(key + ":body").Option("missingkey=zero").Parse(src.Body)
	if err != nil {
		return nil, fmt.Errorf("parse body template %q: %w", key, err)
	}

	c := &compiledTemplate{subject: subject, body: body}
	r.mu.Lock()
	r.compiled[key] = c
	r.mu.Unlock()
	return c, nil
}
