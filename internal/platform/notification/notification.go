// Package notification provides an in-process alert dispatcher with template
// rendering. Delivery transports beyond the log channel (SMS, email) are
// external services and plug in through the Channel interface.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind identifies the event an alert was raised for.
type Kind string

const (
	KindEmergencyCreated Kind = "emergency_created"
	KindLowStock         Kind = "low_stock"
	KindMedicineExpiring Kind = "medicine_expiring"
)

// Alert is a single outbound notification.
type Alert struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Channel delivers rendered alerts.
type Channel interface {
	Deliver(ctx context.Context, a Alert) error
}

// Template defines a reusable alert template.
type Template struct {
	Kind    Kind
	Subject string
	Body    string
}

var builtInTemplates = []Template{
	{
		Kind:    KindEmergencyCreated,
		Subject: "Emergency intake for patient {{patient_id}}",
		Body:    "Emergency request ({{complaint}}, severity {{severity}}) for patient {{patient_id}} has been queued for doctor {{doctor_id}} at emergency priority.",
	},
	{
		Kind:    KindLowStock,
		Subject: "Low stock: {{medicine_name}}",
		Body:    "{{medicine_name}} (batch {{batch}}) is down to {{quantity}} units, at or below the reorder level of {{reorder_level}}.",
	},
	{
		Kind:    KindMedicineExpiring,
		Subject: "Expiring soon: {{medicine_name}}",
		Body:    "{{medicine_name}} (batch {{batch}}) expires on {{expiry_date}}.",
	},
}

// Dispatcher renders alerts from templates and fans them out to every
// registered channel. Delivery failures are logged, never propagated to the
// caller that raised the alert.
type Dispatcher struct {
	mu        sync.RWMutex
	channels  []Channel
	templates map[Kind]Template
	log       zerolog.Logger
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		templates: make(map[Kind]Template),
		log:       log,
	}
	for _, t := range builtInTemplates {
		d.templates[t.Kind] = t
	}
	return d
}

// Register adds a delivery channel.
func (d *Dispatcher) Register(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, ch)
}

// RegisterTemplate adds or replaces a template.
func (d *Dispatcher) RegisterTemplate(t Template) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.templates[t.Kind] = t
}

// Render produces the subject and body for a kind using {{key}} replacement.
// Keys present in the template but absent from data are left as-is.
func (d *Dispatcher) Render(kind Kind, data map[string]string) (subject, body string, err error) {
	d.mu.RLock()
	t, ok := d.templates[kind]
	d.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template for %q not found", kind)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Dispatch renders and delivers an alert to all channels.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, data map[string]string) {
	subject, body, err := d.Render(kind, data)
	if err != nil {
		d.log.Error().Err(err).Str("kind", string(kind)).Msg("render alert")
		return
	}

	alert := Alert{
		ID:        uuid.New().String(),
		Kind:      kind,
		Subject:   subject,
		Body:      body,
		Data:      data,
		CreatedAt: time.Now(),
	}

	d.mu.RLock()
	channels := make([]Channel, len(d.channels))
	copy(channels, d.channels)
	d.mu.RUnlock()

	for _, ch := range channels {
		if err := ch.Deliver(ctx, alert); err != nil {
			d.log.Error().Err(err).Str("kind", string(kind)).Msg("deliver alert")
		}
	}
}

// LogChannel writes alerts to the structured log. It is the only channel
// shipped in-process.
type LogChannel struct {
	log zerolog.Logger
}

func NewLogChannel(log zerolog.Logger) *LogChannel {
	return &LogChannel{log: log}
}

func (c *LogChannel) Deliver(_ context.Context, a Alert) error {
	c.log.Info().
		Str("alert_id", a.ID).
		Str("kind", string(a.Kind)).
		Str("subject", a.Subject).
		Msg(a.Body)
	return nil
}
