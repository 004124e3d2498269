package eventing

import (
	"encoding/json"
	"time"
)

// Envelope carries an event through the bus together with its metadata.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
	TenantID      string          `json:"tenant_id"`
	BoreholeID    string          `json:"borehole_id"`
	Payload       json.RawMessage `json:"payload"`
}

// BoreholeEvent is implemented by events scoped to one borehole.
type BoreholeEvent interface {
	EventBoreholeID() string
	EventTime() time.Time
}

// Meta provides envelope overrides taken from the publishing context.
type Meta struct {
	EventID       string
	CorrelationID string
	TenantID      string
}

// BuildEnvelope wraps event. Borehole and time come from BoreholeEvent when implemented.
func BuildEnvelope(event any, meta Meta) (Envelope, error) {
	if event == nil {
		return Envelope{}, ErrNilEvent
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{
		EventID:       meta.EventID,
		EventType:     EventType(event),
		CorrelationID: meta.CorrelationID,
		TenantID:      meta.TenantID,
		Payload:       payload,
	}
	if scoped, ok := event.(BoreholeEvent); ok {
		env.BoreholeID = scoped.EventBoreholeID()
		env.OccurredAt = scoped.EventTime()
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now()
	}
	env.OccurredAt = env.OccurredAt.UTC()
	if env.EventID == "" {
		env.EventID = NewEventID()
	}
	if env.CorrelationID == "" {
		env.CorrelationID = env.EventID
	}
	return env, nil
}
