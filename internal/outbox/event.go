package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentBooked        = "appointment.booked.v1"
	EventAppointmentStatusChanged = "appointment.status_changed.v1"

	AggregateAppointment = "appointment"
)

// Event is one booking outcome handed to the notification gateway.
// EventType doubles as the Kafka topic.
type Event struct {
	EventID       uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	OccurredAt    time.Time
}

// NewEvent marshals payload as JSON and stamps a fresh event id.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		EventID:       uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
		OccurredAt:    time.Now().UTC(),
	}, nil
}
