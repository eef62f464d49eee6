package domain

import "time"

type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
)

type AlertConfig struct {
	ID          string    `json:"id"`
	MonitorID   MonitorID `json:"monitor_id"`
	Channel     Channel   `json:"channel"`
	Destination string    `json:"destination"`
	IsActive    bool      `json:"is_active"`
}

// AlertHistory is the audit row written for every attempted delivery.
type AlertHistory struct {
	ID            string    `json:"id"`
	AlertConfigID string    `json:"alert_config_id"`
	MonitorID     MonitorID `json:"monitor_id"`
	Channel       Channel   `json:"channel"`
	Message       string    `json:"message"`
	WasSuccessful bool      `json:"was_successful"`
	SentAt        time.Time `json:"sent_at"`
}

// ErrorCategory tags structured log entries.
type ErrorCategory string

const (
	CategoryTransport   ErrorCategory = "transport"
	CategoryProtocol    ErrorCategory = "protocol"
	CategoryValidation  ErrorCategory = "validation"
	CategoryPersistence ErrorCategory = "persistence"
	CategoryDelivery    ErrorCategory = "delivery"
)

const EventStatusChanged = "monitor_status_changed"

// StatusChangedEvent is the JSON body sent to webhooks and the event stream.
type StatusChangedEvent struct {
	Event     string          `json:"event"`
	Monitor   EventMonitorRef `json:"monitor"`
	Timestamp string          `json:"timestamp"`
}

type EventMonitorRef struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status Status `json:"status"`
}

func NewStatusChangedEvent(m Monitor, status Status, at time.Time) StatusChangedEvent {
	return StatusChangedEvent{
		Event:     EventStatusChanged,
		Monitor:   EventMonitorRef{Name: m.Name, URL: m.URL, Status: status},
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}
