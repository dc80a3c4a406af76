package models

import (
	"encoding/json"
	"time"
)

// EventStatus represents the lifecycle status of a scheduled event.
type EventStatus string

const (
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusLocked    EventStatus = "locked"
	EventStatusDelivered EventStatus = "delivered"
	EventStatusError     EventStatus = "error"
	EventStatusDead      EventStatus = "dead"
)

// Terminal reports whether no further transitions are allowed from s.
func (s EventStatus) Terminal() bool {
	return s == EventStatusDelivered || s == EventStatusError || s == EventStatusDead
}

// EventClass distinguishes cron-materialized events from one-off events.
// The two classes live in separate tables with separate invocation logs.
type EventClass string

const (
	EventClassCron   EventClass = "cron"
	EventClassOneOff EventClass = "one_off"
)

// CronEvent is one materialized future occurrence of a recurring trigger.
type CronEvent struct {
	ID            string      `json:"id"`
	TriggerName   string      `json:"trigger_name"`
	ScheduledTime time.Time   `json:"scheduled_time"`
	NextRetryAt   *time.Time  `json:"next_retry_at,omitempty"`
	Tries         int         `json:"tries"`
	Status        EventStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

// CronEventPartial is the projection returned by the cron lock query.
// The rest of the event (webhook, retry conf, headers) comes from the
// trigger catalog at processing time.
type CronEventPartial struct {
	ID            string    `json:"id"`
	TriggerName   string    `json:"trigger_name"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Tries         int       `json:"tries"`
	CreatedAt     time.Time `json:"created_at"`
}

// OneOffScheduledEvent is a self-describing single-shot delivery. Unlike
// cron events it carries its own webhook, retry, and header configuration.
type OneOffScheduledEvent struct {
	ID            string          `json:"id"`
	ScheduledTime time.Time       `json:"scheduled_time"`
	NextRetryAt   *time.Time      `json:"next_retry_at,omitempty"`
	Tries         int             `json:"tries"`
	Status        EventStatus     `json:"status"`
	WebhookConf   WebhookConf     `json:"webhook_conf"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	RetryConf     RetryConf       `json:"retry_conf"`
	HeaderConf    []HeaderConf    `json:"header_conf,omitempty"`
	Comment       *string         `json:"comment,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ScheduledEventFull is the unified form handed to the delivery
// subroutine: a cron partial joined with its catalog definition, or a
// one-off event with its webhook reference already resolved.
type ScheduledEventFull struct {
	ID            string
	TriggerName   *string // nil for one-off events
	ScheduledTime time.Time
	Tries         int
	CreatedAt     time.Time
	WebhookURL    string
	Payload       json.RawMessage
	RetryConf     RetryConf
	Headers       []EventHeaderInfo
	Comment       *string
}

// CronSeed is one future occurrence to be inserted by the generator.
type CronSeed struct {
	ID            string
	TriggerName   string
	ScheduledTime time.Time
}

// TriggerStats describes a deprived trigger: one whose count of future
// scheduled events fell below the hydration threshold.
type TriggerStats struct {
	TriggerName         string
	UpcomingEventsCount int
	MaxScheduledTime    *time.Time
}

// CreateEventRequest is the API request to create a one-off scheduled
// event. RetryConf stays raw so omitted fields overlay the defaults
// rather than zeroing them.
type CreateEventRequest struct {
	ScheduleTime string          `json:"schedule_time" binding:"required"`
	Webhook      WebhookConf     `json:"webhook" binding:"required"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	RetryConf    json.RawMessage `json:"retry_conf,omitempty"`
	Headers      []HeaderConf    `json:"headers,omitempty"`
	Comment      *string         `json:"comment,omitempty"`
}

// ListEventsQuery represents query parameters for listing one-off events.
type ListEventsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=scheduled locked delivered error dead"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// EventListResponse is the paginated listing of one-off events.
type EventListResponse struct {
	Events     []OneOffScheduledEvent `json:"events"`
	Pagination Pagination             `json:"pagination"`
}

// Pagination represents pagination metadata.
type Pagination struct {
	CurrentPage  int   `json:"current_page"`
	PageSize     int   `json:"page_size"`
	TotalPages   int   `json:"total_pages"`
	TotalRecords int64 `json:"total_records"`
}
