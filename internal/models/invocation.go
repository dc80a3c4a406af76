package models

import "encoding/json"

// Synthetic status codes recorded when no real HTTP status exists.
const (
	StatusTransportError = 1000 // connect/send/TLS failures
	StatusParseError     = 1001 // response body could not be read or decoded
	StatusInternalError  = 500  // anything else that prevented the attempt
)

// Invocation is one HTTP attempt against a webhook plus its persisted
// record. Status is the observed HTTP status or one of the synthetic codes.
type Invocation struct {
	EventID  string             `json:"event_id"`
	Status   int                `json:"status"`
	Request  InvocationRequest  `json:"request"`
	Response InvocationResponse `json:"response"`
}

// InvocationRequest captures what was sent: the JSON body and the full
// header set, default headers included.
type InvocationRequest struct {
	Payload json.RawMessage   `json:"payload"`
	Headers []EventHeaderInfo `json:"headers"`
}

// Response variant tags. ClientError is distinguished from ordinary
// responses so 4xx outcomes remain identifiable after the fact.
const (
	ResponseKindWebhook     = "webhook_response"
	ResponseKindClientError = "client_error"
	ResponseKindError       = "error"
)

// InvocationResponse is a tagged variant: a webhook response (possibly
// marked as a client error) or an error description for transport/parse
// failures.
type InvocationResponse struct {
	Kind  string           `json:"type"`
	Data  *WebhookResponse `json:"data,omitempty"`
	Error *ErrorDetail     `json:"error,omitempty"`
}

// WebhookResponse is the captured HTTP response.
type WebhookResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers []EventHeaderInfo `json:"headers"`
}

// ErrorDetail describes a failed attempt that produced no usable response.
type ErrorDetail struct {
	Message string `json:"message"`
}

// NewWebhookResponseVariant wraps a real HTTP response.
func NewWebhookResponseVariant(resp WebhookResponse) InvocationResponse {
	return InvocationResponse{Kind: ResponseKindWebhook, Data: &resp}
}

// NewClientErrorVariant wraps a 4xx response in its distinguished variant.
func NewClientErrorVariant(resp WebhookResponse) InvocationResponse {
	return InvocationResponse{Kind: ResponseKindClientError, Data: &resp}
}

// NewErrorVariant records a transport, parse, or internal failure.
func NewErrorVariant(message string) InvocationResponse {
	return InvocationResponse{Kind: ResponseKindError, Error: &ErrorDetail{Message: message}}
}

// DeliveryOutcome is the notification published after an event reaches a
// terminal status.
type DeliveryOutcome struct {
	EventID     string      `json:"event_id"`
	EventClass  EventClass  `json:"event_class"`
	TriggerName *string     `json:"trigger_name,omitempty"`
	Status      EventStatus `json:"status"`
	Tries       int         `json:"tries"`
	OccurredAt  string      `json:"occurred_at"`
}
