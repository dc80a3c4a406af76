package models

import "encoding/json"

// WebhookConf is an unresolved webhook reference. Exactly one of URL or
// FromEnv is set; FromEnv names an environment variable holding the URL.
type WebhookConf struct {
	URL     string `json:"url,omitempty"`
	FromEnv string `json:"from_env,omitempty"`
}

// HeaderConf is a header reference whose value is given inline or via an
// environment variable.
type HeaderConf struct {
	Name         string `json:"name"`
	Value        string `json:"value,omitempty"`
	ValueFromEnv string `json:"value_from_env,omitempty"`
}

// EventHeaderInfo is a fully resolved request header.
type EventHeaderInfo struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RetryConf bounds the retry/backoff state machine for an event.
type RetryConf struct {
	NumRetries           int     `json:"num_retries"`
	RetryIntervalSeconds int     `json:"retry_interval_seconds"`
	TimeoutSeconds       float64 `json:"timeout_seconds"`
	ToleranceSeconds     int     `json:"tolerance_seconds"`
}

// DefaultRetryConf mirrors the defaults applied when a trigger or one-off
// event omits retry configuration: no retries, 10s between retries, 60s
// request timeout, six hour tolerance.
func DefaultRetryConf() RetryConf {
	return RetryConf{
		NumRetries:           0,
		RetryIntervalSeconds: 10,
		TimeoutSeconds:       60,
		ToleranceSeconds:     21600,
	}
}

// CronTriggerDefinition is one entry of the trigger catalog: a recurring
// trigger with its cron schedule and delivery configuration.
type CronTriggerDefinition struct {
	Name     string          `json:"name"`
	Schedule string          `json:"schedule"`
	Webhook  WebhookConf     `json:"webhook"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Retry    RetryConf       `json:"retry_conf"`
	Headers  []HeaderConf    `json:"headers,omitempty"`
	Comment  *string         `json:"comment,omitempty"`
}
