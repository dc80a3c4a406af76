package catalog

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSON schemas for the jsonb conf columns of hdb_cron_triggers. Rows are
// validated on every catalog load so a hand-edited definition cannot
// reach the processor half-formed.

const webhookConfSchema = `{
	"type": "object",
	"properties": {
		"url": {"type": "string", "minLength": 1},
		"from_env": {"type": "string", "minLength": 1}
	},
	"additionalProperties": false,
	"oneOf": [
		{"required": ["url"]},
		{"required": ["from_env"]}
	]
}`

const retryConfSchema = `{
	"type": "object",
	"properties": {
		"num_retries": {"type": "integer", "minimum": 0},
		"retry_interval_seconds": {"type": "integer", "minimum": 0},
		"timeout_seconds": {"type": "number", "minimum": 0},
		"tolerance_seconds": {"type": "integer", "minimum": 0}
	},
	"additionalProperties": false
}`

const headerConfSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"value": {"type": "string"},
			"value_from_env": {"type": "string", "minLength": 1}
		},
		"required": ["name"],
		"additionalProperties": false
	}
}`

var (
	webhookConfValidator = gojsonschema.NewStringLoader(webhookConfSchema)
	retryConfValidator   = gojsonschema.NewStringLoader(retryConfSchema)
	headerConfValidator  = gojsonschema.NewStringLoader(headerConfSchema)
)

func validateAgainst(schema gojsonschema.JSONLoader, document []byte, what string) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("validate %s: %w", what, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid %s: %s", what, strings.Join(msgs, "; "))
	}
	return nil
}

// ValidateWebhookConf checks a raw webhook_conf document.
func ValidateWebhookConf(document []byte) error {
	return validateAgainst(webhookConfValidator, document, "webhook conf")
}

// ValidateRetryConf checks a raw retry_conf document.
func ValidateRetryConf(document []byte) error {
	return validateAgainst(retryConfValidator, document, "retry conf")
}

// ValidateHeaderConf checks a raw header_conf document.
func ValidateHeaderConf(document []byte) error {
	return validateAgainst(headerConfValidator, document, "header conf")
}
