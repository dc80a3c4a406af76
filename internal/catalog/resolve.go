package catalog

import (
	"fmt"
	"os"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// ResolveWebhook turns a webhook reference into a concrete URL. A
// from_env reference naming an unset environment variable is an error;
// the caller skips the event and leaves it for the next restart.
func ResolveWebhook(conf models.WebhookConf) (string, error) {
	if conf.URL != "" {
		return conf.URL, nil
	}
	if conf.FromEnv == "" {
		return "", fmt.Errorf("webhook conf has neither url nor from_env")
	}
	url, ok := os.LookupEnv(conf.FromEnv)
	if !ok || url == "" {
		return "", fmt.Errorf("webhook env var %q is not set", conf.FromEnv)
	}
	return url, nil
}

// ResolveHeaders resolves each header reference to its final value,
// applying the same value-or-env rule per header.
func ResolveHeaders(confs []models.HeaderConf) ([]models.EventHeaderInfo, error) {
	headers := make([]models.EventHeaderInfo, 0, len(confs))
	for _, conf := range confs {
		if conf.Name == "" {
			return nil, fmt.Errorf("header conf with empty name")
		}
		value := conf.Value
		if conf.ValueFromEnv != "" {
			v, ok := os.LookupEnv(conf.ValueFromEnv)
			if !ok {
				return nil, fmt.Errorf("header %q env var %q is not set", conf.Name, conf.ValueFromEnv)
			}
			value = v
		}
		headers = append(headers, models.EventHeaderInfo{Name: conf.Name, Value: value})
	}
	return headers, nil
}
