package processor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhima/webhook-scheduler/internal/logging"
	"github.com/dhima/webhook-scheduler/internal/models"
	"github.com/dhima/webhook-scheduler/internal/registry"
	"github.com/dhima/webhook-scheduler/internal/testutil/fakes"
	"github.com/dhima/webhook-scheduler/pkg/clock"
)

var testNow = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func newTestProcessor(store *fakes.FakeEventStore, cat *fakes.FakeCatalog, pub OutcomePublisher) *Processor {
	if cat == nil {
		cat = fakes.NewFakeCatalog()
	}
	return NewWithClock(time.Minute, store, cat, registry.New(), http.DefaultClient, pub,
		logging.NewNoOpLogger(), clock.NewFixed(testNow))
}

func dueEvent(url string, tries, numRetries int) *models.ScheduledEventFull {
	return &models.ScheduledEventFull{
		ID:            "evt-1",
		ScheduledTime: testNow.Add(-5 * time.Second),
		Tries:         tries,
		CreatedAt:     testNow.Add(-time.Minute),
		WebhookURL:    url,
		RetryConf: models.RetryConf{
			NumRetries:           numRetries,
			RetryIntervalSeconds: 60,
			TimeoutSeconds:       10,
			ToleranceSeconds:     21600,
		},
	}
}

func TestDeliver_Success(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`"ok"`))
	}))
	defer srv.Close()

	store := fakes.NewFakeEventStore()
	pub := &fakes.FakeOutcomePublisher{}
	p := newTestProcessor(store, nil, pub)

	event := dueEvent(srv.URL, 0, 3)
	err := p.deliver(context.Background(), models.EventClassOneOff, event)
	require.NoError(t, err)

	assert.Equal(t, models.EventStatusDelivered, store.Status("evt-1"))
	assert.Equal(t, 1, store.Tries["evt-1"])
	require.Len(t, store.Invocations["evt-1"], 1)
	inv := store.Invocations["evt-1"][0]
	assert.Equal(t, http.StatusOK, inv.Status)
	assert.Equal(t, models.ResponseKindWebhook, inv.Response.Kind)
	assert.Equal(t, `"ok"`, inv.Response.Data.Body)

	assert.Equal(t, "application/json", gotContentType)
	var body map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &body))
	assert.Equal(t, "evt-1", body["id"])
	assert.Nil(t, body["payload"])
	// One-off bodies carry created_at and never a trigger name.
	assert.Contains(t, body, "created_at")
	assert.NotContains(t, body, "name")

	outcomes := pub.Published()
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.EventStatusDelivered, outcomes[0].Status)
	assert.Equal(t, 1, outcomes[0].Tries)
}

func TestDeliver_CronBodyCarriesTriggerName(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := fakes.NewFakeEventStore()
	p := newTestProcessor(store, nil, nil)

	event := dueEvent(srv.URL, 0, 3)
	name := "hourly"
	event.TriggerName = &name
	event.Payload = json.RawMessage(`{"k":"v"}`)
	require.NoError(t, p.deliver(context.Background(), models.EventClassCron, event))

	var body map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &body))
	assert.Equal(t, "hourly", body["name"])
	assert.Equal(t, map[string]any{"k": "v"}, body["payload"])
	assert.NotContains(t, body, "created_at")
	assert.Equal(t, models.EventStatusDelivered, store.Status("evt-1"))
}

func TestDeliver_RetryAfterOverridesInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := fakes.NewFakeEventStore()
	p := newTestProcessor(store, nil, nil)

	event := dueEvent(srv.URL, 0, 3)
	require.NoError(t, p.deliver(context.Background(), models.EventClassCron, event))

	assert.Equal(t, models.EventStatusScheduled, store.Status("evt-1"))
	assert.Equal(t, testNow.Add(30*time.Second), store.NextRetries["evt-1"])
	assert.Equal(t, 1, store.Tries["evt-1"])
	require.Len(t, store.Invocations["evt-1"], 1)
	assert.Equal(t, http.StatusServiceUnavailable, store.Invocations["evt-1"][0].Status)
}

func TestDeliver_RetryAfterExtendsExhaustedBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "45")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := fakes.NewFakeEventStore()
	p := newTestProcessor(store, nil, nil)

	// tries >= num_retries, yet Retry-After still wins.
	event := dueEvent(srv.URL, 5, 3)
	require.NoError(t, p.deliver(context.Background(), models.EventClassOneOff, event))

	assert.Equal(t, models.EventStatusScheduled, store.Status("evt-1"))
	assert.Equal(t, testNow.Add(45*time.Second), store.NextRetries["evt-1"])
}

func TestDeliver_ExhaustedRetriesGoTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := fakes.NewFakeEventStore()
	pub := &fakes.FakeOutcomePublisher{}
	p := newTestProcessor(store, nil, pub)

	event := dueEvent(srv.URL, 3, 3)
	require.NoError(t, p.deliver(context.Background(), models.EventClassCron, event))

	assert.Equal(t, models.EventStatusError, store.Status("evt-1"))
	assert.Equal(t, 1, store.Tries["evt-1"])
	assert.NotContains(t, store.NextRetries, "evt-1")
	require.Len(t, store.Invocations["evt-1"], 1)
	assert.Equal(t, http.StatusInternalServerError, store.Invocations["evt-1"][0].Status)

	outcomes := pub.Published()
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.EventStatusError, outcomes[0].Status)
	assert.Equal(t, 4, outcomes[0].Tries)
}

func TestDeliver_FailedAttemptUnderBudgetRetriesAfterInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := fakes.NewFakeEventStore()
	p := newTestProcessor(store, nil, nil)

	event := dueEvent(srv.URL, 1, 3)
	require.NoError(t, p.deliver(context.Background(), models.EventClassCron, event))

	assert.Equal(t, models.EventStatusScheduled, store.Status("evt-1"))
	assert.Equal(t, testNow.Add(60*time.Second), store.NextRetries["evt-1"])
}

func TestDeliver_ClientErrorStoresDistinguishedVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad payload"}`))
	}))
	defer srv.Close()

	store := fakes.NewFakeEventStore()
	p := newTestProcessor(store, nil, nil)

	event := dueEvent(srv.URL, 0, 0)
	require.NoError(t, p.deliver(context.Background(), models.EventClassOneOff, event))

	// num_retries=0 and no Retry-After: terminal error.
	assert.Equal(t, models.EventStatusError, store.Status("evt-1"))
	require.Len(t, store.Invocations["evt-1"], 1)
	inv := store.Invocations["evt-1"][0]
	assert.Equal(t, http.StatusUnprocessableEntity, inv.Status)
	assert.Equal(t, models.ResponseKindClientError, inv.Response.Kind)
	assert.Equal(t, `{"error":"bad payload"}`, inv.Response.Data.Body)
}

func TestDeliver_TransportErrorRecordsSyntheticStatus(t *testing.T) {
	store := fakes.NewFakeEventStore()
	p := newTestProcessor(store, nil, nil)

	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	event := dueEvent(url, 0, 2)
	require.NoError(t, p.deliver(context.Background(), models.EventClassCron, event))

	assert.Equal(t, models.EventStatusScheduled, store.Status("evt-1"))
	require.Len(t, store.Invocations["evt-1"], 1)
	inv := store.Invocations["evt-1"][0]
	assert.Equal(t, models.StatusTransportError, inv.Status)
	assert.Equal(t, models.ResponseKindError, inv.Response.Kind)
	assert.NotEmpty(t, inv.Response.Error.Message)
}

func TestDeliver_DeadEventSkipsHTTPAndInvocation(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	store := fakes.NewFakeEventStore()
	pub := &fakes.FakeOutcomePublisher{}
	p := newTestProcessor(store, nil, pub)

	event := dueEvent(srv.URL, 0, 3)
	event.ScheduledTime = testNow.Add(-time.Hour)
	event.RetryConf.ToleranceSeconds = 60
	require.NoError(t, p.deliver(context.Background(), models.EventClassOneOff, event))

	assert.False(t, called, "dead events must not reach the webhook")
	assert.Equal(t, models.EventStatusDead, store.Status("evt-1"))
	assert.Empty(t, store.Invocations["evt-1"])
	assert.Zero(t, store.Tries["evt-1"])

	outcomes := pub.Published()
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.EventStatusDead, outcomes[0].Status)
}

func TestDeliver_ShutdownFlagBlocksStateTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := fakes.NewFakeEventStore()
	p := newTestProcessor(store, nil, nil)
	p.stopping.Store(true)

	event := dueEvent(srv.URL, 0, 3)
	err := p.deliver(context.Background(), models.EventClassCron, event)
	require.ErrorIs(t, err, ErrShuttingDown)

	// No transition written: the row is left to the drain/unlock path.
	assert.Empty(t, store.Invocations["evt-1"])
	assert.NotEqual(t, models.EventStatusDelivered, store.Status("evt-1"))
}

func TestRetryAfterSeconds(t *testing.T) {
	h := http.Header{}
	_, ok := retryAfterSeconds(h)
	assert.False(t, ok)

	h.Set("Retry-After", "30")
	d, ok := retryAfterSeconds(h)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, d)

	h.Set("Retry-After", "-1")
	_, ok = retryAfterSeconds(h)
	assert.False(t, ok)

	// HTTP-date form is ignored.
	h.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	_, ok = retryAfterSeconds(h)
	assert.False(t, ok)

	_, ok = retryAfterSeconds(nil)
	assert.False(t, ok)
}

func TestRequestTimeoutSeconds(t *testing.T) {
	assert.Equal(t, 10, requestTimeoutSeconds(10.4))
	assert.Equal(t, 11, requestTimeoutSeconds(10.5))
	assert.Equal(t, 0, requestTimeoutSeconds(-3))
}
