package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhima/webhook-scheduler/internal/api/response"
	"github.com/dhima/webhook-scheduler/internal/catalog"
	"github.com/dhima/webhook-scheduler/internal/logging"
	"github.com/dhima/webhook-scheduler/internal/models"
	"github.com/dhima/webhook-scheduler/internal/storage"
)

// EventStore is the storage surface the event handlers need.
type EventStore interface {
	InsertOneOffEvent(ctx context.Context, event *models.OneOffScheduledEvent) error
	GetOneOffEvent(ctx context.Context, eventID string) (*models.OneOffScheduledEvent, error)
	ListOneOffEvents(ctx context.Context, query models.ListEventsQuery) ([]models.OneOffScheduledEvent, int64, error)
	ListInvocations(ctx context.Context, class models.EventClass, eventID string) ([]models.Invocation, error)
}

// EventHandler handles one-off scheduled event requests.
type EventHandler struct {
	logger logging.Logger
	store  EventStore
}

// NewEventHandler creates a new event handler.
func NewEventHandler(logger logging.Logger, store EventStore) *EventHandler {
	return &EventHandler{
		logger: logger.With(zap.String("handler", "event")),
		store:  store,
	}
}

// CreateEvent schedules a one-off webhook delivery.
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	scheduledTime, err := time.Parse(time.RFC3339, req.ScheduleTime)
	if err != nil {
		response.BadRequest(c, "invalid schedule_time", "must be an RFC 3339 timestamp")
		return
	}

	webhookConf, err := json.Marshal(req.Webhook)
	if err != nil {
		response.InternalServerError(c, "failed to encode webhook configuration")
		return
	}
	if err := catalog.ValidateWebhookConf(webhookConf); err != nil {
		response.BadRequest(c, "invalid webhook configuration", err.Error())
		return
	}

	retryConf := models.DefaultRetryConf()
	if len(req.RetryConf) > 0 {
		if err := catalog.ValidateRetryConf(req.RetryConf); err != nil {
			response.BadRequest(c, "invalid retry configuration", err.Error())
			return
		}
		// Overlay onto the populated defaults: omitted fields keep them.
		if err := json.Unmarshal(req.RetryConf, &retryConf); err != nil {
			response.BadRequest(c, "invalid retry configuration", err.Error())
			return
		}
	}

	if len(req.Headers) > 0 {
		headerConf, err := json.Marshal(req.Headers)
		if err != nil {
			response.InternalServerError(c, "failed to encode header configuration")
			return
		}
		if err := catalog.ValidateHeaderConf(headerConf); err != nil {
			response.BadRequest(c, "invalid header configuration", err.Error())
			return
		}
	}

	event := &models.OneOffScheduledEvent{
		ID:            uuid.New().String(),
		ScheduledTime: scheduledTime.UTC(),
		Status:        models.EventStatusScheduled,
		WebhookConf:   req.Webhook,
		Payload:       req.Payload,
		RetryConf:     retryConf,
		HeaderConf:    req.Headers,
		Comment:       req.Comment,
	}

	if err := h.store.InsertOneOffEvent(c.Request.Context(), event); err != nil {
		h.logger.Error("failed to insert one-off event",
			zap.String("request_id", response.GetRequestID(c)),
			zap.Error(err))
		response.InternalServerError(c, "failed to create event")
		return
	}

	h.logger.Info("one-off event created",
		zap.String("event_id", event.ID),
		zap.Time("scheduled_time", event.ScheduledTime))
	response.Created(c, event, "event scheduled")
}

// ListEvents returns one-off events filtered by status with pagination.
func (h *EventHandler) ListEvents(c *gin.Context) {
	var query models.ListEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err.Error())
		return
	}

	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 20
	}

	events, total, err := h.store.ListOneOffEvents(c.Request.Context(), query)
	if err != nil {
		h.logger.Error("failed to list one-off events",
			zap.String("request_id", response.GetRequestID(c)),
			zap.Error(err))
		response.InternalServerError(c, "failed to list events")
		return
	}

	result := models.EventListResponse{
		Events: events,
		Pagination: models.Pagination{
			CurrentPage:  query.Page,
			PageSize:     query.Limit,
			TotalPages:   int(math.Ceil(float64(total) / float64(query.Limit))),
			TotalRecords: total,
		},
	}
	response.OK(c, result)
}

// GetEvent returns a single one-off event by id.
func (h *EventHandler) GetEvent(c *gin.Context) {
	eventID := c.Param("id")

	event, err := h.store.GetOneOffEvent(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, storage.ErrEventNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("failed to get one-off event",
			zap.String("event_id", eventID),
			zap.Error(err))
		response.InternalServerError(c, "failed to get event")
		return
	}
	response.OK(c, event)
}

// ListEventInvocations returns the delivery attempts recorded for an event.
func (h *EventHandler) ListEventInvocations(c *gin.Context) {
	eventID := c.Param("id")

	if _, err := h.store.GetOneOffEvent(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, storage.ErrEventNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("failed to get one-off event",
			zap.String("event_id", eventID),
			zap.Error(err))
		response.InternalServerError(c, "failed to get event")
		return
	}

	invocations, err := h.store.ListInvocations(c.Request.Context(), models.EventClassOneOff, eventID)
	if err != nil {
		h.logger.Error("failed to list invocations",
			zap.String("event_id", eventID),
			zap.Error(err))
		response.InternalServerError(c, "failed to list invocations")
		return
	}
	response.OK(c, invocations)
}
