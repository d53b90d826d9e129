package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/erp/clinicsync/internal/application/ingest"
	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/interfaces/http/dto"
	"github.com/erp/clinicsync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// Event delivery headers and query parameters
const (
	EventTypeHeader = "X-Fhir-Event-Type"
	EventTypeQuery  = "event"
)

// Ingester reconciles one delivery
type Ingester interface {
	Ingest(ctx context.Context, d ingest.Delivery) (*ingest.Result, error)
}

// EventHandler accepts order events from the clinical system
type EventHandler struct {
	BaseHandler
	ingester Ingester
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(ingester Ingester) *EventHandler {
	return &EventHandler{ingester: ingester}
}

// Deliver godoc
// @ID           deliverEvent
// @Summary      Deliver an order event
// @Description  Reconciles a FHIR bundle holding one order, its patient and its encounter into the ERP.
// @Description  Answers 503 when a retry may succeed and 422 when the data must change first.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        resourceType      path   string true  "Order resource type" Enums(ServiceRequest, MedicationRequest)
// @Param        X-Fhir-Event-Type header string false "Event tag (c, u or d)"
// @Param        event             query  string false "Event tag when the header is not set"
// @Param        X-Delivery-ID     header string false "Sender delivery id used for de-duplication"
// @Param        bundle            body   object true  "FHIR R4 Bundle"
// @Success      200 {object} APIResponse[dto.IngestResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Failure      422 {object} IngestErrorResponse
// @Failure      503 {object} IngestErrorResponse
// @Security     BearerAuth
// @Router       /events/{resourceType} [post]
func (h *EventHandler) Deliver(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.ErrorWithCode(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "Failed to read request body")
		return
	}

	bundle, err := clinical.ParseBundle(body)
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInvalidJSON, err.Error())
		return
	}

	h.ingest(c, ingest.Delivery{
		ID:           c.GetHeader(middleware.DeliveryIDHeader),
		EventTag:     eventTag(c),
		ResourceType: c.Param("resourceType"),
		Bundle:       bundle,
	})
}

// DeliverReference godoc
// @ID           deliverEventReference
// @Summary      Deliver an order event by reference
// @Description  Fetches the order bundle from the clinical system and reconciles it.
// @Tags         events
// @Produce      json
// @Param        resourceType      path   string true  "Order resource type" Enums(ServiceRequest, MedicationRequest)
// @Param        id                path   string true  "Order resource id"
// @Param        X-Fhir-Event-Type header string false "Event tag (c, u or d)"
// @Param        event             query  string false "Event tag when the header is not set"
// @Param        X-Delivery-ID     header string false "Sender delivery id used for de-duplication"
// @Success      200 {object} APIResponse[dto.IngestResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      422 {object} IngestErrorResponse
// @Failure      503 {object} IngestErrorResponse
// @Security     BearerAuth
// @Router       /events/{resourceType}/{id} [post]
func (h *EventHandler) DeliverReference(c *gin.Context) {
	h.ingest(c, ingest.Delivery{
		ID:           c.GetHeader(middleware.DeliveryIDHeader),
		EventTag:     eventTag(c),
		ResourceType: c.Param("resourceType"),
		ResourceID:   c.Param("id"),
	})
}

func (h *EventHandler) ingest(c *gin.Context, d ingest.Delivery) {
	result, err := h.ingester.Ingest(c.Request.Context(), d)
	if err != nil {
		var data any
		if result != nil && result.Record != nil {
			data = toIngestResponse(result)
		}
		h.HandleErrorWithData(c, err, data)
		return
	}
	h.Success(c, toIngestResponse(result))
}

func eventTag(c *gin.Context) string {
	if tag := c.GetHeader(EventTypeHeader); tag != "" {
		return tag
	}
	return c.Query(EventTypeQuery)
}

func toIngestResponse(result *ingest.Result) dto.IngestResponse {
	return dto.IngestResponse{
		DeliveryID: result.Record.DeliveryID,
		Duplicate:  result.Duplicate,
		Action:     string(result.Outcome.Action),
		Record:     dto.ToReconciliationRecordResponse(result.Record),
	}
}
