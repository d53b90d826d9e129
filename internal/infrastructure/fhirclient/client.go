// Package fhirclient talks to the FHIR R4 API of the medical records system.
package fhirclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/erp/clinicsync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the FHIR endpoint settings.
type Config struct {
	// BaseURL is the FHIR base, e.g. http://openmrs:8080/openmrs/ws/fhir2/R4
	BaseURL  string
	Username string
	Password string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// ObservationPageSize bounds the observations fetched per search
	ObservationPageSize int
	MaxResponseBytes    int64
}

// Errors for the FHIR client
var (
	ErrConfigMissingURL = errors.New("fhir: base url is required")
	ErrResourceNotFound = errors.New("fhir: resource not found")
	ErrUnavailable      = errors.New("fhir: service unavailable")
	ErrUnsupportedType  = errors.New("fhir: unsupported resource type")
)

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingURL
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("fhir: invalid base url: %w", err)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.ObservationPageSize <= 0 {
		c.ObservationPageSize = 10
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = 10 << 20
	}
	return nil
}

// includes lists the resources fetched along with each order type.
var includes = map[string][]string{
	clinical.ResourceTypeServiceRequest: {
		"ServiceRequest:patient",
		"ServiceRequest:encounter",
	},
	clinical.ResourceTypeMedicationRequest: {
		"MedicationRequest:patient",
		"MedicationRequest:encounter",
		"MedicationRequest:medication",
	},
}

// Client is a FHIR REST client.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new FHIR client with the given configuration
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// FetchOrderBundle fetches an order resource together with the patient,
// encounter and, for prescriptions, the medication it references.
func (c *Client) FetchOrderBundle(ctx context.Context, resourceType, id string) (*clinical.Bundle, error) {
	inc, ok := includes[resourceType]
	if !ok {
		return nil, reconciliation.NewError(reconciliation.ErrValidation, "fhir.fetch_order",
			fmt.Sprintf("%v: %s", ErrUnsupportedType, resourceType))
	}
	q := url.Values{}
	q.Set("_id", id)
	for _, i := range inc {
		q.Add("_include", i)
	}

	bundle, err := c.search(ctx, resourceType, q)
	if err != nil {
		return nil, reconciliation.WrapRemote("fhir.fetch_order", err)
	}
	if !hasResource(bundle, resourceType, id) {
		return nil, &reconciliation.Error{
			Kind:   reconciliation.ErrNotFound,
			Op:     "fhir.fetch_order",
			Detail: resourceType + "/" + id,
			Err:    ErrResourceNotFound,
		}
	}
	return bundle, nil
}

// SearchObservations implements reconciliation.ObservationSource. Results
// are requested newest first.
func (c *Client) SearchObservations(ctx context.Context, subjectRef, code string) ([]clinical.Observation, error) {
	if !strings.Contains(subjectRef, "/") {
		subjectRef = clinical.ResourceTypePatient + "/" + subjectRef
	}
	q := url.Values{}
	q.Set("subject", subjectRef)
	q.Set("code", code)
	q.Set("_sort", "-date")
	q.Set("_count", strconv.Itoa(c.config.ObservationPageSize))

	bundle, err := c.search(ctx, clinical.ResourceTypeObservation, q)
	if err != nil {
		return nil, reconciliation.WrapRemote("fhir.search_observations", err)
	}
	res, err := bundle.Resources()
	if err != nil {
		return nil, reconciliation.WrapRemote("fhir.search_observations", err)
	}
	return res.Observations, nil
}

func (c *Client) search(ctx context.Context, resourceType string, q url.Values) (*clinical.Bundle, error) {
	ctx, span := telemetry.StartSpan(ctx, "fhir.search",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrResourceType, resourceType),
	)
	defer span.End()

	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + "/" + resourceType + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("fhir: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json")
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	telemetry.SetAttribute(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		err := fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
		telemetry.RecordError(span, err)
		return nil, err
	}

	bundle, err := clinical.ParseBundle(body)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return bundle, nil
}

func hasResource(b *clinical.Bundle, resourceType, id string) bool {
	res, err := b.Resources()
	if err != nil {
		return false
	}
	switch resourceType {
	case clinical.ResourceTypeServiceRequest:
		return res.ServiceRequest != nil && res.ServiceRequest.ID == id
	case clinical.ResourceTypeMedicationRequest:
		return res.MedicationRequest != nil && res.MedicationRequest.ID == id
	}
	return false
}
