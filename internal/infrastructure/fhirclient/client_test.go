package fhirclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {"resourceType": "ServiceRequest", "id": "sr-1", "status": "active",
      "code": {"coding": [{"code": "1325AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "display": "Hepatitis C test - qualitative"}]},
      "requester": {"display": "Super User (Identifier: admin)"}}},
    {"resource": {"resourceType": "Patient", "id": "p-1", "name": [{"given": ["Richard"], "family": "Jones"}]}},
    {"resource": {"resourceType": "Encounter", "id": "e-1", "partOf": {"reference": "Encounter/V1"}}}
  ]
}`

const observationBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {"resourceType": "Observation", "id": "o-2", "status": "final", "effectiveDateTime": "2024-03-01T08:00:00Z",
      "code": {"coding": [{"code": "5089AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}]}, "valueQuantity": {"value": 77, "unit": "kg"}}},
    {"resource": {"resourceType": "Observation", "id": "o-1", "status": "final", "effectiveDateTime": "2024-01-01T08:00:00Z",
      "code": {"coding": [{"code": "5089AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}]}, "valueQuantity": {"value": 80, "unit": "kg"}}}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(&Config{BaseURL: srv.URL + "/openmrs/ws/fhir2/R4/", Username: "admin", Password: "Admin123"})
	require.NoError(t, err)
	return c
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Config{}).Validate(), ErrConfigMissingURL)

	c := &Config{BaseURL: "http://openmrs/fhir"}
	require.NoError(t, c.Validate())
	assert.Equal(t, 30, c.TimeoutSeconds)
	assert.Equal(t, 10, c.ObservationPageSize)
}

func TestClient_FetchOrderBundle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openmrs/ws/fhir2/R4/ServiceRequest", r.URL.Path)
		assert.Equal(t, "sr-1", r.URL.Query().Get("_id"))
		assert.Equal(t, []string{"ServiceRequest:patient", "ServiceRequest:encounter"}, r.URL.Query()["_include"])
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "Admin123", pass)
		w.Header().Set("Content-Type", "application/fhir+json")
		_, _ = w.Write([]byte(orderBundle))
	})

	b, err := c.FetchOrderBundle(context.Background(), "ServiceRequest", "sr-1")
	require.NoError(t, err)
	res, err := b.Resources()
	require.NoError(t, err)
	assert.Equal(t, "V1", res.Encounter.VisitID())
	assert.Equal(t, "p-1", res.Patient.ID)
}

func TestClient_FetchOrderBundle_MedicationIncludes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query()["_include"], "MedicationRequest:medication")
		_, _ = w.Write([]byte(`{"resourceType":"Bundle","type":"searchset"}`))
	})

	_, err := c.FetchOrderBundle(context.Background(), "MedicationRequest", "mr-1")
	assert.ErrorIs(t, err, reconciliation.ErrNotFound)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestClient_FetchOrderBundle_UnsupportedType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.FetchOrderBundle(context.Background(), "Observation", "o-1")
	assert.ErrorIs(t, err, reconciliation.ErrValidation)
}

func TestClient_SearchObservations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/openmrs/ws/fhir2/R4/Observation", r.URL.Path)
		assert.Equal(t, "Patient/p-1", q.Get("subject"))
		assert.Equal(t, "5089AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", q.Get("code"))
		assert.Equal(t, "-date", q.Get("_sort"))
		assert.Equal(t, "10", q.Get("_count"))
		_, _ = w.Write([]byte(observationBundle))
	})

	obs, err := c.SearchObservations(context.Background(), "p-1", "5089AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, 77.0, *obs[0].ValueQuantity.Value)
}

func TestClient_ServerFailureIsRemote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.SearchObservations(context.Background(), "Patient/p-1", "x")
	assert.ErrorIs(t, err, reconciliation.ErrRemoteService)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = c.FetchOrderBundle(context.Background(), "ServiceRequest", "sr-1")
	assert.ErrorIs(t, err, reconciliation.ErrRemoteService)
}

func TestClient_MalformedBodyIsRemote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	})
	_, err := c.SearchObservations(context.Background(), "p-1", "x")
	assert.ErrorIs(t, err, reconciliation.ErrRemoteService)
}
