package clinical

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadBundle(t *testing.T, name string) *Bundle {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	b, err := ParseBundle(data)
	require.NoError(t, err)
	return b
}

func TestBundle_Resources(t *testing.T) {
	b := loadBundle(t, "service_request_bundle.json")
	res, err := b.Resources()
	require.NoError(t, err)

	require.NotNil(t, res.Patient)
	assert.Equal(t, "5946f880-b197-400b-9caa-a3c661d23041", res.Patient.ID)
	assert.Equal(t, "Richard Jones", res.Patient.DisplayName())
	require.NotNil(t, res.Patient.PrimaryAddress())
	assert.Equal(t, "Tororo", res.Patient.PrimaryAddress().City)

	require.NotNil(t, res.Encounter)
	assert.Equal(t, "7d2a9bd4-4c1f-4d6b-8d7a-0b1f5f1f2e22", res.Encounter.VisitID())

	require.NotNil(t, res.ServiceRequest)
	sr := res.ServiceRequest
	assert.Equal(t, "Hepatitis C test - qualitative", sr.Code.DisplayText())
	assert.Equal(t, "1325AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", sr.Code.LocalCode())
	assert.Equal(t, "Super User (Identifier: admin)", sr.Requester.Display)
	assert.False(t, sr.IsCancelled())

	assert.Nil(t, res.MedicationRequest)
	assert.Nil(t, res.Medication)
}

func TestParseBundle_Errors(t *testing.T) {
	_, err := ParseBundle([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedBundle)

	_, err = ParseBundle([]byte(`{"resourceType":"Patient","id":"x"}`))
	assert.ErrorIs(t, err, ErrMalformedBundle)
}

func TestBundle_Resources_MalformedEntry(t *testing.T) {
	b, err := ParseBundle([]byte(`{"resourceType":"Bundle","entry":[{"resource":{"resourceType":"Patient","name":"not-a-list"}}]}`))
	require.NoError(t, err)
	_, err = b.Resources()
	assert.ErrorIs(t, err, ErrMalformedBundle)
}

func TestNewBundle_RoundTripsTypedResources(t *testing.T) {
	qty := 30.0
	b, err := NewBundle(
		&Patient{ResourceType: ResourceTypePatient, ID: "p1"},
		&MedicationRequest{
			ResourceType:        ResourceTypeMedicationRequest,
			ID:                  "mr1",
			Status:              "stopped",
			MedicationReference: &Reference{Reference: "Medication/m1"},
			DispenseRequest:     &DispenseRequest{Quantity: &Quantity{Value: &qty, Code: "tab"}},
		},
		&Medication{ResourceType: ResourceTypeMedication, ID: "m1", Code: CodeableConcept{Text: "Paracetamol 500mg"}},
		&Observation{ResourceType: ResourceTypeObservation, ID: "o1"},
	)
	require.NoError(t, err)

	res, err := b.Resources()
	require.NoError(t, err)
	require.NotNil(t, res.MedicationRequest)
	assert.True(t, res.MedicationRequest.IsCancelled())
	assert.Equal(t, 30.0, *res.MedicationRequest.DispenseQuantity().Value)
	assert.Equal(t, "Paracetamol 500mg", res.Medication.Code.DisplayText())
	assert.Len(t, res.Observations, 1)
	assert.Nil(t, res.Encounter)
}
