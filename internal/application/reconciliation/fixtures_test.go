package reconciliation

import (
	"context"
	"testing"

	"github.com/erp/clinicsync/internal/domain/clinical"
	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

const (
	testVisitID     = "V1"
	testPatientID   = "5946f880-b197-400b-9caa-a3c661d23041"
	testHepCName    = "Hepatitis C test - qualitative"
	testHepCCode    = "1325AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	testMalariaCode = "32AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	testOrderer     = "Super User (Identifier: admin)"
	testWeightCode  = "5089AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	testParaCode    = "70116AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	testTabletRef   = "1513AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	testServiceUnit = "uom.product_uom_unit"
	testEnrichField = "partner_weight"
)

var testOptions = Options{
	Extract: ExtractOptions{
		DefaultServiceUnitRef:  testServiceUnit,
		DefaultServiceQuantity: decimal.NewFromInt(1),
	},
	EnrichmentCode:  testWeightCode,
	EnrichmentField: testEnrichField,
	AbsentSentinel:  "false",
}

type testERP struct {
	store          *memStore
	unitID         int64
	tabletID       int64
	hepCProduct    int64
	malariaProduct int64
	paraProduct    int64
}

// newTestERP seeds an ERP with the units and products the fixtures order.
func newTestERP() *testERP {
	s := newMemStore()
	e := &testERP{store: s}
	e.unitID = s.seed(reconciliation.ModelUnit, map[string]any{"name": "Units"})
	e.tabletID = s.seed(reconciliation.ModelUnit, map[string]any{"name": "Tablet"})
	e.hepCProduct = s.seed(reconciliation.ModelProduct, map[string]any{"name": testHepCName})
	e.malariaProduct = s.seed(reconciliation.ModelProduct, map[string]any{"name": "Malaria smear"})
	e.paraProduct = s.seed(reconciliation.ModelProduct, map[string]any{"name": "Paracetamol 500mg"})
	s.seedExternalID(reconciliation.ModelUnit, testServiceUnit, e.unitID)
	s.seedExternalID(reconciliation.ModelUnit, testTabletRef, e.tabletID)
	s.seedExternalID(reconciliation.ModelProduct, testHepCCode, e.hepCProduct)
	s.seedExternalID(reconciliation.ModelProduct, testMalariaCode, e.malariaProduct)
	s.seedExternalID(reconciliation.ModelProduct, testParaCode, e.paraProduct)
	return e
}

func (e *testERP) orders() []reconciliation.Record {
	return e.store.all(reconciliation.ModelOrder)
}

func (e *testERP) lines() []reconciliation.Record {
	return e.store.all(reconciliation.ModelOrderLine)
}

func (e *testERP) partners() []reconciliation.Record {
	return e.store.all(reconciliation.ModelPartner)
}

// fakeObservations is an ObservationSource backed by a map.
type fakeObservations struct {
	bySubject map[string][]clinical.Observation
	err       error
	calls     int
}

var _ reconciliation.ObservationSource = (*fakeObservations)(nil)

func (f *fakeObservations) SearchObservations(_ context.Context, subjectRef, code string) ([]clinical.Observation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []clinical.Observation
	for _, o := range f.bySubject[subjectRef] {
		if o.Code.HasCode(code) {
			out = append(out, o)
		}
	}
	return out, nil
}

func weightObservation(id, at string, kg float64) clinical.Observation {
	return clinical.Observation{
		ResourceType:      clinical.ResourceTypeObservation,
		ID:                id,
		Status:            "final",
		Code:              clinical.CodeableConcept{Coding: []clinical.Coding{{Code: testWeightCode}}},
		Subject:           clinical.Reference{Reference: "Patient/" + testPatientID},
		EffectiveDateTime: at,
		ValueQuantity:     &clinical.Quantity{Value: &kg, Unit: "kg"},
	}
}

// ---------------------------------------------------------------------------
// Bundle builders
// ---------------------------------------------------------------------------

type bundleSpec struct {
	visitID     string
	patientID   string
	itemName    string
	itemCode    string
	orderer     string
	status      string
	noPatient   bool
	noEncounter bool
	noPartOf    bool
}

func defaultSpec() bundleSpec {
	return bundleSpec{
		visitID:   testVisitID,
		patientID: testPatientID,
		itemName:  testHepCName,
		itemCode:  testHepCCode,
		orderer:   testOrderer,
		status:    "active",
	}
}

func baseResources(spec bundleSpec) []any {
	var resources []any
	if !spec.noPatient {
		resources = append(resources, &clinical.Patient{
			ResourceType: clinical.ResourceTypePatient,
			ID:           spec.patientID,
			Name:         []clinical.HumanName{{Given: []string{"Richard"}, Family: "Jones"}},
			Address:      []clinical.Address{{Line: []string{"Plot 12"}, City: "Tororo", Country: "Uganda"}},
		})
	}
	if !spec.noEncounter {
		enc := &clinical.Encounter{
			ResourceType: clinical.ResourceTypeEncounter,
			ID:           "enc-" + spec.visitID,
			Subject:      clinical.Reference{Reference: "Patient/" + spec.patientID},
		}
		if !spec.noPartOf {
			enc.PartOf = &clinical.Reference{Reference: "Encounter/" + spec.visitID}
		}
		resources = append(resources, enc)
	}
	return resources
}

func serviceBundle(t *testing.T, spec bundleSpec) *clinical.Bundle {
	t.Helper()
	resources := append(baseResources(spec), &clinical.ServiceRequest{
		ResourceType: clinical.ResourceTypeServiceRequest,
		ID:           "sr-" + spec.itemCode,
		Status:       spec.status,
		Intent:       "order",
		Code: clinical.CodeableConcept{Coding: []clinical.Coding{
			{Code: spec.itemCode, Display: spec.itemName},
		}},
		Subject:   clinical.Reference{Reference: "Patient/" + spec.patientID},
		Requester: clinical.Reference{Reference: "Practitioner/p1", Display: spec.orderer},
	})
	b, err := clinical.NewBundle(resources...)
	require.NoError(t, err)
	return b
}

func medicationBundle(t *testing.T, spec bundleSpec, qty float64) *clinical.Bundle {
	t.Helper()
	resources := append(baseResources(spec),
		&clinical.MedicationRequest{
			ResourceType:        clinical.ResourceTypeMedicationRequest,
			ID:                  "mr-1",
			Status:              spec.status,
			Intent:              "order",
			MedicationReference: &clinical.Reference{Reference: "Medication/med-1"},
			Requester:           clinical.Reference{Display: spec.orderer},
			DispenseRequest: &clinical.DispenseRequest{
				Quantity: &clinical.Quantity{Value: &qty, Unit: "Tablet", Code: testTabletRef},
			},
		},
		&clinical.Medication{
			ResourceType: clinical.ResourceTypeMedication,
			ID:           "med-1",
			Code: clinical.CodeableConcept{Coding: []clinical.Coding{
				{Code: testParaCode, Display: "Paracetamol 500mg"},
			}},
		},
	)
	b, err := clinical.NewBundle(resources...)
	require.NoError(t, err)
	return b
}

// ---------------------------------------------------------------------------
// Mock RecordStore
// ---------------------------------------------------------------------------

// MockRecordStore is a testify mock of reconciliation.RecordStore
type MockRecordStore struct {
	mock.Mock
}

var _ reconciliation.RecordStore = (*MockRecordStore)(nil)

func (m *MockRecordStore) Search(ctx context.Context, model string, criteria reconciliation.Criteria) ([]int64, error) {
	args := m.Called(ctx, model, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRecordStore) SearchRead(ctx context.Context, model string, criteria reconciliation.Criteria, fields []string) ([]reconciliation.Record, error) {
	args := m.Called(ctx, model, criteria, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reconciliation.Record), args.Error(1)
}

func (m *MockRecordStore) Create(ctx context.Context, model string, values map[string]any) (int64, error) {
	args := m.Called(ctx, model, values)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordStore) Write(ctx context.Context, model string, ids []int64, values map[string]any) (bool, error) {
	args := m.Called(ctx, model, ids, values)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordStore) Unlink(ctx context.Context, model string, ids []int64) (bool, error) {
	args := m.Called(ctx, model, ids)
	return args.Bool(0), args.Error(1)
}
