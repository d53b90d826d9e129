package reconciliation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		tag  string
		want EventType
	}{
		{"c", EventTypeCreate},
		{"u", EventTypeUpdate},
		{"d", EventTypeDiscontinue},
		{"C", EventTypeCreate},
		{" create ", EventTypeCreate},
		{"update", EventTypeUpdate},
		{"Discontinue", EventTypeDiscontinue},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseEventType(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
}

func TestParseEventType_Unsupported(t *testing.T) {
	for _, tag := range []string{"", "x", "delete", "cu"} {
		t.Run(tag, func(t *testing.T) {
			_, err := ParseEventType(tag)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedEvent)
			assert.ErrorIs(t, err, ErrValidation)

			var re *Error
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tag, re.EventTag)
		})
	}
}

func TestEventType_Tag(t *testing.T) {
	assert.Equal(t, "c", EventTypeCreate.Tag())
	assert.Equal(t, "u", EventTypeUpdate.Tag())
	assert.Equal(t, "d", EventTypeDiscontinue.Tag())
	assert.Equal(t, "", EventType("bogus").Tag())

	assert.True(t, EventTypeCreate.IsUpsert())
	assert.True(t, EventTypeUpdate.IsUpsert())
	assert.False(t, EventTypeDiscontinue.IsUpsert())
}

func TestParseOrderKind(t *testing.T) {
	k, ok := ParseOrderKind("ServiceRequest")
	assert.True(t, ok)
	assert.Equal(t, OrderKindServiceRequest, k)

	k, ok = ParseOrderKind("MedicationRequest")
	assert.True(t, ok)
	assert.Equal(t, OrderKindMedicationRequest, k)

	_, ok = ParseOrderKind("Observation")
	assert.False(t, ok)
}
