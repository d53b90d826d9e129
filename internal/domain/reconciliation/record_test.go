package reconciliation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_Accessors(t *testing.T) {
	var r Record
	raw := `{"id": 42, "name": "S00042", "partner_id": [7, "Richard Jones"], "order_line": [1, 2, 3], "note": false, "res_id": 9}`
	assert.NoError(t, json.Unmarshal([]byte(raw), &r))

	assert.Equal(t, int64(42), r.ID())
	assert.Equal(t, "S00042", r.String("name"))
	assert.Equal(t, "", r.String("note"))

	pid, ok := r.RelationID("partner_id")
	assert.True(t, ok)
	assert.Equal(t, int64(7), pid)

	resID, ok := r.RelationID("res_id")
	assert.True(t, ok)
	assert.Equal(t, int64(9), resID)

	_, ok = r.RelationID("note")
	assert.False(t, ok)

	assert.Equal(t, []int64{1, 2, 3}, r.IDs("order_line"))
	assert.Nil(t, r.IDs("missing"))
}

func TestRecord_NativeIDs(t *testing.T) {
	r := Record{"id": int64(5), "order_line": []int64{4}}
	assert.Equal(t, int64(5), r.ID())
	assert.Equal(t, []int64{4}, r.IDs("order_line"))
}

func TestJournalFilter_Paging(t *testing.T) {
	assert.Equal(t, 20, JournalFilter{}.Limit())
	assert.Equal(t, 100, JournalFilter{PageSize: 500}.Limit())
	assert.Equal(t, 0, JournalFilter{Page: 1, PageSize: 10}.Offset())
	assert.Equal(t, 20, JournalFilter{Page: 3, PageSize: 10}.Offset())
}

func TestReconciliationRecord_Marks(t *testing.T) {
	r := NewReconciliationRecord("delivery-1", "c")
	r.MarkSucceeded(Outcome{Action: ActionOrderCreated, OrderID: 12, LineID: 30})
	assert.Equal(t, RecordStatusSucceeded, r.Status)
	if assert.NotNil(t, r.OrderID) {
		assert.Equal(t, int64(12), *r.OrderID)
	}
	assert.False(t, r.ProcessedAt.IsZero())

	r.MarkFailed(NewError(ErrNotFound, "unit.resolve", "kg"))
	assert.Equal(t, RecordStatusFailed, r.Status)
	assert.Equal(t, "REFERENCE_NOT_FOUND", r.ErrorCode)
	assert.Contains(t, r.ErrorMessage, "kg")
}
