package reconciliation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
)

// memStore is an in-memory ERP that understands the handful of models the
// engine touches. sale.order.order_line is derived from the line table.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	tables  map[string]map[int64]reconciliation.Record
	calls   map[string]int
	failOn  map[string]error
	writeOK bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID:  100,
		tables:  make(map[string]map[int64]reconciliation.Record),
		calls:   make(map[string]int),
		failOn:  make(map[string]error),
		writeOK: true,
	}
}

var _ reconciliation.RecordStore = (*memStore)(nil)

func (s *memStore) fail(method, model string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[method+":"+model] = err
}

func (s *memStore) enter(method, model string) error {
	s.calls[method+":"+model]++
	return s.failOn[method+":"+model]
}

func (s *memStore) count(method, model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+":"+model]
}

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.calls {
		for _, prefix := range []string{"create:", "write:", "unlink:"} {
			if len(k) > len(prefix) && k[:len(prefix)] == prefix {
				n += v
			}
		}
	}
	return n
}

// seed inserts a record directly, bypassing call accounting.
func (s *memStore) seed(model string, values map[string]any) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(model, values)
}

func (s *memStore) seedExternalID(model, ref string, resID int64) {
	values := map[string]any{
		reconciliation.FieldExternalModel: model,
		reconciliation.FieldExternalName:  ref,
		reconciliation.FieldExternalResID: resID,
	}
	if module, name, ok := strings.Cut(ref, "."); ok {
		values[FieldExternalModule] = module
		values[reconciliation.FieldExternalName] = name
	}
	s.seed(reconciliation.ModelExternal, values)
}

func (s *memStore) insert(model string, values map[string]any) int64 {
	s.nextID++
	rec := reconciliation.Record{}
	for k, v := range values {
		rec[k] = v
	}
	rec[reconciliation.FieldID] = s.nextID
	if s.tables[model] == nil {
		s.tables[model] = make(map[int64]reconciliation.Record)
	}
	s.tables[model][s.nextID] = rec
	return s.nextID
}

func (s *memStore) get(model string, id int64) reconciliation.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tables[model][id]
	if !ok {
		return nil
	}
	return s.view(model, rec)
}

func (s *memStore) all(model string) []reconciliation.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match(model, nil)
}

func (s *memStore) view(model string, rec reconciliation.Record) reconciliation.Record {
	out := reconciliation.Record{}
	for k, v := range rec {
		out[k] = v
	}
	if model == reconciliation.ModelOrder {
		var lines []int64
		for id, line := range s.tables[reconciliation.ModelOrderLine] {
			if fmt.Sprint(line[reconciliation.FieldLineOrder]) == fmt.Sprint(rec.ID()) {
				lines = append(lines, id)
			}
		}
		sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
		out[reconciliation.FieldOrderLines] = lines
	}
	return out
}

func (s *memStore) match(model string, criteria reconciliation.Criteria) []reconciliation.Record {
	var out []reconciliation.Record
	ids := make([]int64, 0, len(s.tables[model]))
	for id := range s.tables[model] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		rec := s.tables[model][id]
		ok := true
		for _, c := range criteria {
			equal := fmt.Sprint(rec[c.Field]) == fmt.Sprint(c.Value)
			if (c.Operator == reconciliation.OpEqual) != equal {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, s.view(model, rec))
		}
	}
	return out
}

func (s *memStore) Search(_ context.Context, model string, criteria reconciliation.Criteria) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("search", model); err != nil {
		return nil, err
	}
	var ids []int64
	for _, rec := range s.match(model, criteria) {
		ids = append(ids, rec.ID())
	}
	return ids, nil
}

func (s *memStore) SearchRead(_ context.Context, model string, criteria reconciliation.Criteria, _ []string) ([]reconciliation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("search_read", model); err != nil {
		return nil, err
	}
	return s.match(model, criteria), nil
}

func (s *memStore) Create(_ context.Context, model string, values map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("create", model); err != nil {
		return 0, err
	}
	return s.insert(model, values), nil
}

func (s *memStore) Write(_ context.Context, model string, ids []int64, values map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("write", model); err != nil {
		return false, err
	}
	for _, id := range ids {
		rec, ok := s.tables[model][id]
		if !ok {
			return false, fmt.Errorf("%s %d does not exist", model, id)
		}
		for k, v := range values {
			rec[k] = v
		}
	}
	return s.writeOK, nil
}

func (s *memStore) Unlink(_ context.Context, model string, ids []int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("unlink", model); err != nil {
		return false, err
	}
	for _, id := range ids {
		delete(s.tables[model], id)
	}
	return true, nil
}
