package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
	"go.uber.org/zap"
)

// Store implements reconciliation.RecordStore on top of the Odoo client.
// A call rejected for an expired session is retried once with a fresh
// session; every other failure is returned as ErrRemoteService.
type Store struct {
	client   *Client
	sessions *SessionProvider
	logger   *zap.Logger
}

var _ reconciliation.RecordStore = (*Store)(nil)

// NewStore creates a Store
func NewStore(client *Client, sessions *SessionProvider, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, sessions: sessions, logger: logger}
}

// Search implements reconciliation.RecordStore
func (s *Store) Search(ctx context.Context, model string, criteria reconciliation.Criteria) ([]int64, error) {
	var ids []int64
	if err := s.execute(ctx, model, "search", []any{encodeDomain(criteria)}, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SearchRead implements reconciliation.RecordStore
func (s *Store) SearchRead(
	ctx context.Context,
	model string,
	criteria reconciliation.Criteria,
	fields []string,
) ([]reconciliation.Record, error) {
	kwargs := map[string]any{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	var records []reconciliation.Record
	if err := s.execute(ctx, model, "search_read", []any{encodeDomain(criteria)}, kwargs, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Create implements reconciliation.RecordStore
func (s *Store) Create(ctx context.Context, model string, values map[string]any) (int64, error) {
	var id int64
	if err := s.execute(ctx, model, "create", []any{values}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Write implements reconciliation.RecordStore
func (s *Store) Write(ctx context.Context, model string, ids []int64, values map[string]any) (bool, error) {
	var ok bool
	if err := s.execute(ctx, model, "write", []any{ids, values}, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Unlink implements reconciliation.RecordStore
func (s *Store) Unlink(ctx context.Context, model string, ids []int64) (bool, error) {
	var ok bool
	if err := s.execute(ctx, model, "unlink", []any{ids}, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) execute(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	op := "erp." + method
	raw, err := s.call(ctx, model, method, args, kwargs)
	if err != nil {
		return reconciliation.WrapRemote(op, fmt.Errorf("%s: %w", model, err))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return reconciliation.WrapRemote(op, fmt.Errorf("%s: %w: %v", model, ErrBadResponse, err))
	}
	return nil
}

func (s *Store) call(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	sess, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.ExecuteKw(ctx, sess, model, method, args, kwargs)
	if !errors.Is(err, ErrSessionExpired) {
		return raw, err
	}

	s.logger.Warn("erp session rejected, renewing",
		zap.Int64("uid", sess.UID),
		zap.Time("established_at", sess.EstablishedAt),
		zap.String("model", model),
		zap.String("method", method),
	)
	s.sessions.Invalidate(sess)
	if sess, err = s.sessions.Acquire(ctx); err != nil {
		return nil, err
	}
	return s.client.ExecuteKw(ctx, sess, model, method, args, kwargs)
}

// encodeDomain renders criteria as an Odoo domain: a list of
// [field, operator, value] triples, implicitly AND-ed.
func encodeDomain(criteria reconciliation.Criteria) []any {
	domain := make([]any, 0, len(criteria))
	for _, c := range criteria {
		domain = append(domain, []any{c.Field, string(c.Operator), c.Value})
	}
	return domain
}
