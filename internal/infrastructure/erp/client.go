package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/erp/clinicsync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Errors reported by the Odoo client. They are wrapped in
// reconciliation.ErrRemoteService errors by the Store.
var (
	ErrAuthenticationFailed = errors.New("erp: authentication failed")
	ErrSessionExpired       = errors.New("erp: session expired")
	ErrUnavailable          = errors.New("erp: service unavailable")
	ErrBadResponse          = errors.New("erp: malformed response")
)

// Client is a thin Odoo JSON-RPC client. It holds no session state; callers
// pass the Session returned by Authenticate into every call.
type Client struct {
	config     *Config
	httpClient *http.Client
	seq        atomic.Int64
}

// NewClient creates a new Odoo client with the given configuration
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

// Authenticate logs in and returns a new session.
func (c *Client) Authenticate(ctx context.Context) (*Session, error) {
	req := newRequest(c.seq.Add(1), serviceCommon, "authenticate",
		c.config.Database, c.config.Username, c.config.Password, map[string]any{})

	raw, err := c.do(ctx, "authenticate", req)
	if err != nil {
		return nil, err
	}

	// the server answers false for bad credentials
	var uid int64
	if err := json.Unmarshal(raw, &uid); err != nil || uid <= 0 {
		return nil, fmt.Errorf("%w: user %q on database %q", ErrAuthenticationFailed, c.config.Username, c.config.Database)
	}
	return &Session{
		UID:           uid,
		Database:      c.config.Database,
		Login:         c.config.Username,
		EstablishedAt: time.Now(),
	}, nil
}

// ExecuteKw calls a model method with positional and keyword arguments and
// returns the raw result.
func (c *Client) ExecuteKw(
	ctx context.Context,
	sess *Session,
	model, method string,
	args []any,
	kwargs map[string]any,
) (json.RawMessage, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: no session", ErrSessionExpired)
	}
	req := newExecuteKwRequest(c.seq.Add(1), sess, c.config.Password, model, method, args, kwargs)
	return c.do(ctx, model+"."+method, req)
}

func (c *Client) do(ctx context.Context, operation string, rpc rpcRequest) (json.RawMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, "erp."+operation,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrRPCMethod, rpc.Params.Method),
	)
	defer span.End()

	body, err := json.Marshal(rpc)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("erp: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint(), bytes.NewReader(body))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("erp: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
		telemetry.RecordError(span, err)
		return nil, err
	}

	var out rpcResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if out.Error != nil {
		telemetry.RecordError(span, out.Error)
		if out.Error.sessionExpired() {
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, out.Error)
		}
		return nil, out.Error
	}
	return out.Result, nil
}
