package erp

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	serviceCommon = "common"
	serviceObject = "object"
)

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error reported by the Odoo server.
type RPCError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    RPCErrorData `json:"data"`
}

// RPCErrorData carries the server side exception.
type RPCErrorData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Debug   string `json:"debug,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	msg := e.Data.Message
	if msg == "" {
		msg = e.Message
	}
	if e.Data.Name != "" {
		return fmt.Sprintf("odoo %d %s: %s", e.Code, e.Data.Name, msg)
	}
	return fmt.Sprintf("odoo %d: %s", e.Code, msg)
}

// sessionExpired reports whether the server rejected the credentials of an
// established session.
func (e *RPCError) sessionExpired() bool {
	return e.Code == 100 ||
		strings.Contains(e.Data.Name, "SessionExpired") ||
		strings.Contains(e.Data.Name, "AccessDenied")
}

func newRequest(id int64, service, method string, args ...any) rpcRequest {
	if args == nil {
		args = []any{}
	}
	return rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      id,
	}
}

// newExecuteKwRequest builds an object/execute_kw call.
func newExecuteKwRequest(id int64, sess *Session, password, model, method string, args []any, kwargs map[string]any) rpcRequest {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return newRequest(id, serviceObject, "execute_kw",
		sess.Database, sess.UID, password, model, method, args, kwargs)
}
