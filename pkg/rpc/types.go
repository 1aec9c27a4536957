// Package rpc provides the JSON-RPC 2.0 interface of the escrow node.
package rpc

import "encoding/json"

// JSONRPCVersion is the protocol version accepted and emitted.
const JSONRPCVersion = "2.0"

// Standard JSON-RPC 2.0 error codes, plus node-specific ones.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	SendTransactionError = -32002
	KeyNotFound          = -32010
	UnsupportedEncoding  = -32011
)

// RPCRequest represents a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// RPCResponse represents a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// NewRPCError creates an RPC error.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

// NewRPCErrorWithData creates an RPC error carrying extra data.
func NewRPCErrorWithData(code int, message string, data interface{}) *RPCError {
	return &RPCError{Code: code, Message: message, Data: data}
}

// Context carries the slot a response was produced at.
type Context struct {
	Slot uint64 `json:"slot"`
}

// ContextualResult wraps a result with its context.
type ContextualResult struct {
	Context Context     `json:"context"`
	Value   interface{} `json:"value"`
}

// AccountInfoResult is the value of getAccountInfo.
type AccountInfoResult struct {
	Lamports uint64   `json:"lamports"`
	Data     []string `json:"data"` // [base64 data, "base64"]
	Owner    string   `json:"owner"`
}

// GameEscrowResult is the value of getGameEscrow.
type GameEscrowResult struct {
	Address         string `json:"address"`
	Vault           string `json:"vault"`
	Creator         string `json:"creator"`
	GameID          string `json:"gameId"`
	Joiner          string `json:"joiner,omitempty"`
	AmountPerPlayer uint64 `json:"amountPerPlayer"`
	Status          string `json:"status"`
	VaultBalance    uint64 `json:"vaultBalance"`
}

// BlockhashResult is the value of getLatestBlockhash.
type BlockhashResult struct {
	Blockhash string `json:"blockhash"`
}

// SendTransactionResult carries a committed transaction's signature and logs.
type SendTransactionResult struct {
	Signature string   `json:"signature"`
	Logs      []string `json:"logs,omitempty"`
}

// VersionResult is the value of getVersion.
type VersionResult struct {
	Version string `json:"escrow-node"`
}
