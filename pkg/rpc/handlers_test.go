package rpc

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/kevredlabs/ro-sham-bo/pkg/accounts"
	"github.com/kevredlabs/ro-sham-bo/pkg/crypto"
	"github.com/kevredlabs/ro-sham-bo/pkg/programs/escrow"
	"github.com/kevredlabs/ro-sham-bo/pkg/programs/system"
	"github.com/kevredlabs/ro-sham-bo/pkg/runtime"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

func newTestHandlers(t *testing.T) (*Handlers, *accounts.MemoryStore, *escrow.Program) {
	t.Helper()

	store := accounts.NewMemoryStore()
	authority := types.SHA256([]byte("authority"))
	treasury := types.SHA256([]byte("treasury"))
	program := escrow.New(types.Pubkey(authority), types.Pubkey(treasury))

	registry := runtime.NewProgramRegistry()
	registry.Register(types.SystemProgramID, "system", system.New())
	registry.Register(program.ProgramID, "escrow", program)

	executor := runtime.NewExecutor(store, registry)
	h := NewHandlers(store, executor, program)
	h.Faucet = true
	return h, store, program
}

func call(t *testing.T, h *Handlers, method string, params string) (interface{}, *RPCError) {
	t.Helper()
	handler := h.GetHandler(method)
	if handler == nil {
		t.Fatalf("no handler for %s", method)
	}
	return handler(json.RawMessage(params))
}

func TestGetBalance(t *testing.T) {
	h, store, _ := newTestHandlers(t)

	pubkey := types.SHA256([]byte("someone"))
	if err := store.SetAccount(types.Pubkey(pubkey), types.NewAccount(123_456, types.SystemProgramID)); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}

	result, rpcErr := call(t, h, "getBalance", fmt.Sprintf(`["%s"]`, types.Pubkey(pubkey)))
	if rpcErr != nil {
		t.Fatalf("getBalance failed: %v", rpcErr)
	}
	if result.(ContextualResult).Value.(uint64) != 123_456 {
		t.Errorf("balance = %v, want 123456", result.(ContextualResult).Value)
	}
}

func TestGetBalance_MissingAccountIsZero(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	pubkey := types.SHA256([]byte("nobody"))
	result, rpcErr := call(t, h, "getBalance", fmt.Sprintf(`["%s"]`, types.Pubkey(pubkey)))
	if rpcErr != nil {
		t.Fatalf("getBalance failed: %v", rpcErr)
	}
	if result.(ContextualResult).Value.(uint64) != 0 {
		t.Error("missing account should read as zero balance")
	}
}

func TestGetAccountInfo_Missing(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	pubkey := types.SHA256([]byte("nobody"))
	result, rpcErr := call(t, h, "getAccountInfo", fmt.Sprintf(`["%s"]`, types.Pubkey(pubkey)))
	if rpcErr != nil {
		t.Fatalf("getAccountInfo failed: %v", rpcErr)
	}
	if result.(ContextualResult).Value != nil {
		t.Error("missing account should return null value")
	}
}

func TestRequestAirdrop_Disabled(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	h.Faucet = false

	pubkey := types.SHA256([]byte("someone"))
	_, rpcErr := call(t, h, "requestAirdrop", fmt.Sprintf(`["%s", 1000]`, types.Pubkey(pubkey)))
	if rpcErr == nil {
		t.Error("airdrop should be rejected when the faucet is disabled")
	}
}

func TestSendTransaction_CreateAndReadBack(t *testing.T) {
	h, _, program := newTestHandlers(t)

	creator, err := crypto.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}

	_, rpcErr := call(t, h, "requestAirdrop", fmt.Sprintf(`["%s", 10000000000]`, creator.Pubkey()))
	if rpcErr != nil {
		t.Fatalf("airdrop failed: %v", rpcErr)
	}

	gameID, err := types.GameIDFromHex("00112233445566778899aabbccddeeff")
	if err != nil {
		t.Fatalf("GameIDFromHex failed: %v", err)
	}
	instruction, err := escrow.NewCreateGameInstruction(program.ProgramID, creator.Pubkey(), gameID, 1_000_000_000)
	if err != nil {
		t.Fatalf("NewCreateGameInstruction failed: %v", err)
	}
	tx, err := crypto.NewSignedTransaction(h.currentBlockhash(), []types.Instruction{instruction}, creator)
	if err != nil {
		t.Fatalf("NewSignedTransaction failed: %v", err)
	}

	wire := base64.StdEncoding.EncodeToString(tx.Serialize())
	result, rpcErr := call(t, h, "sendTransaction", fmt.Sprintf(`["%s"]`, wire))
	if rpcErr != nil {
		t.Fatalf("sendTransaction failed: %v (%v)", rpcErr, rpcErr.Data)
	}
	if result.(SendTransactionResult).Signature == "" {
		t.Error("committed transaction should report its signature")
	}

	// read the game back through the query surface
	params := fmt.Sprintf(`["%s", "%s"]`, creator.Pubkey(), gameID)
	result, rpcErr = call(t, h, "getGameEscrow", params)
	if rpcErr != nil {
		t.Fatalf("getGameEscrow failed: %v", rpcErr)
	}
	game := result.(ContextualResult).Value.(GameEscrowResult)
	if game.Status != "created" {
		t.Errorf("status = %s, want created", game.Status)
	}
	if game.AmountPerPlayer != 1_000_000_000 {
		t.Errorf("stake = %d, want 1000000000", game.AmountPerPlayer)
	}
	if game.VaultBalance != 1_000_000_000 {
		t.Errorf("vault balance = %d, want 1000000000", game.VaultBalance)
	}
}

func TestSendTransaction_RejectsStaleBlockhash(t *testing.T) {
	h, store, _ := newTestHandlers(t)

	creator, err := crypto.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}
	if _, rpcErr := call(t, h, "requestAirdrop", fmt.Sprintf(`["%s", 10000000000]`, creator.Pubkey())); rpcErr != nil {
		t.Fatalf("airdrop failed: %v", rpcErr)
	}

	payee := types.Pubkey(types.SHA256([]byte("payee")))
	transfer := system.NewTransferInstruction(creator.Pubkey(), payee, 1000)
	tx, err := crypto.NewSignedTransaction(types.SHA256([]byte("never issued")), []types.Instruction{transfer}, creator)
	if err != nil {
		t.Fatalf("NewSignedTransaction failed: %v", err)
	}

	wire := base64.StdEncoding.EncodeToString(tx.Serialize())
	_, rpcErr := call(t, h, "sendTransaction", fmt.Sprintf(`["%s"]`, wire))
	if rpcErr == nil || rpcErr.Code != SendTransactionError {
		t.Fatalf("rpcErr = %v, want SendTransactionError for unknown blockhash", rpcErr)
	}
	if store.HasAccount(payee) {
		t.Error("rejected transaction must not move lamports")
	}
}

func TestSendTransaction_RejectsReplay(t *testing.T) {
	h, store, _ := newTestHandlers(t)

	creator, err := crypto.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair failed: %v", err)
	}
	if _, rpcErr := call(t, h, "requestAirdrop", fmt.Sprintf(`["%s", 10000000000]`, creator.Pubkey())); rpcErr != nil {
		t.Fatalf("airdrop failed: %v", rpcErr)
	}

	payee := types.Pubkey(types.SHA256([]byte("payee")))
	transfer := system.NewTransferInstruction(creator.Pubkey(), payee, 1000)
	tx, err := crypto.NewSignedTransaction(h.currentBlockhash(), []types.Instruction{transfer}, creator)
	if err != nil {
		t.Fatalf("NewSignedTransaction failed: %v", err)
	}
	wire := base64.StdEncoding.EncodeToString(tx.Serialize())

	if _, rpcErr := call(t, h, "sendTransaction", fmt.Sprintf(`["%s"]`, wire)); rpcErr != nil {
		t.Fatalf("first submission failed: %v", rpcErr)
	}

	// The identical signed bytes again: the blockhash is still inside the
	// window, so the signature cache must catch it.
	_, rpcErr := call(t, h, "sendTransaction", fmt.Sprintf(`["%s"]`, wire))
	if rpcErr == nil || rpcErr.Code != SendTransactionError {
		t.Fatalf("rpcErr = %v, want SendTransactionError for replayed transaction", rpcErr)
	}

	account, err := store.GetAccount(payee)
	if err != nil || account == nil {
		t.Fatalf("payee account missing: %v", err)
	}
	if account.Lamports != 1000 {
		t.Errorf("payee balance = %d, want 1000 (transfer applied once)", account.Lamports)
	}
}

func TestGetGameEscrow_NotFound(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	creator := types.SHA256([]byte("creator"))
	params := fmt.Sprintf(`["%s", "00112233445566778899aabbccddeeff"]`, types.Pubkey(creator))
	_, rpcErr := call(t, h, "getGameEscrow", params)
	if rpcErr == nil || rpcErr.Code != KeyNotFound {
		t.Errorf("rpcErr = %v, want KeyNotFound", rpcErr)
	}
}

func TestServer_HTTPRoundTrip(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	s := NewServer(DefaultServerConfig(), h)

	body := []byte(`{"jsonrpc":"2.0","method":"getHealth","id":1}`)
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleRequest(rec, req)

	var response RPCResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}
	if response.Error != nil {
		t.Fatalf("unexpected error: %v", response.Error)
	}
	if response.Result != "ok" {
		t.Errorf("result = %v, want ok", response.Result)
	}
}

func TestServer_RejectsUnknownMethod(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	s := NewServer(DefaultServerConfig(), h)

	body := []byte(`{"jsonrpc":"2.0","method":"mineBlock","id":1}`)
	req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleRequest(rec, req)

	var response RPCResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}
	if response.Error == nil || response.Error.Code != MethodNotFound {
		t.Errorf("error = %v, want MethodNotFound", response.Error)
	}
}
