package rpc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kevredlabs/ro-sham-bo/pkg/accounts"
	"github.com/kevredlabs/ro-sham-bo/pkg/metrics"
	"github.com/kevredlabs/ro-sham-bo/pkg/programs/escrow"
	"github.com/kevredlabs/ro-sham-bo/pkg/runtime"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Version reported by getVersion.
const Version = "0.1.0"

// blockhashWindow is how many recent blockhashes a transaction may
// reference. Older blockhashes are rejected, which bounds how long a
// signed transaction stays replayable.
const blockhashWindow = 150

// Handler is the function signature for RPC method handlers.
type Handler func(params json.RawMessage) (interface{}, *RPCError)

// Handlers routes RPC methods to node state: the account store, the
// transaction executor, and the escrow program for record lookups.
type Handlers struct {
	store    accounts.Store
	executor *runtime.Executor
	program  *escrow.Program
	handlers map[string]Handler
	metrics  *metrics.Metrics

	mu        sync.RWMutex
	slot      uint64
	blockhash types.Hash
	recent    []types.Hash

	// processed maps a committed transaction signature to the slot it was
	// claimed at; entries expire with the blockhash window.
	processed    map[types.Signature]uint64
	processedAge []processedEntry

	// Faucet enables requestAirdrop. Development only.
	Faucet bool
}

// NewHandlers creates the RPC handler set.
func NewHandlers(store accounts.Store, executor *runtime.Executor, program *escrow.Program) *Handlers {
	genesis := types.SHA256([]byte("genesis"))
	h := &Handlers{
		store:     store,
		executor:  executor,
		program:   program,
		handlers:  make(map[string]Handler),
		blockhash: genesis,
		recent:    []types.Hash{genesis},
		processed: make(map[types.Signature]uint64),
	}
	h.registerHandlers()
	return h
}

type processedEntry struct {
	sig  types.Signature
	slot uint64
}

func (h *Handlers) registerHandlers() {
	h.handlers["getAccountInfo"] = h.handleGetAccountInfo
	h.handlers["getBalance"] = h.handleGetBalance
	h.handlers["getGameEscrow"] = h.handleGetGameEscrow
	h.handlers["getLatestBlockhash"] = h.handleGetLatestBlockhash
	h.handlers["getHealth"] = h.handleGetHealth
	h.handlers["getVersion"] = h.handleGetVersion
	h.handlers["sendTransaction"] = h.handleSendTransaction
	h.handlers["requestAirdrop"] = h.handleRequestAirdrop
}

// GetHandler returns the handler for a method, or nil.
func (h *Handlers) GetHandler(method string) Handler {
	return h.handlers[method]
}

// Slot returns the current slot.
func (h *Handlers) Slot() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.slot
}

// SetMetrics attaches a metrics collector. Must be called before the
// server starts serving requests.
func (h *Handlers) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

// SetSlot overrides the current slot, used when resuming from a snapshot.
func (h *Handlers) SetSlot(slot uint64) {
	h.mu.Lock()
	h.slot = slot
	h.mu.Unlock()
}

// advanceSlot bumps the slot, rotates the blockhash after a commit, and
// expires replay-guard entries that fell out of the blockhash window.
func (h *Handlers) advanceSlot() {
	h.mu.Lock()
	h.slot++
	h.blockhash = types.SHA256(h.blockhash[:])
	h.recent = append(h.recent, h.blockhash)
	if len(h.recent) > blockhashWindow {
		h.recent = h.recent[len(h.recent)-blockhashWindow:]
	}
	for len(h.processedAge) > 0 && h.processedAge[0].slot+blockhashWindow < h.slot {
		entry := h.processedAge[0]
		h.processedAge = h.processedAge[1:]
		if slot, ok := h.processed[entry.sig]; ok && slot == entry.slot {
			delete(h.processed, entry.sig)
		}
	}
	h.mu.Unlock()
}

// isRecentBlockhash reports whether hash is inside the acceptance window.
func (h *Handlers) isRecentBlockhash(hash types.Hash) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.recent {
		if r == hash {
			return true
		}
	}
	return false
}

// claimSignature marks a signature as in flight. It returns false if the
// signature was already claimed, which rejects verbatim replays.
func (h *Handlers) claimSignature(sig types.Signature) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.processed[sig]; ok {
		return false
	}
	h.processed[sig] = h.slot
	h.processedAge = append(h.processedAge, processedEntry{sig: sig, slot: h.slot})
	return true
}

// releaseSignature forgets a claim after a failed execution so the
// transaction can be resubmitted.
func (h *Handlers) releaseSignature(sig types.Signature) {
	h.mu.Lock()
	delete(h.processed, sig)
	h.mu.Unlock()
}

func (h *Handlers) currentBlockhash() types.Hash {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.blockhash
}

func parsePubkeyParam(params json.RawMessage) (types.Pubkey, []json.RawMessage, *RPCError) {
	var rawParams []json.RawMessage
	if err := json.Unmarshal(params, &rawParams); err != nil {
		return types.Pubkey{}, nil, NewRPCError(InvalidParams, "invalid params: expected array")
	}
	if len(rawParams) < 1 {
		return types.Pubkey{}, nil, NewRPCError(InvalidParams, "missing pubkey parameter")
	}
	var pubkeyStr string
	if err := json.Unmarshal(rawParams[0], &pubkeyStr); err != nil {
		return types.Pubkey{}, nil, NewRPCError(InvalidParams, "invalid pubkey parameter")
	}
	pubkey, err := types.PubkeyFromBase58(pubkeyStr)
	if err != nil {
		return types.Pubkey{}, nil, NewRPCError(InvalidParams, fmt.Sprintf("invalid pubkey: %v", err))
	}
	return pubkey, rawParams, nil
}

// handleGetAccountInfo returns the raw account at a pubkey.
// Params: [pubkey]
func (h *Handlers) handleGetAccountInfo(params json.RawMessage) (interface{}, *RPCError) {
	pubkey, _, rpcErr := parsePubkeyParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	account, err := h.store.GetAccount(pubkey)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to get account: %v", err))
	}

	result := ContextualResult{Context: Context{Slot: h.Slot()}}
	if account == nil {
		return result, nil
	}
	result.Value = AccountInfoResult{
		Lamports: uint64(account.Lamports),
		Data:     []string{base64.StdEncoding.EncodeToString(account.Data), "base64"},
		Owner:    account.Owner.String(),
	}
	return result, nil
}

// handleGetBalance returns the lamport balance at a pubkey. Missing
// accounts read as zero.
// Params: [pubkey]
func (h *Handlers) handleGetBalance(params json.RawMessage) (interface{}, *RPCError) {
	pubkey, _, rpcErr := parsePubkeyParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	account, err := h.store.GetAccount(pubkey)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to get account: %v", err))
	}

	var lamports uint64
	if account != nil {
		lamports = uint64(account.Lamports)
	}
	return ContextualResult{
		Context: Context{Slot: h.Slot()},
		Value:   lamports,
	}, nil
}

// handleGetGameEscrow looks up a game escrow record by creator and game id
// and returns its decoded state plus the vault balance.
// Params: [creator, gameIdHex]
func (h *Handlers) handleGetGameEscrow(params json.RawMessage) (interface{}, *RPCError) {
	creator, rawParams, rpcErr := parsePubkeyParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if len(rawParams) < 2 {
		return nil, NewRPCError(InvalidParams, "missing gameId parameter")
	}
	var gameIDStr string
	if err := json.Unmarshal(rawParams[1], &gameIDStr); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid gameId parameter")
	}
	gameID, err := types.GameIDFromHex(gameIDStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("invalid gameId: %v", err))
	}

	recordAddr, _, err := escrow.DeriveRecordAddress(h.program.ProgramID, creator, gameID)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("derivation failed: %v", err))
	}

	record, err := h.store.GetAccount(recordAddr)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to get account: %v", err))
	}
	if record == nil {
		return nil, NewRPCError(KeyNotFound, fmt.Sprintf("no game escrow at %s", recordAddr))
	}

	state, err := escrow.DeserializeRecord(record.Data)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("record does not decode: %v", err))
	}

	vaultAddr, _, err := escrow.DeriveVaultAddress(h.program.ProgramID, recordAddr)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("derivation failed: %v", err))
	}
	var vaultBalance uint64
	if vault, err := h.store.GetAccount(vaultAddr); err == nil && vault != nil {
		vaultBalance = uint64(vault.Lamports)
	}

	result := GameEscrowResult{
		Address:         recordAddr.String(),
		Vault:           vaultAddr.String(),
		Creator:         state.Creator.String(),
		GameID:          state.GameID.String(),
		AmountPerPlayer: state.AmountPerPlayer,
		Status:          state.Status.String(),
		VaultBalance:    vaultBalance,
	}
	if state.Status == escrow.StatusJoined {
		result.Joiner = state.Joiner.String()
	}
	return ContextualResult{
		Context: Context{Slot: h.Slot()},
		Value:   result,
	}, nil
}

// handleGetLatestBlockhash returns the blockhash new transactions should
// reference.
func (h *Handlers) handleGetLatestBlockhash(json.RawMessage) (interface{}, *RPCError) {
	hash := h.currentBlockhash()
	return ContextualResult{
		Context: Context{Slot: h.Slot()},
		Value:   BlockhashResult{Blockhash: hash.String()},
	}, nil
}

func (h *Handlers) handleGetHealth(json.RawMessage) (interface{}, *RPCError) {
	return "ok", nil
}

func (h *Handlers) handleGetVersion(json.RawMessage) (interface{}, *RPCError) {
	return VersionResult{Version: Version}, nil
}

// handleSendTransaction executes a base64-encoded signed transaction.
// Params: [base64Transaction]
func (h *Handlers) handleSendTransaction(params json.RawMessage) (interface{}, *RPCError) {
	var rawParams []json.RawMessage
	if err := json.Unmarshal(params, &rawParams); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid params: expected array")
	}
	if len(rawParams) < 1 {
		return nil, NewRPCError(InvalidParams, "missing transaction parameter")
	}
	var txStr string
	if err := json.Unmarshal(rawParams[0], &txStr); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid transaction parameter")
	}

	wire, err := base64.StdEncoding.DecodeString(txStr)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("transaction is not base64: %v", err))
	}
	tx, err := types.DeserializeTransaction(wire)
	if err != nil {
		return nil, NewRPCError(InvalidParams, fmt.Sprintf("transaction does not decode: %v", err))
	}

	if !h.isRecentBlockhash(tx.Message.RecentBlockhash) {
		return nil, NewRPCError(SendTransactionError, "blockhash not found or expired")
	}
	sig := tx.ID()
	if !h.claimSignature(sig) {
		return nil, NewRPCError(SendTransactionError, "transaction already processed")
	}

	treasuryBefore := h.balanceOf(h.program.Treasury)

	start := time.Now()
	result, err := h.executor.ExecuteTransaction(tx)
	if h.metrics != nil {
		h.metrics.TransactionDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		h.releaseSignature(sig)
		if h.metrics != nil {
			h.metrics.TransactionsFailed.Inc()
		}
		return nil, NewRPCError(InternalError, fmt.Sprintf("execution failed: %v", err))
	}
	if !result.Success {
		h.releaseSignature(sig)
		if h.metrics != nil {
			h.metrics.TransactionsFailed.Inc()
		}
		return nil, NewRPCErrorWithData(SendTransactionError, result.Err.Error(), result.Logs)
	}

	h.advanceSlot()
	h.recordCommit(tx, treasuryBefore)
	return SendTransactionResult{
		Signature: sig.String(),
		Logs:      result.Logs,
	}, nil
}

func (h *Handlers) balanceOf(pubkey types.Pubkey) types.Lamports {
	account, err := h.store.GetAccount(pubkey)
	if err != nil || account == nil {
		return 0
	}
	return account.Lamports
}

// recordCommit updates metrics after a committed transaction. Game
// counters are keyed off the escrow instruction discriminators; fees are
// measured as the treasury balance delta across the transaction.
func (h *Handlers) recordCommit(tx *types.Transaction, treasuryBefore types.Lamports) {
	if h.metrics == nil {
		return
	}
	h.metrics.TransactionsProcessed.Inc()

	for _, ix := range tx.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			continue
		}
		if tx.Message.AccountKeys[ix.ProgramIDIndex] != types.EscrowProgramID {
			continue
		}
		disc, err := escrow.ParseDiscriminator(ix.Data)
		if err != nil {
			continue
		}
		switch disc {
		case escrow.CreateGameDiscriminator:
			h.metrics.GamesCreated.Inc()
		case escrow.JoinGameDiscriminator:
			h.metrics.GamesJoined.Inc()
		case escrow.ResolveDiscriminator:
			h.metrics.GamesResolved.Inc()
		case escrow.CancelDiscriminator:
			h.metrics.GamesCancelled.Inc()
		case escrow.RefundDiscriminator:
			h.metrics.GamesRefunded.Inc()
		}
	}

	if after := h.balanceOf(h.program.Treasury); after > treasuryBefore {
		h.metrics.FeesCollected.Add(uint64(after - treasuryBefore))
	}

	h.metrics.CurrentSlot.SetUint64(h.Slot())
	h.metrics.AccountsCount.SetUint64(h.store.Count())
}

// handleRequestAirdrop credits lamports to an account. Only available
// when the faucet is enabled.
// Params: [pubkey, lamports]
func (h *Handlers) handleRequestAirdrop(params json.RawMessage) (interface{}, *RPCError) {
	if !h.Faucet {
		return nil, NewRPCError(MethodNotFound, "airdrops are disabled")
	}

	pubkey, rawParams, rpcErr := parsePubkeyParam(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if len(rawParams) < 2 {
		return nil, NewRPCError(InvalidParams, "missing lamports parameter")
	}
	var lamports uint64
	if err := json.Unmarshal(rawParams[1], &lamports); err != nil {
		return nil, NewRPCError(InvalidParams, "invalid lamports parameter")
	}

	account, err := h.store.GetAccount(pubkey)
	if err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to get account: %v", err))
	}
	if account == nil {
		account = types.NewAccount(0, types.SystemProgramID)
	}
	account.Lamports += types.Lamports(lamports)
	if err := h.store.SetAccount(pubkey, account); err != nil {
		return nil, NewRPCError(InternalError, fmt.Sprintf("failed to store account: %v", err))
	}

	h.advanceSlot()
	return ContextualResult{
		Context: Context{Slot: h.Slot()},
		Value:   uint64(account.Lamports),
	}, nil
}
