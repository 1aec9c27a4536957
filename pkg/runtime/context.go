// Package runtime implements the host ledger for the escrow node: account
// loading, per-account write locking, atomic transaction execution, and
// program-derived address computation.
//
// Every transaction executes all-or-nothing: programs mutate in-memory
// copies of the referenced accounts, and the executor commits the copies to
// the store only if every instruction succeeds. A failed instruction aborts
// the transaction with no observable state change.
package runtime

import (
	"errors"
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Execution context errors.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNotWritable  = errors.New("account is not writable")
	ErrAccountNotSigner    = errors.New("account is not a signer")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAccountIndex = errors.New("invalid account index")
)

// Execution limits.
const (
	MaxLogMessages      = 64
	MaxLogMessageLength = 10000
	MaxInstructionData  = 1232
)

// AccountInfo is the view of one account a program executes against.
// Mutations apply to this copy; the executor commits them only when the
// whole transaction succeeds.
type AccountInfo struct {
	Pubkey     types.Pubkey
	Lamports   *uint64
	Data       []byte
	Owner      types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Clone creates a deep copy of AccountInfo.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	lamports := *a.Lamports
	clone := &AccountInfo{
		Pubkey:     a.Pubkey,
		Lamports:   &lamports,
		Owner:      a.Owner,
		IsSigner:   a.IsSigner,
		IsWritable: a.IsWritable,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// IsEmpty returns true if the account holds no lamports and no data.
func (a *AccountInfo) IsEmpty() bool {
	return *a.Lamports == 0 && len(a.Data) == 0
}

// ExecutionContext holds the state one instruction executes against.
type ExecutionContext struct {
	// ProgramID is the program being executed.
	ProgramID types.Pubkey

	// Accounts are the accounts named by the instruction, in order.
	Accounts []*AccountInfo

	// InstructionData is the raw instruction payload.
	InstructionData []byte

	accountIndex map[types.Pubkey]int
	logs         []string
}

// NewExecutionContext creates an execution context for one instruction.
func NewExecutionContext(programID types.Pubkey, accounts []*AccountInfo, instructionData []byte) *ExecutionContext {
	ctx := &ExecutionContext{
		ProgramID:       programID,
		Accounts:        accounts,
		InstructionData: instructionData,
		accountIndex:    make(map[types.Pubkey]int, len(accounts)),
		logs:            make([]string, 0, 8),
	}
	for i, acc := range accounts {
		if _, ok := ctx.accountIndex[acc.Pubkey]; !ok {
			ctx.accountIndex[acc.Pubkey] = i
		}
	}
	return ctx
}

// GetAccount returns an account by pubkey.
func (ctx *ExecutionContext) GetAccount(pubkey types.Pubkey) (*AccountInfo, error) {
	idx, ok := ctx.accountIndex[pubkey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	return ctx.Accounts[idx], nil
}

// GetAccountByIndex returns an account by its position in the instruction's
// account list.
func (ctx *ExecutionContext) GetAccountByIndex(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(ctx.Accounts) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountIndex, index)
	}
	return ctx.Accounts[index], nil
}

// AccountCount returns the number of accounts.
func (ctx *ExecutionContext) AccountCount() int {
	return len(ctx.Accounts)
}

// AddLog adds a program log message. Logs past the limit are dropped.
func (ctx *ExecutionContext) AddLog(message string) {
	if len(ctx.logs) >= MaxLogMessages {
		return
	}
	if len(message) > MaxLogMessageLength {
		message = message[:MaxLogMessageLength]
	}
	ctx.logs = append(ctx.logs, message)
}

// Logf formats and adds a program log message.
func (ctx *ExecutionContext) Logf(format string, args ...any) {
	ctx.AddLog(fmt.Sprintf(format, args...))
}

// Logs returns all log messages.
func (ctx *ExecutionContext) Logs() []string {
	logs := make([]string, len(ctx.logs))
	copy(logs, ctx.logs)
	return logs
}

// TransferLamports moves lamports between two accounts in the context.
// Both accounts must be writable and the source must cover the amount.
func (ctx *ExecutionContext) TransferLamports(from, to *AccountInfo, amount uint64) error {
	if !from.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, from.Pubkey)
	}
	if !to.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, to.Pubkey)
	}
	if *from.Lamports < amount {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, amount, *from.Lamports)
	}

	*from.Lamports -= amount
	*to.Lamports += amount
	return nil
}
