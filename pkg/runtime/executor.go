package runtime

import (
	"errors"
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/crypto"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Executor errors.
var (
	ErrNilTransaction   = errors.New("nil transaction")
	ErrNoInstructions   = errors.New("transaction has no instructions")
	ErrProgramNotFound  = errors.New("program not found")
	ErrIndexOutOfBounds = errors.New("account index out of bounds")
	ErrDataTooLarge     = errors.New("instruction data too large")
	ErrReadOnlyModified = errors.New("read-only account was modified")
	ErrSignatureInvalid = errors.New("transaction signature verification failed")
)

// Store is the account storage the executor commits against.
type Store interface {
	GetAccount(pubkey types.Pubkey) (*types.Account, error)
	SetAccount(pubkey types.Pubkey, account *types.Account) error
	DeleteAccount(pubkey types.Pubkey) error
}

// Executor executes transactions atomically against a Store.
//
// For each transaction the executor acquires every referenced account's
// write lock, loads the accounts into in-memory copies, runs each
// instruction through its registered program, and commits the copies back
// to the store only if every instruction succeeded. Accounts left with zero
// lamports and no data are reaped at commit; they cease to exist.
type Executor struct {
	store    Store
	registry *ProgramRegistry
	locks    *lockTable

	// VerifySignatures controls ed25519 signature checking before
	// execution. Disabled only in tests.
	VerifySignatures bool
}

// NewExecutor creates a transaction executor.
func NewExecutor(store Store, registry *ProgramRegistry) *Executor {
	return &Executor{
		store:            store,
		registry:         registry,
		locks:            newLockTable(),
		VerifySignatures: true,
	}
}

// ExecuteTransaction executes a transaction. The returned result carries
// execution logs; Err is set and Success false if the transaction aborted.
// The error return is reserved for store failures.
func (e *Executor) ExecuteTransaction(tx *types.Transaction) (*types.TransactionResult, error) {
	result := &types.TransactionResult{}

	if tx == nil {
		result.Err = ErrNilTransaction
		return result, nil
	}
	if len(tx.Message.Instructions) == 0 {
		result.Err = ErrNoInstructions
		return result, nil
	}

	if e.VerifySignatures {
		if err := crypto.VerifyTransaction(tx); err != nil {
			result.Err = fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
			return result, nil
		}
	}

	// Serialize against every other transaction touching these accounts.
	release := e.locks.Acquire(tx.Message.AccountKeys)
	defer release()

	infos, snapshots, err := e.loadAccounts(&tx.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	for i, compiled := range tx.Message.Instructions {
		instruction, ctxAccounts, err := e.decompileInstruction(&tx.Message, &compiled, infos)
		if err != nil {
			result.Err = fmt.Errorf("instruction %d: %w", i, err)
			return result, nil
		}

		program, ok := e.registry.Get(instruction.ProgramID)
		if !ok {
			result.Err = fmt.Errorf("%w: %s", ErrProgramNotFound, instruction.ProgramID)
			return result, nil
		}

		ctx := NewExecutionContext(instruction.ProgramID, ctxAccounts, instruction.Data)
		err = program.Execute(ctx, instruction)
		result.Logs = append(result.Logs, ctx.Logs()...)
		if err != nil {
			result.Err = fmt.Errorf("instruction %d failed: %w", i, err)
			return result, nil
		}
	}

	if err := e.commit(infos, snapshots); err != nil {
		if errors.Is(err, ErrReadOnlyModified) {
			result.Err = err
			return result, nil
		}
		return nil, err
	}

	result.Success = true
	return result, nil
}

// loadAccounts loads every account the message references. Missing accounts
// load as empty system-owned accounts. Snapshots record pre-execution state
// for read-only enforcement and existence tracking.
func (e *Executor) loadAccounts(msg *types.Message) ([]*AccountInfo, map[types.Pubkey]*types.Account, error) {
	infos := make([]*AccountInfo, len(msg.AccountKeys))
	snapshots := make(map[types.Pubkey]*types.Account, len(msg.AccountKeys))

	for i, pubkey := range msg.AccountKeys {
		account, err := e.store.GetAccount(pubkey)
		if err != nil {
			return nil, nil, err
		}
		snapshots[pubkey] = account // nil if the account does not exist

		if account == nil {
			account = types.NewAccount(0, types.SystemProgramID)
		}

		lamports := uint64(account.Lamports)
		infos[i] = &AccountInfo{
			Pubkey:     pubkey,
			Lamports:   &lamports,
			Data:       account.Data,
			Owner:      account.Owner,
			IsSigner:   msg.IsSigner(i),
			IsWritable: msg.IsWritable(i),
		}
	}

	return infos, snapshots, nil
}

// decompileInstruction resolves a compiled instruction's indices against the
// loaded accounts. The returned context accounts alias the shared loaded
// copies so mutations are visible to later instructions.
func (e *Executor) decompileInstruction(msg *types.Message, compiled *types.CompiledInstruction, infos []*AccountInfo) (*types.Instruction, []*AccountInfo, error) {
	if int(compiled.ProgramIDIndex) >= len(msg.AccountKeys) {
		return nil, nil, fmt.Errorf("%w: program id index %d", ErrIndexOutOfBounds, compiled.ProgramIDIndex)
	}
	if len(compiled.Data) > MaxInstructionData {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, len(compiled.Data))
	}

	metas := make([]types.AccountMeta, len(compiled.AccountIndices))
	ctxAccounts := make([]*AccountInfo, len(compiled.AccountIndices))
	for i, idx := range compiled.AccountIndices {
		if int(idx) >= len(infos) {
			return nil, nil, fmt.Errorf("%w: account index %d", ErrIndexOutOfBounds, idx)
		}
		info := infos[idx]
		metas[i] = types.AccountMeta{
			Pubkey:     info.Pubkey,
			IsSigner:   info.IsSigner,
			IsWritable: info.IsWritable,
		}
		ctxAccounts[i] = info
	}

	return &types.Instruction{
		ProgramID: msg.AccountKeys[compiled.ProgramIDIndex],
		Accounts:  metas,
		Data:      compiled.Data,
	}, ctxAccounts, nil
}

// commit writes mutated accounts back to the store. Emptied accounts are
// deleted; read-only accounts must be byte-identical to their snapshot.
func (e *Executor) commit(infos []*AccountInfo, snapshots map[types.Pubkey]*types.Account) error {
	for _, info := range infos {
		before := snapshots[info.Pubkey]

		if !info.IsWritable {
			if modified(before, info) {
				return fmt.Errorf("%w: %s", ErrReadOnlyModified, info.Pubkey)
			}
			continue
		}

		if info.IsEmpty() {
			if before != nil {
				if err := e.store.DeleteAccount(info.Pubkey); err != nil {
					return err
				}
			}
			continue
		}

		after := &types.Account{
			Lamports: types.Lamports(*info.Lamports),
			Data:     info.Data,
			Owner:    info.Owner,
		}
		if before != nil && accountsEqual(before, after) {
			continue
		}
		if err := e.store.SetAccount(info.Pubkey, after); err != nil {
			return err
		}
	}
	return nil
}

func modified(before *types.Account, info *AccountInfo) bool {
	if before == nil {
		return !info.IsEmpty()
	}
	after := &types.Account{
		Lamports: types.Lamports(*info.Lamports),
		Data:     info.Data,
		Owner:    info.Owner,
	}
	return !accountsEqual(before, after)
}

func accountsEqual(a, b *types.Account) bool {
	if a.Lamports != b.Lamports || a.Owner != b.Owner {
		return false
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}
