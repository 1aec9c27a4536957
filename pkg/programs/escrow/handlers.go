package escrow

import (
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/runtime"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// loadRecord validates and decodes a supplied record account. A record
// that was destroyed (or never created) has no data and fails with
// ErrRecordNotFound; a record owned by another program is rejected.
func (p *Program) loadRecord(record *runtime.AccountInfo) (*GameEscrow, error) {
	if len(record.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, record.Pubkey)
	}
	if record.Owner != p.ProgramID {
		return nil, fmt.Errorf("%w: record owned by %s", ErrAddressMismatch, record.Owner)
	}
	return DeserializeRecord(record.Data)
}

// checkRecordAddress verifies the supplied record account sits at the
// address derived from the record's own contents.
func (p *Program) checkRecordAddress(record *runtime.AccountInfo, state *GameEscrow) error {
	expected, err := recordAddressForBump(p.ProgramID, state.Creator, state.GameID, state.Bump)
	if err != nil || expected != record.Pubkey {
		return fmt.Errorf("%w: record %s", ErrAddressMismatch, record.Pubkey)
	}
	return nil
}

// checkVaultAddress verifies the supplied vault account against the
// record's stored vault bump.
func (p *Program) checkVaultAddress(vault *runtime.AccountInfo, record types.Pubkey, bump uint8) error {
	expected, err := vaultAddressForBump(p.ProgramID, record, bump)
	if err != nil || expected != vault.Pubkey {
		return fmt.Errorf("%w: vault %s", ErrAddressMismatch, vault.Pubkey)
	}
	return nil
}

// closeRecord returns the record's rent to the recipient and releases its
// storage. Fund settlement happens before this, as its own explicit step;
// the emptied record is reaped when the transaction commits.
func closeRecord(ctx *runtime.ExecutionContext, record, recipient *runtime.AccountInfo) error {
	if err := ctx.TransferLamports(record, recipient, *record.Lamports); err != nil {
		return err
	}
	record.Data = nil
	record.Owner = types.SystemProgramID
	return nil
}

// handleCreateGame opens a game escrow and deposits the creator's stake.
// Account layout:
//
//	[0] creator (signer, writable)
//	[1] game escrow record (writable)
//	[2] vault (writable)
//	[3] system program
func (p *Program) handleCreateGame(ctx *runtime.ExecutionContext, inst *CreateGameInstruction) error {
	if ctx.AccountCount() < 4 {
		return fmt.Errorf("%w: CreateGame requires 4 accounts", ErrInvalidInstructionData)
	}

	creator, err := ctx.GetAccountByIndex(0)
	if err != nil {
		return err
	}
	if !creator.IsSigner {
		return fmt.Errorf("%w: creator", ErrAccountNotSigner)
	}
	if !creator.IsWritable {
		return fmt.Errorf("%w: creator", ErrAccountNotWritable)
	}

	record, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	vault, err := ctx.GetAccountByIndex(2)
	if err != nil {
		return err
	}
	if !record.IsWritable {
		return fmt.Errorf("%w: record", ErrAccountNotWritable)
	}
	if !vault.IsWritable {
		return fmt.Errorf("%w: vault", ErrAccountNotWritable)
	}

	if inst.Amount == 0 {
		return ErrInvalidAmount
	}

	expectedRecord, recordBump, err := DeriveRecordAddress(p.ProgramID, creator.Pubkey, inst.GameID)
	if err != nil {
		return err
	}
	if record.Pubkey != expectedRecord {
		return fmt.Errorf("%w: record %s, expected %s", ErrAddressMismatch, record.Pubkey, expectedRecord)
	}
	expectedVault, vaultBump, err := DeriveVaultAddress(p.ProgramID, record.Pubkey)
	if err != nil {
		return err
	}
	if vault.Pubkey != expectedVault {
		return fmt.Errorf("%w: vault %s, expected %s", ErrAddressMismatch, vault.Pubkey, expectedVault)
	}

	// Address allocation is exclusive: a live record at this address
	// means the (creator, game_id) pair is already in use.
	if *record.Lamports > 0 || len(record.Data) > 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, record.Pubkey)
	}

	rent := uint64(types.RentExemptMinimum(RecordSize))
	if *creator.Lamports < rent+inst.Amount {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, rent+inst.Amount, *creator.Lamports)
	}

	// Allocate the record: fund its rent from the creator and take
	// ownership.
	if err := ctx.TransferLamports(creator, record, rent); err != nil {
		return err
	}
	record.Owner = p.ProgramID

	state := &GameEscrow{
		Creator:         creator.Pubkey,
		GameID:          inst.GameID,
		AmountPerPlayer: inst.Amount,
		Bump:            recordBump,
		VaultBump:       vaultBump,
		Status:          StatusCreated,
	}
	record.Data = state.Serialize()

	// Deposit the stake. The vault stays system-owned and holds exactly
	// the deposits.
	if err := ctx.TransferLamports(creator, vault, inst.Amount); err != nil {
		return err
	}

	ctx.Logf("game %s created by %s, stake %d", inst.GameID, creator.Pubkey, inst.Amount)
	return nil
}

// handleJoinGame deposits the second player's stake.
// Account layout:
//
//	[0] joiner (signer, writable)
//	[1] game escrow record (writable)
//	[2] vault (writable)
func (p *Program) handleJoinGame(ctx *runtime.ExecutionContext) error {
	if ctx.AccountCount() < 3 {
		return fmt.Errorf("%w: JoinGame requires 3 accounts", ErrInvalidInstructionData)
	}

	joiner, err := ctx.GetAccountByIndex(0)
	if err != nil {
		return err
	}
	if !joiner.IsSigner {
		return fmt.Errorf("%w: joiner", ErrAccountNotSigner)
	}
	if !joiner.IsWritable {
		return fmt.Errorf("%w: joiner", ErrAccountNotWritable)
	}

	record, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	vault, err := ctx.GetAccountByIndex(2)
	if err != nil {
		return err
	}

	state, err := p.loadRecord(record)
	if err != nil {
		return err
	}
	if err := p.checkRecordAddress(record, state); err != nil {
		return err
	}
	if err := p.checkVaultAddress(vault, record.Pubkey, state.VaultBump); err != nil {
		return err
	}

	if state.Status != StatusCreated {
		return ErrJoinerAlreadySet
	}

	if err := ctx.TransferLamports(joiner, vault, state.AmountPerPlayer); err != nil {
		return err
	}

	state.Joiner = joiner.Pubkey
	state.Status = StatusJoined
	record.Data = state.Serialize()

	ctx.Logf("game %s joined by %s, pot %d", state.GameID, joiner.Pubkey, *vault.Lamports)
	return nil
}

// handleResolve settles a joined game: the fee goes to the treasury, the
// rest of the pot to the winner, and the record's rent back to the
// creator. The record and vault are destroyed.
// Account layout:
//
//	[0] resolver authority (signer)
//	[1] game escrow record (writable)
//	[2] vault (writable)
//	[3] winner destination (writable)
//	[4] creator (writable)
//	[5] treasury (writable)
func (p *Program) handleResolve(ctx *runtime.ExecutionContext, inst *ResolveInstruction) error {
	if ctx.AccountCount() < 6 {
		return fmt.Errorf("%w: Resolve requires 6 accounts", ErrInvalidInstructionData)
	}

	authority, err := ctx.GetAccountByIndex(0)
	if err != nil {
		return err
	}
	if !authority.IsSigner {
		return fmt.Errorf("%w: authority", ErrAccountNotSigner)
	}
	if authority.Pubkey != p.Authority {
		return fmt.Errorf("%w: %s is not the resolver authority", ErrUnauthorized, authority.Pubkey)
	}

	record, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	vault, err := ctx.GetAccountByIndex(2)
	if err != nil {
		return err
	}
	winnerDest, err := ctx.GetAccountByIndex(3)
	if err != nil {
		return err
	}
	creator, err := ctx.GetAccountByIndex(4)
	if err != nil {
		return err
	}
	treasury, err := ctx.GetAccountByIndex(5)
	if err != nil {
		return err
	}

	state, err := p.loadRecord(record)
	if err != nil {
		return err
	}
	if err := p.checkRecordAddress(record, state); err != nil {
		return err
	}
	if err := p.checkVaultAddress(vault, record.Pubkey, state.VaultBump); err != nil {
		return err
	}

	if state.Status != StatusJoined {
		return ErrNoJoiner
	}
	if inst.Winner != state.Creator && inst.Winner != state.Joiner {
		return fmt.Errorf("%w: %s", ErrInvalidWinner, inst.Winner)
	}
	if winnerDest.Pubkey != inst.Winner {
		return fmt.Errorf("%w: destination %s does not match winner", ErrInvalidWinner, winnerDest.Pubkey)
	}
	if creator.Pubkey != state.Creator {
		return fmt.Errorf("%w: creator %s", ErrAddressMismatch, creator.Pubkey)
	}
	if treasury.Pubkey != p.Treasury {
		return fmt.Errorf("%w: treasury %s", ErrAddressMismatch, treasury.Pubkey)
	}

	pot, err := Pot(state.AmountPerPlayer)
	if err != nil {
		return err
	}
	if *vault.Lamports < pot {
		return fmt.Errorf("%w: vault holds %d, pot is %d", ErrInsufficientFunds, *vault.Lamports, pot)
	}

	fee, payout := SplitPot(pot)
	if err := ctx.TransferLamports(vault, treasury, fee); err != nil {
		return err
	}
	if err := ctx.TransferLamports(vault, winnerDest, payout); err != nil {
		return err
	}
	// Sweep anything deposited into the vault outside the protocol, so the
	// vault always empties and gets reaped with the record.
	if err := ctx.TransferLamports(vault, winnerDest, *vault.Lamports); err != nil {
		return err
	}
	if err := closeRecord(ctx, record, creator); err != nil {
		return err
	}

	ctx.Logf("game %s resolved: winner %s payout %d, fee %d", state.GameID, inst.Winner, payout, fee)
	return nil
}

// handleCancel lets the creator reclaim the stake before anyone joins.
// The record and vault are destroyed.
// Account layout:
//
//	[0] creator (signer, writable)
//	[1] game escrow record (writable)
//	[2] vault (writable)
func (p *Program) handleCancel(ctx *runtime.ExecutionContext) error {
	if ctx.AccountCount() < 3 {
		return fmt.Errorf("%w: Cancel requires 3 accounts", ErrInvalidInstructionData)
	}

	creator, err := ctx.GetAccountByIndex(0)
	if err != nil {
		return err
	}
	if !creator.IsSigner {
		return fmt.Errorf("%w: creator", ErrAccountNotSigner)
	}
	if !creator.IsWritable {
		return fmt.Errorf("%w: creator", ErrAccountNotWritable)
	}

	record, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	vault, err := ctx.GetAccountByIndex(2)
	if err != nil {
		return err
	}

	state, err := p.loadRecord(record)
	if err != nil {
		return err
	}
	if err := p.checkRecordAddress(record, state); err != nil {
		return err
	}
	if err := p.checkVaultAddress(vault, record.Pubkey, state.VaultBump); err != nil {
		return err
	}

	if creator.Pubkey != state.Creator {
		return fmt.Errorf("%w: %s is not the game creator", ErrUnauthorized, creator.Pubkey)
	}
	if state.Status != StatusCreated {
		return ErrJoinerAlreadySet
	}

	if err := ctx.TransferLamports(vault, creator, *vault.Lamports); err != nil {
		return err
	}
	if err := closeRecord(ctx, record, creator); err != nil {
		return err
	}

	ctx.Logf("game %s cancelled by creator", state.GameID)
	return nil
}

// handleRefund returns both stakes when no winner can be determined. No
// fee is taken. The record and vault are destroyed.
// Account layout:
//
//	[0] resolver authority (signer)
//	[1] game escrow record (writable)
//	[2] vault (writable)
//	[3] creator (writable)
//	[4] joiner (writable)
func (p *Program) handleRefund(ctx *runtime.ExecutionContext) error {
	if ctx.AccountCount() < 5 {
		return fmt.Errorf("%w: Refund requires 5 accounts", ErrInvalidInstructionData)
	}

	authority, err := ctx.GetAccountByIndex(0)
	if err != nil {
		return err
	}
	if !authority.IsSigner {
		return fmt.Errorf("%w: authority", ErrAccountNotSigner)
	}
	if authority.Pubkey != p.Authority {
		return fmt.Errorf("%w: %s is not the resolver authority", ErrUnauthorized, authority.Pubkey)
	}

	record, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	vault, err := ctx.GetAccountByIndex(2)
	if err != nil {
		return err
	}
	creator, err := ctx.GetAccountByIndex(3)
	if err != nil {
		return err
	}
	joiner, err := ctx.GetAccountByIndex(4)
	if err != nil {
		return err
	}

	state, err := p.loadRecord(record)
	if err != nil {
		return err
	}
	if err := p.checkRecordAddress(record, state); err != nil {
		return err
	}
	if err := p.checkVaultAddress(vault, record.Pubkey, state.VaultBump); err != nil {
		return err
	}

	if state.Status != StatusJoined {
		return ErrNoJoiner
	}
	if creator.Pubkey != state.Creator {
		return fmt.Errorf("%w: creator %s", ErrAddressMismatch, creator.Pubkey)
	}
	if joiner.Pubkey != state.Joiner {
		return fmt.Errorf("%w: joiner %s", ErrAddressMismatch, joiner.Pubkey)
	}

	pot, err := Pot(state.AmountPerPlayer)
	if err != nil {
		return err
	}
	if *vault.Lamports < pot {
		return fmt.Errorf("%w: vault holds %d, pot is %d", ErrInsufficientFunds, *vault.Lamports, pot)
	}

	if err := ctx.TransferLamports(vault, joiner, state.AmountPerPlayer); err != nil {
		return err
	}
	if err := ctx.TransferLamports(vault, creator, state.AmountPerPlayer); err != nil {
		return err
	}
	// Sweep anything deposited into the vault outside the protocol, so the
	// vault always empties and gets reaped with the record.
	if err := ctx.TransferLamports(vault, creator, *vault.Lamports); err != nil {
		return err
	}
	if err := closeRecord(ctx, record, creator); err != nil {
		return err
	}

	ctx.Logf("game %s refunded, %d to each player", state.GameID, state.AmountPerPlayer)
	return nil
}
