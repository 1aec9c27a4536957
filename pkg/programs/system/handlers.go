package system

import (
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/runtime"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// MaxAccountDataSize caps account data allocations.
const MaxAccountDataSize = 10 * 1024 * 1024

// handleCreateAccount creates a new account.
// Account layout:
//
//	[0] funding account (signer, writable)
//	[1] new account (signer, writable)
func handleCreateAccount(ctx *runtime.ExecutionContext, inst *CreateAccountInstruction) error {
	if ctx.AccountCount() < 2 {
		return fmt.Errorf("%w: CreateAccount requires 2 accounts", ErrInvalidInstructionData)
	}

	funding, err := ctx.GetAccountByIndex(0)
	if err != nil {
		return err
	}
	if !funding.IsSigner {
		return fmt.Errorf("%w: funding account", ErrAccountNotSigner)
	}
	if !funding.IsWritable {
		return fmt.Errorf("%w: funding account", ErrAccountNotWritable)
	}

	newAcc, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	if !newAcc.IsSigner {
		return fmt.Errorf("%w: new account", ErrAccountNotSigner)
	}
	if !newAcc.IsWritable {
		return fmt.Errorf("%w: new account", ErrAccountNotWritable)
	}

	if *newAcc.Lamports > 0 || len(newAcc.Data) > 0 {
		return ErrAccountAlreadyExists
	}
	if inst.Space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	rentMinimum := types.RentExemptMinimum(inst.Space)
	if inst.Lamports < uint64(rentMinimum) {
		return fmt.Errorf("%w: need %d lamports for rent exemption", ErrAccountNotRentExempt, rentMinimum)
	}
	if *funding.Lamports < inst.Lamports {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, inst.Lamports, *funding.Lamports)
	}

	*funding.Lamports -= inst.Lamports
	*newAcc.Lamports += inst.Lamports
	newAcc.Data = make([]byte, inst.Space)
	newAcc.Owner = inst.Owner

	return nil
}

// handleAssign changes the owner of a system-owned account.
// Account layout:
//
//	[0] account to assign (signer, writable)
func handleAssign(ctx *runtime.ExecutionContext, inst *AssignInstruction) error {
	if ctx.AccountCount() < 1 {
		return fmt.Errorf("%w: Assign requires 1 account", ErrInvalidInstructionData)
	}

	acc, err := ctx.GetAccountByIndex(0)
	if err != nil {
		return err
	}
	if !acc.IsSigner {
		return fmt.Errorf("%w: account to assign", ErrAccountNotSigner)
	}
	if !acc.IsWritable {
		return fmt.Errorf("%w: account to assign", ErrAccountNotWritable)
	}
	if acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: account must be owned by the system program", ErrInvalidAccountOwner)
	}

	acc.Owner = inst.Owner
	return nil
}

// handleTransfer moves lamports between accounts.
// Account layout:
//
//	[0] source account (signer, writable)
//	[1] destination account (writable)
func handleTransfer(ctx *runtime.ExecutionContext, inst *TransferInstruction) error {
	if ctx.AccountCount() < 2 {
		return fmt.Errorf("%w: Transfer requires 2 accounts", ErrInvalidInstructionData)
	}

	source, err := ctx.GetAccountByIndex(0)
	if err != nil {
		return err
	}
	if !source.IsSigner {
		return fmt.Errorf("%w: source account", ErrAccountNotSigner)
	}
	if !source.IsWritable {
		return fmt.Errorf("%w: source account", ErrAccountNotWritable)
	}
	if source.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: source must be owned by the system program", ErrInvalidAccountOwner)
	}

	dest, err := ctx.GetAccountByIndex(1)
	if err != nil {
		return err
	}
	if !dest.IsWritable {
		return fmt.Errorf("%w: destination account", ErrAccountNotWritable)
	}

	if *source.Lamports < inst.Lamports {
		return fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, inst.Lamports, *source.Lamports)
	}

	*source.Lamports -= inst.Lamports
	*dest.Lamports += inst.Lamports
	return nil
}

// handleAllocate allocates data space in a system-owned account.
// Account layout:
//
//	[0] account to allocate (signer, writable)
func handleAllocate(ctx *runtime.ExecutionContext, inst *AllocateInstruction) error {
	if ctx.AccountCount() < 1 {
		return fmt.Errorf("%w: Allocate requires 1 account", ErrInvalidInstructionData)
	}

	acc, err := ctx.GetAccountByIndex(0)
	if err != nil {
		return err
	}
	if !acc.IsSigner {
		return fmt.Errorf("%w: account to allocate", ErrAccountNotSigner)
	}
	if !acc.IsWritable {
		return fmt.Errorf("%w: account to allocate", ErrAccountNotWritable)
	}
	if acc.Owner != types.SystemProgramID {
		return fmt.Errorf("%w: account must be owned by the system program", ErrInvalidAccountOwner)
	}
	if len(acc.Data) > 0 {
		return fmt.Errorf("%w: account already has data", ErrAccountAlreadyExists)
	}
	if inst.Space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}

	acc.Data = make([]byte, inst.Space)
	return nil
}
