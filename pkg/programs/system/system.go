package system

import (
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/runtime"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Program implements the system program. All accounts are owned by the
// system program until assigned elsewhere.
type Program struct {
	ProgramID types.Pubkey
}

// New creates a system program instance.
func New() *Program {
	return &Program{ProgramID: types.SystemProgramID}
}

// Execute routes a system instruction to its handler. The first 4 bytes
// of instruction data are the little-endian discriminator.
func (p *Program) Execute(ctx *runtime.ExecutionContext, instruction *types.Instruction) error {
	discriminator, err := ParseDiscriminator(instruction.Data)
	if err != nil {
		return err
	}

	var data []byte
	if len(instruction.Data) > 4 {
		data = instruction.Data[4:]
	}

	switch discriminator {
	case InstructionCreateAccount:
		var inst CreateAccountInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleCreateAccount(ctx, &inst)

	case InstructionAssign:
		var inst AssignInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleAssign(ctx, &inst)

	case InstructionTransfer:
		var inst TransferInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleTransfer(ctx, &inst)

	case InstructionAllocate:
		var inst AllocateInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return handleAllocate(ctx, &inst)

	default:
		return fmt.Errorf("%w: %d", ErrUnknownInstruction, discriminator)
	}
}
