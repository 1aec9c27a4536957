package escrow

import (
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/runtime"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Program implements the wager escrow program. Authority is the only
// identity allowed to resolve and refund games; Treasury receives the
// fee on resolve. Both are injected at construction, never hardcoded.
type Program struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	Treasury  types.Pubkey
}

// New creates the escrow program with its resolver authority and treasury.
func New(authority, treasury types.Pubkey) *Program {
	return &Program{
		ProgramID: types.EscrowProgramID,
		Authority: authority,
		Treasury:  treasury,
	}
}

// Execute routes an escrow instruction to its handler. The first 8 bytes
// of instruction data are the method discriminator.
func (p *Program) Execute(ctx *runtime.ExecutionContext, instruction *types.Instruction) error {
	disc, err := ParseDiscriminator(instruction.Data)
	if err != nil {
		return err
	}
	data := instruction.Data[DiscriminatorSize:]

	switch disc {
	case CreateGameDiscriminator:
		var inst CreateGameInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return p.handleCreateGame(ctx, &inst)

	case JoinGameDiscriminator:
		return p.handleJoinGame(ctx)

	case ResolveDiscriminator:
		var inst ResolveInstruction
		if err := inst.Decode(data); err != nil {
			return err
		}
		return p.handleResolve(ctx, &inst)

	case CancelDiscriminator:
		return p.handleCancel(ctx)

	case RefundDiscriminator:
		return p.handleRefund(ctx)

	default:
		return fmt.Errorf("%w: %x", ErrUnknownInstruction, disc)
	}
}
