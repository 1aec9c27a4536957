package escrow

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// DiscriminatorSize is the length of the instruction and record tags.
const DiscriminatorSize = 8

// Instruction discriminators: the first 8 bytes of
// sha256("global:<method>"), matching the Anchor convention so existing
// client SDKs produce compatible payloads.
var (
	CreateGameDiscriminator = methodDiscriminator("create_game")
	JoinGameDiscriminator   = methodDiscriminator("join_game")
	ResolveDiscriminator    = methodDiscriminator("resolve")
	CancelDiscriminator     = methodDiscriminator("cancel")
	RefundDiscriminator     = methodDiscriminator("refund")
)

func methodDiscriminator(method string) [DiscriminatorSize]byte {
	hash := types.SHA256([]byte("global:" + method))
	var disc [DiscriminatorSize]byte
	copy(disc[:], hash[:DiscriminatorSize])
	return disc
}

// ParseDiscriminator extracts the 8-byte instruction tag.
func ParseDiscriminator(data []byte) ([DiscriminatorSize]byte, error) {
	var disc [DiscriminatorSize]byte
	if len(data) < DiscriminatorSize {
		return disc, fmt.Errorf("%w: instruction too short", ErrInvalidInstructionData)
	}
	copy(disc[:], data[:DiscriminatorSize])
	return disc, nil
}

// CreateGameInstruction opens a game escrow and deposits the stake.
type CreateGameInstruction struct {
	GameID types.GameID
	Amount uint64
}

func (inst *CreateGameInstruction) Decode(data []byte) error {
	// game_id (16) + amount (8)
	if len(data) < 24 {
		return fmt.Errorf("%w: CreateGame requires 24 bytes, got %d", ErrInvalidInstructionData, len(data))
	}
	copy(inst.GameID[:], data[0:16])
	inst.Amount = binary.LittleEndian.Uint64(data[16:24])
	return nil
}

func (inst *CreateGameInstruction) Encode() []byte {
	data := make([]byte, DiscriminatorSize+24)
	copy(data[0:8], CreateGameDiscriminator[:])
	copy(data[8:24], inst.GameID[:])
	binary.LittleEndian.PutUint64(data[24:32], inst.Amount)
	return data
}

// ResolveInstruction settles a joined game in favor of a participant.
type ResolveInstruction struct {
	Winner types.Pubkey
}

func (inst *ResolveInstruction) Decode(data []byte) error {
	if len(data) < 32 {
		return fmt.Errorf("%w: Resolve requires 32 bytes, got %d", ErrInvalidInstructionData, len(data))
	}
	copy(inst.Winner[:], data[0:32])
	return nil
}

func (inst *ResolveInstruction) Encode() []byte {
	data := make([]byte, DiscriminatorSize+32)
	copy(data[0:8], ResolveDiscriminator[:])
	copy(data[8:40], inst.Winner[:])
	return data
}

// discriminatorOnly builds the payload for instructions with no fields.
func discriminatorOnly(disc [DiscriminatorSize]byte) []byte {
	return bytes.Clone(disc[:])
}

// NewCreateGameInstruction builds a create instruction with its full
// account list. Record and vault addresses are derived from the inputs.
func NewCreateGameInstruction(program, creator types.Pubkey, gameID types.GameID, amount uint64) (types.Instruction, error) {
	record, _, err := DeriveRecordAddress(program, creator, gameID)
	if err != nil {
		return types.Instruction{}, err
	}
	vault, _, err := DeriveVaultAddress(program, record)
	if err != nil {
		return types.Instruction{}, err
	}
	inst := CreateGameInstruction{GameID: gameID, Amount: amount}
	return types.Instruction{
		ProgramID: program,
		Accounts: []types.AccountMeta{
			types.Meta(creator, true, true),
			types.Meta(record, false, true),
			types.Meta(vault, false, true),
			types.Meta(types.SystemProgramID, false, false),
		},
		Data: inst.Encode(),
	}, nil
}

// NewJoinGameInstruction builds a join instruction for an existing record.
func NewJoinGameInstruction(program, joiner, record types.Pubkey) (types.Instruction, error) {
	vault, _, err := DeriveVaultAddress(program, record)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: program,
		Accounts: []types.AccountMeta{
			types.Meta(joiner, true, true),
			types.Meta(record, false, true),
			types.Meta(vault, false, true),
		},
		Data: discriminatorOnly(JoinGameDiscriminator),
	}, nil
}

// NewResolveInstruction builds a resolve instruction. The winner receives
// the pot minus the treasury fee; the creator receives the record rent.
func NewResolveInstruction(program, authority, record, winner, creator, treasury types.Pubkey) (types.Instruction, error) {
	vault, _, err := DeriveVaultAddress(program, record)
	if err != nil {
		return types.Instruction{}, err
	}
	inst := ResolveInstruction{Winner: winner}
	return types.Instruction{
		ProgramID: program,
		Accounts: []types.AccountMeta{
			types.Meta(authority, true, false),
			types.Meta(record, false, true),
			types.Meta(vault, false, true),
			types.Meta(winner, false, true),
			types.Meta(creator, false, true),
			types.Meta(treasury, false, true),
		},
		Data: inst.Encode(),
	}, nil
}

// NewCancelInstruction builds a cancel instruction for an unjoined record.
func NewCancelInstruction(program, creator, record types.Pubkey) (types.Instruction, error) {
	vault, _, err := DeriveVaultAddress(program, record)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: program,
		Accounts: []types.AccountMeta{
			types.Meta(creator, true, true),
			types.Meta(record, false, true),
			types.Meta(vault, false, true),
		},
		Data: discriminatorOnly(CancelDiscriminator),
	}, nil
}

// NewRefundInstruction builds a refund instruction returning both stakes.
func NewRefundInstruction(program, authority, record, creator, joiner types.Pubkey) (types.Instruction, error) {
	vault, _, err := DeriveVaultAddress(program, record)
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: program,
		Accounts: []types.AccountMeta{
			types.Meta(authority, true, false),
			types.Meta(record, false, true),
			types.Meta(vault, false, true),
			types.Meta(creator, false, true),
			types.Meta(joiner, false, true),
		},
		Data: discriminatorOnly(RefundDiscriminator),
	}, nil
}
