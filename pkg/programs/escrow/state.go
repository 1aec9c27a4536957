package escrow

import (
	"encoding/binary"
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Status is the explicit lifecycle state of a game escrow. Terminal states
// are not stored: resolve, cancel, and refund destroy the record.
type Status uint8

const (
	// StatusCreated means the creator has deposited and no joiner is set.
	StatusCreated Status = 1

	// StatusJoined means both players have deposited.
	StatusJoined Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusJoined:
		return "joined"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// RecordDiscriminator tags record data as a game escrow: the first
// 8 bytes of sha256("account:GameEscrow"), per the Anchor convention.
var RecordDiscriminator = recordDiscriminator("GameEscrow")

func recordDiscriminator(name string) [DiscriminatorSize]byte {
	hash := types.SHA256([]byte("account:" + name))
	var disc [DiscriminatorSize]byte
	copy(disc[:], hash[:DiscriminatorSize])
	return disc
}

// GameEscrow is the persisted state of one game.
type GameEscrow struct {
	Creator         types.Pubkey
	GameID          types.GameID
	Joiner          types.Pubkey // zero until StatusJoined
	AmountPerPlayer uint64
	Bump            uint8
	VaultBump       uint8
	Status          Status
}

// RecordSize is the serialized record length:
// discriminator (8) + creator (32) + game_id (16) + joiner (32) +
// amount (8) + bump (1) + vault_bump (1) + status (1).
const RecordSize = DiscriminatorSize + 32 + 16 + 32 + 8 + 1 + 1 + 1

// Serialize encodes the record with its discriminator.
func (g *GameEscrow) Serialize() []byte {
	data := make([]byte, RecordSize)
	copy(data[0:8], RecordDiscriminator[:])
	copy(data[8:40], g.Creator[:])
	copy(data[40:56], g.GameID[:])
	copy(data[56:88], g.Joiner[:])
	binary.LittleEndian.PutUint64(data[88:96], g.AmountPerPlayer)
	data[96] = g.Bump
	data[97] = g.VaultBump
	data[98] = uint8(g.Status)
	return data
}

// DeserializeRecord decodes and validates a game escrow record.
func DeserializeRecord(data []byte) (*GameEscrow, error) {
	if len(data) == 0 {
		return nil, ErrRecordNotFound
	}
	if len(data) != RecordSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidRecordData, RecordSize, len(data))
	}
	for i := 0; i < DiscriminatorSize; i++ {
		if data[i] != RecordDiscriminator[i] {
			return nil, fmt.Errorf("%w: bad discriminator", ErrInvalidRecordData)
		}
	}

	g := &GameEscrow{}
	copy(g.Creator[:], data[8:40])
	copy(g.GameID[:], data[40:56])
	copy(g.Joiner[:], data[56:88])
	g.AmountPerPlayer = binary.LittleEndian.Uint64(data[88:96])
	g.Bump = data[96]
	g.VaultBump = data[97]
	g.Status = Status(data[98])

	if g.Status != StatusCreated && g.Status != StatusJoined {
		return nil, fmt.Errorf("%w: bad status %d", ErrInvalidRecordData, data[98])
	}
	return g, nil
}
