package escrow

import (
	"errors"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	original := &GameEscrow{
		Creator:         testPubkey(1),
		GameID:          testGameID(7),
		Joiner:          testPubkey(2),
		AmountPerPlayer: 1_000_000_000,
		Bump:            254,
		VaultBump:       251,
		Status:          StatusJoined,
	}

	data := original.Serialize()
	if len(data) != RecordSize {
		t.Fatalf("serialized length = %d, want %d", len(data), RecordSize)
	}

	decoded, err := DeserializeRecord(data)
	if err != nil {
		t.Fatalf("DeserializeRecord failed: %v", err)
	}
	if *decoded != *original {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestDeserializeRecord_Empty(t *testing.T) {
	if _, err := DeserializeRecord(nil); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestDeserializeRecord_BadDiscriminator(t *testing.T) {
	state := &GameEscrow{Status: StatusCreated}
	data := state.Serialize()
	data[0] ^= 0xff

	if _, err := DeserializeRecord(data); !errors.Is(err, ErrInvalidRecordData) {
		t.Errorf("err = %v, want ErrInvalidRecordData", err)
	}
}

func TestDeserializeRecord_BadStatus(t *testing.T) {
	state := &GameEscrow{Status: StatusCreated}
	data := state.Serialize()
	data[RecordSize-1] = 0

	if _, err := DeserializeRecord(data); !errors.Is(err, ErrInvalidRecordData) {
		t.Errorf("err = %v, want ErrInvalidRecordData", err)
	}
}

func TestDeserializeRecord_Truncated(t *testing.T) {
	state := &GameEscrow{Status: StatusCreated}
	data := state.Serialize()

	if _, err := DeserializeRecord(data[:RecordSize-1]); !errors.Is(err, ErrInvalidRecordData) {
		t.Errorf("err = %v, want ErrInvalidRecordData", err)
	}
}

func TestInstructionDiscriminators(t *testing.T) {
	// Anchor derives method tags as sha256("global:<name>")[..8]; the
	// five must be pairwise distinct for dispatch to be unambiguous.
	discs := map[[DiscriminatorSize]byte]string{}
	for name, d := range map[string][DiscriminatorSize]byte{
		"create_game": CreateGameDiscriminator,
		"join_game":   JoinGameDiscriminator,
		"resolve":     ResolveDiscriminator,
		"cancel":      CancelDiscriminator,
		"refund":      RefundDiscriminator,
	} {
		if prev, ok := discs[d]; ok {
			t.Fatalf("discriminator collision between %s and %s", prev, name)
		}
		discs[d] = name
	}
}

func TestCreateGameInstruction_RoundTrip(t *testing.T) {
	original := CreateGameInstruction{GameID: testGameID(9), Amount: 42_000_000}
	data := original.Encode()

	disc, err := ParseDiscriminator(data)
	if err != nil {
		t.Fatalf("ParseDiscriminator failed: %v", err)
	}
	if disc != CreateGameDiscriminator {
		t.Error("wrong discriminator")
	}

	var decoded CreateGameInstruction
	if err := decoded.Decode(data[DiscriminatorSize:]); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded != original {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestResolveInstruction_Truncated(t *testing.T) {
	var inst ResolveInstruction
	if err := inst.Decode([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidInstructionData) {
		t.Errorf("err = %v, want ErrInvalidInstructionData", err)
	}
}
