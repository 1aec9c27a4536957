package escrow

import (
	"errors"
	"math"
	"testing"
)

func TestSplitPot(t *testing.T) {
	tests := []struct {
		name   string
		pot    uint64
		fee    uint64
		payout uint64
	}{
		{"one sol each", 2_000_000_000, 60_000_000, 1_940_000_000},
		{"small pot", 100, 3, 97},
		{"pot below one percent unit", 33, 0, 33},
		{"rounding down", 199, 5, 194},
		{"zero", 0, 0, 0},
		{"max pot", math.MaxUint64, 553402322211286548, math.MaxUint64 - 553402322211286548},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, payout := SplitPot(tt.pot)
			if fee != tt.fee {
				t.Errorf("fee = %d, want %d", fee, tt.fee)
			}
			if payout != tt.payout {
				t.Errorf("payout = %d, want %d", payout, tt.payout)
			}
			if fee+payout != tt.pot {
				t.Errorf("fee + payout = %d, want pot %d", fee+payout, tt.pot)
			}
		})
	}
}

func TestSplitPot_NeverExceedsPot(t *testing.T) {
	for _, pot := range []uint64{1, 2, 33, 34, 99, 100, 101, 1_000_000, math.MaxUint64 / 2, math.MaxUint64} {
		fee, payout := SplitPot(pot)
		if fee+payout != pot {
			t.Errorf("pot %d: fee %d + payout %d does not restore pot", pot, fee, payout)
		}
		if fee > pot {
			t.Errorf("pot %d: fee %d exceeds pot", pot, fee)
		}
	}
}

func TestPot(t *testing.T) {
	pot, err := Pot(1_000_000_000)
	if err != nil {
		t.Fatalf("Pot failed: %v", err)
	}
	if pot != 2_000_000_000 {
		t.Errorf("pot = %d, want 2000000000", pot)
	}
}

func TestPot_Overflow(t *testing.T) {
	if _, err := Pot(math.MaxUint64/2 + 1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}
