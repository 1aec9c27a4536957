package escrow

import "fmt"

// FeePercent is the treasury's cut of the pot on resolve.
const FeePercent = 3

// Pot returns the total stake for a joined game, 2 x amount per player.
func Pot(amountPerPlayer uint64) (uint64, error) {
	pot := 2 * amountPerPlayer
	if pot < amountPerPlayer {
		return 0, fmt.Errorf("%w: pot overflows", ErrInvalidAmount)
	}
	return pot, nil
}

// SplitPot computes the treasury fee and winner payout for a pot.
// fee = floor(pot * FeePercent / 100), payout = pot - fee. The split is
// computed in two terms so it cannot overflow for any uint64 pot.
func SplitPot(pot uint64) (fee, payout uint64) {
	fee = FeePercent*(pot/100) + FeePercent*(pot%100)/100
	return fee, pot - fee
}
