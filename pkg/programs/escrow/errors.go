// Package escrow implements the wager escrow program: it custodies a
// two-player stake, pays out a verified winner minus the treasury fee, and
// refunds both parties when no winner can be determined.
package escrow

import "errors"

// Escrow program errors.
var (
	// ErrInvalidAmount indicates a non-positive stake.
	ErrInvalidAmount = errors.New("amount is invalid")

	// ErrAlreadyExists indicates a game escrow already exists for the
	// creator and game id.
	ErrAlreadyExists = errors.New("game escrow already exists")

	// ErrJoinerAlreadySet indicates a second player has already deposited.
	ErrJoinerAlreadySet = errors.New("joiner already set")

	// ErrNoJoiner indicates no second player has deposited yet.
	ErrNoJoiner = errors.New("no joiner has deposited yet")

	// ErrInvalidWinner indicates the winner is not a participant or the
	// destination account does not match the winner.
	ErrInvalidWinner = errors.New("winner must be creator or joiner")

	// ErrUnauthorized indicates the signer lacks the role the operation
	// requires.
	ErrUnauthorized = errors.New("unauthorized signer")

	// ErrAddressMismatch indicates a supplied account does not match the
	// expected derivation or stored value.
	ErrAddressMismatch = errors.New("account address mismatch")

	// ErrRecordNotFound indicates the game escrow record does not exist.
	ErrRecordNotFound = errors.New("game escrow record not found")

	// ErrInvalidInstructionData indicates the instruction payload is malformed.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrInvalidRecordData indicates the record bytes do not decode to a
	// game escrow.
	ErrInvalidRecordData = errors.New("invalid game escrow record data")

	// ErrInsufficientFunds indicates a depositor cannot cover the stake.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrAccountNotSigner indicates a required signature is missing.
	ErrAccountNotSigner = errors.New("account is not a signer")

	// ErrAccountNotWritable indicates a required writable account is not writable.
	ErrAccountNotWritable = errors.New("account is not writable")

	// ErrUnknownInstruction indicates an unrecognized discriminator.
	ErrUnknownInstruction = errors.New("unknown escrow instruction")
)
