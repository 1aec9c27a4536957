package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

// Serialization format:
// - lamports:   8 bytes (little-endian uint64)
// - owner:      32 bytes
// - data_len:   4 bytes (little-endian uint32)
// - data:       data_len bytes
//
// Total fixed size: 8 + 32 + 4 = 44 bytes + variable data

const serializedAccountMinSize = 8 + 32 + 4

// ErrInvalidAccountData is returned when serialized account data is malformed.
var ErrInvalidAccountData = errors.New("invalid account data")

// SerializeAccount serializes an account to binary format.
func SerializeAccount(account *types.Account) ([]byte, error) {
	if account == nil {
		return nil, errors.New("cannot serialize nil account")
	}

	dataLen := len(account.Data)
	buf := make([]byte, serializedAccountMinSize+dataLen)

	binary.LittleEndian.PutUint64(buf[0:8], uint64(account.Lamports))
	copy(buf[8:40], account.Owner[:])
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], account.Data)

	return buf, nil
}

// DeserializeAccount deserializes an account from binary format.
func DeserializeAccount(data []byte) (*types.Account, error) {
	if len(data) < serializedAccountMinSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrInvalidAccountData, serializedAccountMinSize, len(data))
	}

	lamports := types.Lamports(binary.LittleEndian.Uint64(data[0:8]))

	var owner types.Pubkey
	copy(owner[:], data[8:40])

	dataLen := binary.LittleEndian.Uint32(data[40:44])
	if len(data) < serializedAccountMinSize+int(dataLen) {
		return nil, fmt.Errorf("%w: data length mismatch, expected %d bytes, got %d",
			ErrInvalidAccountData, serializedAccountMinSize+int(dataLen), len(data))
	}

	var accountData []byte
	if dataLen > 0 {
		accountData = make([]byte, dataLen)
		copy(accountData, data[44:44+int(dataLen)])
	}

	return &types.Account{
		Lamports: lamports,
		Data:     accountData,
		Owner:    owner,
	}, nil
}
