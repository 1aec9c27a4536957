// Package snapshot exports and imports the full account store as a
// zstd-compressed archive, for backup and for seeding a fresh node.
//
// Archive layout (after decompression):
//
//	magic (8) | version (4 LE) | slot (8 LE) | count (8 LE)
//	then per account: pubkey (32) | entry_len (4 LE) | entry
//
// where entry is the account serialization used by the store.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/kevredlabs/ro-sham-bo/pkg/accounts"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

const (
	magic   = "ESCROWSS"
	version = uint32(1)
)

var (
	// ErrBadMagic indicates the file is not a snapshot archive.
	ErrBadMagic = errors.New("snapshot: bad magic")

	// ErrUnsupportedVersion indicates a snapshot from a newer format.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")

	// ErrTruncated indicates the archive ends mid-entry.
	ErrTruncated = errors.New("snapshot: truncated archive")
)

// Meta describes an imported or exported snapshot.
type Meta struct {
	Slot  uint64
	Count uint64
}

// Export writes every account in the store to the given path.
func Export(store accounts.Store, path string, slot uint64) (*Meta, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to create encoder: %w", err)
	}

	count := store.Count()
	header := make([]byte, 8+4+8+8)
	copy(header[0:8], magic)
	binary.LittleEndian.PutUint32(header[8:12], version)
	binary.LittleEndian.PutUint64(header[12:20], slot)
	binary.LittleEndian.PutUint64(header[20:28], count)
	if _, err := enc.Write(header); err != nil {
		enc.Close()
		return nil, fmt.Errorf("snapshot: failed to write header: %w", err)
	}

	written := uint64(0)
	err = store.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		entry, err := accounts.SerializeAccount(account)
		if err != nil {
			return err
		}
		buf := make([]byte, 32+4+len(entry))
		copy(buf[0:32], pubkey[:])
		binary.LittleEndian.PutUint32(buf[32:36], uint32(len(entry)))
		copy(buf[36:], entry)
		if _, err := enc.Write(buf); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("snapshot: export failed: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: failed to finish archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("snapshot: failed to sync: %w", err)
	}
	return &Meta{Slot: slot, Count: written}, nil
}

// Import loads every account from the archive at path into the store.
// Existing accounts at the same pubkeys are overwritten.
func Import(store accounts.Store, path string) (*Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot: failed to create decoder: %w", err)
	}
	defer dec.Close()

	header := make([]byte, 8+4+8+8)
	if _, err := io.ReadFull(dec, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if string(header[0:8]) != magic {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint32(header[8:12]); v != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	meta := &Meta{
		Slot:  binary.LittleEndian.Uint64(header[12:20]),
		Count: binary.LittleEndian.Uint64(header[20:28]),
	}

	entryHeader := make([]byte, 32+4)
	for i := uint64(0); i < meta.Count; i++ {
		if _, err := io.ReadFull(dec, entryHeader); err != nil {
			return nil, fmt.Errorf("%w: account %d: %v", ErrTruncated, i, err)
		}
		var pubkey types.Pubkey
		copy(pubkey[:], entryHeader[0:32])
		entryLen := binary.LittleEndian.Uint32(entryHeader[32:36])

		entry := make([]byte, entryLen)
		if _, err := io.ReadFull(dec, entry); err != nil {
			return nil, fmt.Errorf("%w: account %d: %v", ErrTruncated, i, err)
		}
		account, err := accounts.DeserializeAccount(entry)
		if err != nil {
			return nil, fmt.Errorf("snapshot: account %s does not decode: %w", pubkey, err)
		}
		if err := store.SetAccount(pubkey, account); err != nil {
			return nil, fmt.Errorf("snapshot: failed to store %s: %w", pubkey, err)
		}
	}

	return meta, nil
}
