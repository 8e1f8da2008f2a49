// Package vaultops implements the whole-store configuration changes
// that touch every blob: enabling or disabling encryption, changing the
// password, and changing the partition size (spec.md §4.7). Each
// operation re-keys or re-splits every blob inside one catalog
// transaction — the single-transaction design spec.md itself
// recommends, resolving the Open Question in DESIGN.md in favor of
// all-or-nothing conversion over a partially-applied walk.
package vaultops

import (
	"context"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/blobstore"
	"github.com/dlfi/archive/internal/catalog"
	"github.com/dlfi/archive/internal/partition"
	"github.com/dlfi/archive/internal/vaultconfig"
	"github.com/dlfi/archive/internal/vaultcrypto"
	"github.com/jmoiron/sqlx"
)

// Manager performs whole-archive conversions. It holds the same
// catalog and blob store the rest of the archive uses; conversions run
// under the catalog's write mutex via WithTx, so no ingest can
// interleave with a conversion (spec.md §5: single writer, single
// process).
type Manager struct {
	Catalog *catalog.Catalog
	Blobs   *blobstore.Store
}

// convert re-seals and/or re-partitions every blob, moving from
// oldCrypto to newCrypto and re-splitting under newPart, and rewrites
// each blob's catalog row in place. All blobs are processed inside a
// single transaction; a mid-walk failure rolls back every change made
// so far. The blob's stored part_count (not a caller-supplied old
// partitioner) is all Read needs to reassemble the existing layout.
func (m *Manager) convert(ctx context.Context, oldCrypto, newCrypto *vaultcrypto.Crypto, newPart partition.Partitioner) error {
	return m.Catalog.WithTx(ctx, func(tx *sqlx.Tx) error {
		blobs, err := catalog.ListAllBlobs(ctx, tx)
		if err != nil {
			return err
		}
		for _, b := range blobs {
			sealed, err := m.Blobs.Read(b.Hash, b.PartCount)
			if err != nil {
				return err
			}
			plaintext, err := oldCrypto.Decrypt(sealed)
			if err != nil {
				return &archiveerr.CryptoError{Hash: b.Hash, Reason: err.Error()}
			}

			resealed, err := newCrypto.Encrypt(plaintext)
			if err != nil {
				return err
			}

			if err := m.Blobs.Delete(b.Hash, b.PartCount); err != nil {
				return err
			}
			storagePath, partCount, err := m.Blobs.Write(b.Hash, resealed, newPart)
			if err != nil {
				return err
			}
			if err := catalog.UpdateBlobPartCount(ctx, tx, b.Hash, storagePath, partCount, int64(len(plaintext))); err != nil {
				return err
			}
		}
		return nil
	})
}

// EnableEncryption derives a fresh key from password, re-seals every
// blob under it, and returns the VaultConfig fields the caller must
// persist (salt and check_value). part is applied to every re-written
// blob, so this call can also change partition size in the same pass.
func (m *Manager) EnableEncryption(ctx context.Context, password string, part partition.Partitioner) (salt []byte, checkValue string, err error) {
	newCrypto, salt, err := vaultcrypto.New(password)
	if err != nil {
		return nil, "", err
	}
	if err := m.convert(ctx, vaultcrypto.Disabled(), newCrypto, part); err != nil {
		return nil, "", err
	}
	checkValue, err = newCrypto.SealCheckValue()
	if err != nil {
		return nil, "", err
	}
	return salt, checkValue, nil
}

// DisableEncryption decrypts every blob with the archive's current key
// and writes them back out in the clear.
func (m *Manager) DisableEncryption(ctx context.Context, currentCrypto *vaultcrypto.Crypto, part partition.Partitioner) error {
	return m.convert(ctx, currentCrypto, vaultcrypto.Disabled(), part)
}

// ChangePassword re-derives a new key from newPassword with a fresh
// salt and re-seals every blob under it.
func (m *Manager) ChangePassword(ctx context.Context, currentCrypto *vaultcrypto.Crypto, newPassword string, part partition.Partitioner) (salt []byte, checkValue string, err error) {
	newCrypto, salt, err := vaultcrypto.New(newPassword)
	if err != nil {
		return nil, "", err
	}
	if err := m.convert(ctx, currentCrypto, newCrypto, part); err != nil {
		return nil, "", err
	}
	checkValue, err = newCrypto.SealCheckValue()
	if err != nil {
		return nil, "", err
	}
	return salt, checkValue, nil
}

// ChangePartitionSize re-splits every blob's sealed bytes under
// newPart, leaving encryption state untouched.
func (m *Manager) ChangePartitionSize(ctx context.Context, crypto *vaultcrypto.Crypto, newPart partition.Partitioner) error {
	return m.convert(ctx, crypto, crypto, newPart)
}

// ApplyToConfig mutates cfg in place to reflect an EnableEncryption or
// ChangePassword result, keeping VaultConfig.Validate's invariant
// (encrypted implies salt and check_value) satisfied.
func ApplyToConfig(cfg *vaultconfig.Config, salt []byte, checkValue string) {
	cfg.Encrypted = true
	cfg.SetSalt(salt)
	cv := checkValue
	cfg.CheckValue = &cv
}
