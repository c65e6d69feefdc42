package encryption

import (
	"fmt"

	"mlib/internal/config"
	"mlib/internal/mlib"
)

// NewEncryptorFromConfig creates the snapshot Encryptor named by cfg.Type.
// Type "none" returns a nil Encryptor: snapshots are written in the clear.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (mlib.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg.PublicKeyPath, cfg.PrivateKeyPath), nil
	case "test":
		return NewTestEncryptor(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
