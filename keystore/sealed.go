package keystore

import (
	"encoding/json"
	"fmt"

	icrypto "github.com/jmcleod/ironseal/internal/crypto"
	"github.com/jmcleod/ironseal/internal/util"
)

const (
	sealedFormat  = "ironseal-sealed-key"
	sealedVersion = 1
	saltSize      = 16
)

// sealedFile is the on-disk form of a passphrase-protected key record.
type sealedFile struct {
	Format     string              `json:"format"`
	Ver        int                 `json:"ver"`
	KDF        util.Argon2idParams `json:"kdf"`
	Salt       []byte              `json:"salt"`
	Nonce      []byte              `json:"nonce"`
	Ciphertext []byte              `json:"ciphertext"`
}

func parseSealedFile(data []byte) (*sealedFile, bool) {
	var sf sealedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, false
	}
	if sf.Format != sealedFormat {
		return nil, false
	}
	return &sf, true
}

func sealRecord(record []byte, passphrase string, params util.Argon2idParams) ([]byte, error) {
	if err := util.ValidateArgon2idParams(params); err != nil {
		return nil, fmt.Errorf("invalid KDF parameters: %w", err)
	}
	salt, err := util.RandomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	kek, err := util.DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		return nil, fmt.Errorf("deriving key file KEK: %w", err)
	}
	defer util.WipeBytes(kek)

	sf := &sealedFile{
		Format: sealedFormat,
		Ver:    sealedVersion,
		KDF:    params,
		Salt:   salt,
	}
	sealed, err := util.EncryptAESWithAAD(record, kek, sf.aad())
	if err != nil {
		return nil, fmt.Errorf("sealing key record: %w", err)
	}
	sf.Nonce = sealed[:util.GCMNonceSize]
	sf.Ciphertext = sealed[util.GCMNonceSize:]
	return json.Marshal(sf)
}

func (sf *sealedFile) open(passphrase string) ([]byte, error) {
	if sf.Ver != sealedVersion {
		return nil, fmt.Errorf("unsupported sealed key file version %d", sf.Ver)
	}
	// Parameters come from disk; refuse anything weaker than the floor.
	if err := util.ValidateArgon2idParams(sf.KDF); err != nil {
		return nil, fmt.Errorf("invalid KDF parameters in key file: %w", err)
	}
	kek, err := util.DeriveArgon2idKey(passphrase, sf.Salt, sf.KDF)
	if err != nil {
		return nil, fmt.Errorf("deriving key file KEK: %w", err)
	}
	defer util.WipeBytes(kek)

	full := make([]byte, 0, len(sf.Nonce)+len(sf.Ciphertext))
	full = append(full, sf.Nonce...)
	full = append(full, sf.Ciphertext...)

	record, err := util.DecryptAESWithAAD(full, kek, sf.aad())
	if err != nil {
		return nil, ErrPassphrase
	}
	return record, nil
}

func (sf *sealedFile) aad() []byte {
	return icrypto.AADKeyFile(sf.Format, sf.Ver, sf.KDF.Time, sf.KDF.MemoryKiB, sf.KDF.Parallelism, sf.Salt)
}
