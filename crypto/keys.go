package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey is a secp256k1 key controlling one account. The protocol never
// stores keys on-chain; the daemon keeps at most the operator key from its
// config file.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromHex parses the hex form persisted in the config file.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid key hex: %w", err)
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// Hex returns the persistable hex form of the key.
func (k *PrivateKey) Hex() string {
	return hex.EncodeToString(ethcrypto.FromECDSA(k.key))
}

// Address derives the account address controlled by this key.
func (k *PrivateKey) Address() Address {
	return MustAddressFromBytes(ethcrypto.PubkeyToAddress(k.key.PublicKey).Bytes())
}
