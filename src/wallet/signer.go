// Package wallet holds an sr25519 signer for clients of the Agent
// Ledger API: the smoke-test script and anything else that needs to
// complete the challenge/verify login without a browser wallet.
package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/mr-tron/base58"
)

type Signer struct {
	privateKey *schnorrkel.SecretKey
	publicKey  *schnorrkel.PublicKey
	address    string
}

// NewSignerFromHex constructs a signer from a 32-byte hex encoded
// secret.
func NewSignerFromHex(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode hex key: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("invalid key length: expected 32 bytes, got %d", len(keyBytes))
	}

	var miniSecret [32]byte
	copy(miniSecret[:], keyBytes)

	miniSecretKey, err := schnorrkel.NewMiniSecretKeyFromRaw(miniSecret)
	if err != nil {
		return nil, fmt.Errorf("create mini secret key: %w", err)
	}

	secretKey := miniSecretKey.ExpandEd25519()
	publicKey, err := secretKey.Public()
	if err != nil {
		return nil, fmt.Errorf("get public key: %w", err)
	}

	pub := publicKey.Encode()
	return &Signer{
		privateKey: secretKey,
		publicKey:  publicKey,
		address:    base58.Encode(pub[:]),
	}, nil
}

// Sign signs the message with the wallet-standard signing context, the
// same one the API verifies against.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	context := schnorrkel.NewSigningContext([]byte("substrate"), message)
	sig, err := s.privateKey.Sign(context)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	encoded := sig.Encode()
	return encoded[:], nil
}

// Address returns the base58 encoded public key, the ledger's native
// identity form.
func (s *Signer) Address() string {
	return s.address
}
