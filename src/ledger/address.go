package ledger

import (
	"bytes"
	"encoding/binary"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/stake-plus/agent-ledger/src/apperr"
)

// Address is a 32-byte account location, rendered base58 on the wire.
// User identities (sr25519 public keys) and derived record addresses
// live in the same space.
type Address [32]byte

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress decodes a base58 address string.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		return a, apperr.New(apperr.CodeInvalidAddress, "invalid address %q", s)
	}
	copy(a[:], raw)
	return a, nil
}

// Derive computes a deterministic address from ordered seed
// components: blake2b-256 over each component prefixed with its
// little-endian length. Same seeds always yield the same address.
func Derive(seeds ...[]byte) Address {
	var buf bytes.Buffer
	var n [4]byte
	for _, s := range seeds {
		binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
		buf.Write(n[:])
		buf.Write(s)
	}
	return Address(blake2b.Sum256(buf.Bytes()))
}

// Seed tuples for every record kind. Keeping them in one place keeps
// record derivation and derived-authority checks in agreement.

func EscrowSeeds(escrowID string, client, agent Address) [][]byte {
	return [][]byte{[]byte("escrow"), []byte(escrowID), client.Bytes(), agent.Bytes()}
}

func EscrowAddress(escrowID string, client, agent Address) Address {
	return Derive(EscrowSeeds(escrowID, client, agent)...)
}

// HoldingAddress locates the custodial sub-account controlled
// exclusively by the escrow record at addr.
func HoldingAddress(addr Address) Address {
	return Derive([]byte("escrow_token"), addr.Bytes())
}

func ProfileAddress(agentID string, owner Address) Address {
	return Derive([]byte("agent"), []byte(agentID), owner.Bytes())
}

// AttestationAddress keys each attestation by the target's
// pre-increment attestation count, so sequence order alone makes the
// address unique.
func AttestationAddress(attester, target Address, seq uint32) Address {
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], seq)
	return Derive([]byte("attestation"), attester.Bytes(), target.Bytes(), le[:])
}

func TaskAddress(taskID string, agentOwner Address) Address {
	return Derive([]byte("task"), []byte(taskID), agentOwner.Bytes())
}
