package types

import "time"

// Fungible assets known to the ledger.
type Asset struct {
	Symbol    string `gorm:"primaryKey;size:16"`
	Decimals  uint8  `gorm:"not null"`
	CreatedAt time.Time
}

// Balance-holding accounts, one row per (asset, address).
type Account struct {
	ID      uint64 `gorm:"primaryKey"`
	Asset   string `gorm:"size:16;not null;uniqueIndex:idx_asset_addr"`
	Address string `gorm:"size:64;not null;uniqueIndex:idx_asset_addr"`
	Amount  uint64 `gorm:"not null;default:0"`
}

// Escrow records. Address is the derived location of the record;
// Holding is the derived custodial sub-account it controls. Status is
// pending|released|refunded and moves exactly once off pending.
type EscrowRecord struct {
	ID        uint64 `gorm:"primaryKey"`
	Address   string `gorm:"uniqueIndex;size:64;not null"`
	EscrowID  string `gorm:"size:64;not null"`
	Client    string `gorm:"size:64;not null"`
	Agent     string `gorm:"index;size:64;not null"`
	Holding   string `gorm:"size:64;not null"`
	Asset     string `gorm:"size:16;not null"`
	Amount    uint64 `gorm:"not null"`
	Status    string `gorm:"size:16;not null"`
	CreatedAt int64  `gorm:"not null"`
	ReleaseAt int64  `gorm:"not null"`
}

// Agent reputation profiles. Score stays in [0,1000]; counters only
// ever grow.
type AgentProfile struct {
	ID                   uint64 `gorm:"primaryKey"`
	Address              string `gorm:"uniqueIndex;size:64;not null"`
	Owner                string `gorm:"index;size:64;not null"`
	AgentID              string `gorm:"size:64;not null"`
	Score                uint16 `gorm:"not null"`
	TotalAttestations    uint32 `gorm:"not null;default:0"`
	PositiveAttestations uint32 `gorm:"not null;default:0"`
	TasksCompleted       uint32 `gorm:"not null;default:0"`
	TasksFailed          uint32 `gorm:"not null;default:0"`
	MetadataURI          string `gorm:"size:200"`
	CreatedAt            int64  `gorm:"not null"`
}

// Immutable peer attestations, append-only.
type AttestationRecord struct {
	ID        uint64 `gorm:"primaryKey"`
	Address   string `gorm:"uniqueIndex;size:64;not null"`
	Attester  string `gorm:"size:64;not null"`
	Target    string `gorm:"index;size:64;not null"`
	Seq       uint32 `gorm:"not null"`
	Rating    int8   `gorm:"not null"`
	Comment   string `gorm:"size:280"`
	CreatedAt int64  `gorm:"not null"`
}

// Immutable task outcomes, append-only.
type TaskRecord struct {
	ID            uint64 `gorm:"primaryKey"`
	Address       string `gorm:"uniqueIndex;size:64;not null"`
	TaskID        string `gorm:"size:64;not null"`
	Agent         string `gorm:"index;size:64;not null"`
	Client        string `gorm:"size:64;not null"`
	PaymentAmount uint64 `gorm:"not null"`
	Success       bool   `gorm:"not null"`
	CreatedAt     int64  `gorm:"not null"`
}

// Operators may mint and register assets.
type Operator struct {
	Address string `gorm:"primaryKey;size:64"`
}

// Escrow status values.
const (
	EscrowPending  = "pending"
	EscrowReleased = "released"
	EscrowRefunded = "refunded"
)
