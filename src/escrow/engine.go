// Package escrow owns the lifecycle of custodial payments between a
// client and an agent. A record starts pending and moves exactly once
// to released or refunded; funds sit in a holding sub-account only the
// record's own derived authority can debit.
package escrow

import (
	"errors"

	"gorm.io/gorm"

	"github.com/stake-plus/agent-ledger/src/api/types"
	"github.com/stake-plus/agent-ledger/src/apperr"
	"github.com/stake-plus/agent-ledger/src/ledger"
)

// DisputePeriod is the grace window after the release deadline during
// which the client cannot yet force a refund, in seconds.
const DisputePeriod = 86400

const maxEscrowIDLen = 64

type Engine struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	clock  ledger.Clock
	locks  *ledger.KeyMutex
}

func NewEngine(db *gorm.DB, l *ledger.Ledger, clock ledger.Clock) *Engine {
	return &Engine{db: db, ledger: l, clock: clock, locks: ledger.NewKeyMutex()}
}

// CreateParams names the parties and terms of a new escrow. Client is
// the authenticated caller; its signer authority funds the holding
// account.
type CreateParams struct {
	EscrowID     string
	Client       ledger.Address
	Agent        ledger.Address
	Asset        string
	Amount       uint64
	ReleaseAfter int64
}

// Create allocates an escrow record and moves Amount from the client
// into the holding sub-account as one unit. Nothing persists if the
// funding transfer fails.
func (e *Engine) Create(p CreateParams) (*types.EscrowRecord, error) {
	if p.Amount == 0 {
		return nil, apperr.New(apperr.CodeInvalidAmount, "amount must be greater than zero")
	}
	if len(p.EscrowID) > maxEscrowIDLen {
		return nil, apperr.New(apperr.CodeEscrowIDTooLong, "escrow id exceeds %d characters", maxEscrowIDLen)
	}

	addr := ledger.EscrowAddress(p.EscrowID, p.Client, p.Agent)
	unlock := e.locks.Lock(addr)
	defer unlock()

	now := e.clock.Now().Unix()
	rec := &types.EscrowRecord{
		Address:   addr.String(),
		EscrowID:  p.EscrowID,
		Client:    p.Client.String(),
		Agent:     p.Agent.String(),
		Holding:   ledger.HoldingAddress(addr).String(),
		Asset:     p.Asset,
		Amount:    p.Amount,
		Status:    types.EscrowPending,
		CreatedAt: now,
		ReleaseAt: now + p.ReleaseAfter,
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		var existing types.EscrowRecord
		if err := tx.First(&existing, "address = ?", rec.Address).Error; err == nil {
			return apperr.New(apperr.CodeEscrowExists, "escrow %s already exists", p.EscrowID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return e.ledger.Transfer(tx, p.Asset, p.Client, ledger.HoldingAddress(addr),
			p.Amount, ledger.SignerAuthority(p.Client))
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Release moves the custodied amount to the agent. The client may
// release at any time; anyone else only once the release deadline has
// passed. The disjunctive gate is evaluated as one predicate before
// any mutation.
func (e *Engine) Release(escrowID string, client, agent, signer ledger.Address) (*types.EscrowRecord, error) {
	return e.finalize(escrowID, client, agent, func(rec *types.EscrowRecord, now int64) (ledger.Address, error) {
		if !(signer == client || now >= rec.ReleaseAt) {
			return ledger.Address{}, apperr.New(apperr.CodeReleaseTimeNotReached,
				"release time not reached and signer is not the client")
		}
		return agent, nil
	}, types.EscrowReleased)
}

// Refund returns the custodied amount to the client. Only the client
// may refund, and only after the dispute period past the release
// deadline has elapsed.
func (e *Engine) Refund(escrowID string, client, agent, signer ledger.Address) (*types.EscrowRecord, error) {
	return e.finalize(escrowID, client, agent, func(rec *types.EscrowRecord, now int64) (ledger.Address, error) {
		if signer != client {
			return ledger.Address{}, apperr.New(apperr.CodeUnauthorized, "only the client may refund")
		}
		if now < rec.ReleaseAt+DisputePeriod {
			return ledger.Address{}, apperr.New(apperr.CodeDisputePeriodActive,
				"dispute period active until %d", rec.ReleaseAt+DisputePeriod)
		}
		return client, nil
	}, types.EscrowRefunded)
}

// finalize runs one terminal transition: load the pending record,
// apply the gate, move the full amount out of holding under the
// escrow's derived authority, and mark the terminal status.
func (e *Engine) finalize(escrowID string, client, agent ledger.Address,
	gate func(*types.EscrowRecord, int64) (ledger.Address, error), status string) (*types.EscrowRecord, error) {

	addr := ledger.EscrowAddress(escrowID, client, agent)
	unlock := e.locks.Lock(addr)
	defer unlock()

	now := e.clock.Now().Unix()
	var rec types.EscrowRecord

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "address = ?", addr.String()).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.CodeNotFound, "escrow %s not found", escrowID)
			}
			return err
		}
		if rec.Status != types.EscrowPending {
			return apperr.New(apperr.CodeEscrowNotPending, "escrow %s is %s", escrowID, rec.Status)
		}

		to, err := gate(&rec, now)
		if err != nil {
			return err
		}

		auth := ledger.DerivedAuthority(ledger.EscrowSeeds(escrowID, client, agent)...)
		if err := e.ledger.Transfer(tx, rec.Asset, ledger.HoldingAddress(addr), to, rec.Amount, auth); err != nil {
			return err
		}

		rec.Status = status
		return tx.Model(&rec).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get loads a record and its live holding balance.
func (e *Engine) Get(escrowID string, client, agent ledger.Address) (*types.EscrowRecord, uint64, error) {
	addr := ledger.EscrowAddress(escrowID, client, agent)
	var rec types.EscrowRecord
	if err := e.db.First(&rec, "address = ?", addr.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, apperr.New(apperr.CodeNotFound, "escrow %s not found", escrowID)
		}
		return nil, 0, err
	}
	bal, err := e.ledger.Balance(e.db, rec.Asset, ledger.HoldingAddress(addr))
	if err != nil {
		return nil, 0, err
	}
	return &rec, bal, nil
}
