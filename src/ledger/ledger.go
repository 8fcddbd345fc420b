// Package ledger provides the custody primitives the engines build
// on: deterministic address derivation, balance accounts, and
// authorized transfers. A transfer is valid only when its authority
// provably controls the source account, either as the signer of the
// request or as a derived authority re-proven from seed components.
package ledger

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/agent-ledger/src/apperr"
	"github.com/stake-plus/agent-ledger/src/api/types"
)

// Authority is the right to move funds out of an account.
type Authority struct {
	signer  Address
	seeds   [][]byte
	derived bool
}

// SignerAuthority is the authenticated caller moving its own funds.
func SignerAuthority(signer Address) Authority {
	return Authority{signer: signer}
}

// DerivedAuthority is a record signing for its own holding
// sub-account. The seeds must re-derive to the record's address; the
// record then controls exactly its "escrow_token" sub-account.
func DerivedAuthority(seeds ...[]byte) Authority {
	return Authority{seeds: seeds, derived: true}
}

// Controls reports whether the authority may debit from.
func (a Authority) Controls(from Address) bool {
	if a.derived {
		return HoldingAddress(Derive(a.seeds...)) == from
	}
	return !a.signer.IsZero() && a.signer == from
}

// Ledger mutates balance accounts. Calls that mutate take the caller's
// transaction handle so record writes and balance moves commit as one
// unit.
type Ledger struct{}

// New returns a Ledger.
func New() *Ledger { return &Ledger{} }

// Balance reads the current amount held by addr in asset. A missing
// account row reads as zero.
func (l *Ledger) Balance(db *gorm.DB, asset string, addr Address) (uint64, error) {
	var acc types.Account
	err := db.First(&acc, "asset = ? AND address = ?", asset, addr.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

// Credit mints amount of asset into to. Operator gating happens at the
// HTTP layer; the ledger only insists the asset is registered.
func (l *Ledger) Credit(tx *gorm.DB, asset string, to Address, amount uint64) error {
	if amount == 0 {
		return apperr.New(apperr.CodeInvalidAmount, "amount must be greater than zero")
	}
	var a types.Asset
	if err := tx.First(&a, "symbol = ?", asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeUnknownAsset, "asset %s not registered", asset)
		}
		return err
	}
	return l.deposit(tx, asset, to, amount)
}

// Transfer moves amount of asset between two accounts. It fails
// without mutation when the authority does not control from or when
// from lacks sufficient funds.
func (l *Ledger) Transfer(tx *gorm.DB, asset string, from, to Address, amount uint64, auth Authority) error {
	if amount == 0 {
		return apperr.New(apperr.CodeInvalidAmount, "amount must be greater than zero")
	}
	if !auth.Controls(from) {
		return apperr.New(apperr.CodeBadAuthority, "authority does not control %s", from)
	}

	// Conditional debit in one statement so concurrent transactions on
	// the same source cannot overdraw it via stale snapshot reads.
	res := tx.Model(&types.Account{}).
		Where("asset = ? AND address = ? AND amount >= ?", asset, from.String(), amount).
		Update("amount", gorm.Expr("amount - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.CodeInsufficientFunds, "%s holds less than %d %s", from, amount, asset)
	}
	return l.deposit(tx, asset, to, amount)
}

func (l *Ledger) deposit(tx *gorm.DB, asset string, to Address, amount uint64) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}, {Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"amount": gorm.Expr("amount + ?", amount)}),
	}).Create(&types.Account{Asset: asset, Address: to.String(), Amount: amount}).Error
}
