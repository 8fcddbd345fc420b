package escrow

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/stake-plus/agent-ledger/src/api/types"
	"github.com/stake-plus/agent-ledger/src/apperr"
	"github.com/stake-plus/agent-ledger/src/ledger"
)

const asset = "AGT"

type fixture struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	clock  *ledger.FixedClock
	engine *Engine
	client ledger.Address
	agent  ledger.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Asset{}, &types.Account{}, &types.EscrowRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&types.Asset{Symbol: asset, Decimals: 9}).Error; err != nil {
		t.Fatalf("seed asset: %v", err)
	}

	l := ledger.New()
	clock := &ledger.FixedClock{T: time.Unix(1_700_000_000, 0)}

	var client, agent ledger.Address
	client[0] = 1
	agent[0] = 2

	if err := l.Credit(db, asset, client, 1_000); err != nil {
		t.Fatalf("fund client: %v", err)
	}

	return &fixture{
		db:     db,
		ledger: l,
		clock:  clock,
		engine: NewEngine(db, l, clock),
		client: client,
		agent:  agent,
	}
}

func (f *fixture) create(t *testing.T, id string, amount uint64, releaseAfter int64) *types.EscrowRecord {
	t.Helper()
	rec, err := f.engine.Create(CreateParams{
		EscrowID:     id,
		Client:       f.client,
		Agent:        f.agent,
		Asset:        asset,
		Amount:       amount,
		ReleaseAfter: releaseAfter,
	})
	if err != nil {
		t.Fatalf("create escrow: %v", err)
	}
	return rec
}

func (f *fixture) balance(t *testing.T, who ledger.Address) uint64 {
	t.Helper()
	bal, err := f.ledger.Balance(f.db, asset, who)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

func TestCreateLocksFunds(t *testing.T) {
	f := newFixture(t)
	rec := f.create(t, "job-1", 300, 3600)

	if rec.Status != types.EscrowPending {
		t.Fatalf("status = %s, want pending", rec.Status)
	}
	if rec.ReleaseAt != rec.CreatedAt+3600 {
		t.Fatalf("releaseAt = %d, want createdAt+3600", rec.ReleaseAt)
	}

	holding, _ := ledger.ParseAddress(rec.Holding)
	if got := f.balance(t, holding); got != 300 {
		t.Fatalf("holding balance = %d, want 300", got)
	}
	if got := f.balance(t, f.client); got != 700 {
		t.Fatalf("client balance = %d, want 700", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	longID := make([]byte, 65)
	for i := range longID {
		longID[i] = 'x'
	}

	tests := []struct {
		name   string
		params CreateParams
		code   apperr.Code
	}{
		{
			name:   "zero amount",
			params: CreateParams{EscrowID: "job-1", Client: f.client, Agent: f.agent, Asset: asset, Amount: 0},
			code:   apperr.CodeInvalidAmount,
		},
		{
			name:   "id too long",
			params: CreateParams{EscrowID: string(longID), Client: f.client, Agent: f.agent, Asset: asset, Amount: 10},
			code:   apperr.CodeEscrowIDTooLong,
		},
		{
			name:   "insufficient funds",
			params: CreateParams{EscrowID: "job-1", Client: f.client, Agent: f.agent, Asset: asset, Amount: 5_000},
			code:   apperr.CodeInsufficientFunds,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Create(tc.params)
			wantCode(t, err, tc.code)
		})
	}

	// Failed creations leave no record behind.
	var count int64
	f.db.Model(&types.EscrowRecord{}).Count(&count)
	if count != 0 {
		t.Fatalf("%d escrow records persisted after failed creations", count)
	}
	if got := f.balance(t, f.client); got != 1_000 {
		t.Fatalf("client balance = %d, want untouched 1000", got)
	}
}

func TestCreateDuplicate(t *testing.T) {
	f := newFixture(t)
	f.create(t, "job-1", 100, 3600)

	_, err := f.engine.Create(CreateParams{
		EscrowID: "job-1", Client: f.client, Agent: f.agent, Asset: asset, Amount: 100,
	})
	wantCode(t, err, apperr.CodeEscrowExists)
}

func TestReleaseByStrangerBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	f.create(t, "job-1", 300, 3600)

	var stranger ledger.Address
	stranger[0] = 9

	_, err := f.engine.Release("job-1", f.client, f.agent, stranger)
	wantCode(t, err, apperr.CodeReleaseTimeNotReached)

	rec, holdingBal, err := f.engine.Get("job-1", f.client, f.agent)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != types.EscrowPending || holdingBal != 300 {
		t.Fatalf("failed release mutated state: status=%s holding=%d", rec.Status, holdingBal)
	}
}

func TestReleaseByAnyoneAfterDeadline(t *testing.T) {
	f := newFixture(t)
	f.create(t, "job-1", 300, 3600)
	f.clock.Advance(3600 * time.Second)

	var stranger ledger.Address
	stranger[0] = 9

	rec, err := f.engine.Release("job-1", f.client, f.agent, stranger)
	if err != nil {
		t.Fatalf("release at deadline: %v", err)
	}
	if rec.Status != types.EscrowReleased {
		t.Fatalf("status = %s, want released", rec.Status)
	}
	if got := f.balance(t, f.agent); got != 300 {
		t.Fatalf("agent balance = %d, want 300", got)
	}

	holding, _ := ledger.ParseAddress(rec.Holding)
	if got := f.balance(t, holding); got != 0 {
		t.Fatalf("holding balance = %d, want 0", got)
	}
}

func TestReleaseByClientEarly(t *testing.T) {
	f := newFixture(t)
	f.create(t, "job-1", 300, 3600)

	// No clock advance: the client may release at any time.
	rec, err := f.engine.Release("job-1", f.client, f.agent, f.client)
	if err != nil {
		t.Fatalf("early client release: %v", err)
	}
	if rec.Status != types.EscrowReleased {
		t.Fatalf("status = %s, want released", rec.Status)
	}
	if got := f.balance(t, f.agent); got != 300 {
		t.Fatalf("agent balance = %d, want 300", got)
	}
}

func TestTerminalStateIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.create(t, "job-1", 300, 3600)

	if _, err := f.engine.Release("job-1", f.client, f.agent, f.client); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Every further transition attempt fails with the state error and
	// moves no funds, no matter the signer or the clock.
	f.clock.Advance(10 * 24 * time.Hour)

	_, err := f.engine.Release("job-1", f.client, f.agent, f.client)
	wantCode(t, err, apperr.CodeEscrowNotPending)
	_, err = f.engine.Refund("job-1", f.client, f.agent, f.client)
	wantCode(t, err, apperr.CodeEscrowNotPending)

	if got := f.balance(t, f.agent); got != 300 {
		t.Fatalf("agent balance drifted to %d", got)
	}
}

func TestRefundRequiresClient(t *testing.T) {
	f := newFixture(t)
	f.create(t, "job-1", 300, 3600)
	f.clock.Advance(3600*time.Second + DisputePeriod*time.Second)

	// Even with every time gate satisfied, only the client may refund.
	_, err := f.engine.Refund("job-1", f.client, f.agent, f.agent)
	wantCode(t, err, apperr.CodeUnauthorized)
}

func TestRefundDuringDisputePeriod(t *testing.T) {
	f := newFixture(t)
	f.create(t, "job-1", 300, 3600)

	// Past the release deadline but inside the dispute window.
	f.clock.Advance(3600 * time.Second)
	_, err := f.engine.Refund("job-1", f.client, f.agent, f.client)
	wantCode(t, err, apperr.CodeDisputePeriodActive)

	// One second before the window closes.
	f.clock.Advance(DisputePeriod*time.Second - time.Second)
	_, err = f.engine.Refund("job-1", f.client, f.agent, f.client)
	wantCode(t, err, apperr.CodeDisputePeriodActive)
}

func TestRefundAfterDisputePeriod(t *testing.T) {
	f := newFixture(t)
	f.create(t, "job-1", 300, 3600)
	f.clock.Advance((3600 + DisputePeriod) * time.Second)

	rec, err := f.engine.Refund("job-1", f.client, f.agent, f.client)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if rec.Status != types.EscrowRefunded {
		t.Fatalf("status = %s, want refunded", rec.Status)
	}
	if got := f.balance(t, f.client); got != 1_000 {
		t.Fatalf("client balance = %d, want full 1000 back", got)
	}
}

func TestGetUnknownEscrow(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.engine.Get("missing", f.client, f.agent)
	wantCode(t, err, apperr.CodeNotFound)
}
