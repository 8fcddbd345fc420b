package reputation

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

type fixture struct {
	db      *gorm.DB
	clock   *ledger.FixedClock
	engine  *Engine
	owner   ledger.Address
	client  ledger.Address
	profile ledger.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.AgentProfile{}, &types.AttestationRecord{}, &types.TaskRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := &ledger.FixedClock{T: time.Unix(1_700_000_000, 0)}
	engine := NewEngine(db, clock)

	var owner, client ledger.Address
	owner[0] = 1
	client[0] = 2

	profile, err := engine.InitializeAgent(owner, "helper-bot", "ipfs://meta")
	if err != nil {
		t.Fatalf("initialize agent: %v", err)
	}
	addr, _ := ledger.ParseAddress(profile.Address)

	return &fixture{db: db, clock: clock, engine: engine, owner: owner, client: client, profile: addr}
}

func (f *fixture) reload(t *testing.T) *types.AgentProfile {
	t.Helper()
	p, err := f.engine.GetProfile(f.profile)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	return p
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

func TestInitializeAgentDefaults(t *testing.T) {
	f := newFixture(t)
	p := f.reload(t)

	if p.Score != InitialScore {
		t.Fatalf("score = %d, want %d", p.Score, InitialScore)
	}
	if p.TotalAttestations != 0 || p.PositiveAttestations != 0 || p.TasksCompleted != 0 || p.TasksFailed != 0 {
		t.Fatal("fresh profile has nonzero counters")
	}
	if p.Address != ledger.ProfileAddress("helper-bot", f.owner).String() {
		t.Fatal("profile not stored at its derived address")
	}
}

func TestInitializeAgentValidation(t *testing.T) {
	f := newFixture(t)

	long := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = 'x'
		}
		return string(b)
	}

	_, err := f.engine.InitializeAgent(f.owner, long(65), "")
	wantCode(t, err, apperr.CodeAgentIDTooLong)

	_, err = f.engine.InitializeAgent(f.owner, "other-bot", long(201))
	wantCode(t, err, apperr.CodeMetadataURITooLong)

	_, err = f.engine.InitializeAgent(f.owner, "helper-bot", "")
	wantCode(t, err, apperr.CodeAgentExists)
}

func TestAttestAdjustsScore(t *testing.T) {
	f := newFixture(t)

	att, err := f.engine.Attest(f.client, f.profile, 50, "solid work")
	if err != nil {
		t.Fatalf("attest: %v", err)
	}
	if att.Seq != 0 {
		t.Fatalf("first attestation seq = %d, want 0", att.Seq)
	}
	if att.Address != ledger.AttestationAddress(f.client, f.owner, 0).String() {
		t.Fatal("attestation not stored at its derived address")
	}

	p := f.reload(t)
	if p.Score != 600 {
		t.Fatalf("score = %d, want 500 + 2*50", p.Score)
	}
	if p.TotalAttestations != 1 || p.PositiveAttestations != 1 {
		t.Fatalf("counters = %d/%d, want 1/1", p.TotalAttestations, p.PositiveAttestations)
	}
}

func TestAttestZeroRatingNotPositive(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.Attest(f.client, f.profile, 0, ""); err != nil {
		t.Fatalf("attest: %v", err)
	}

	p := f.reload(t)
	if p.Score != 500 {
		t.Fatalf("score = %d, want unchanged 500", p.Score)
	}
	if p.TotalAttestations != 1 || p.PositiveAttestations != 0 {
		t.Fatalf("counters = %d/%d, want 1/0", p.TotalAttestations, p.PositiveAttestations)
	}
}

func TestAttestClampsAtFloor(t *testing.T) {
	f := newFixture(t)

	// 500 -> 300 -> 100 -> 0, then pinned at 0.
	for i, want := range []uint16{300, 100, 0, 0} {
		if _, err := f.engine.Attest(f.client, f.profile, -100, ""); err != nil {
			t.Fatalf("attest %d: %v", i, err)
		}
		if p := f.reload(t); p.Score != want {
			t.Fatalf("after attestation %d score = %d, want %d", i+1, p.Score, want)
		}
	}
}

func TestAttestClampsAtCeiling(t *testing.T) {
	f := newFixture(t)

	// 500 -> 700 -> 900 -> 1000, then pinned at 1000.
	for i, want := range []uint16{700, 900, 1000, 1000} {
		if _, err := f.engine.Attest(f.client, f.profile, 100, ""); err != nil {
			t.Fatalf("attest %d: %v", i, err)
		}
		if p := f.reload(t); p.Score != want {
			t.Fatalf("after attestation %d score = %d, want %d", i+1, p.Score, want)
		}
	}
}

func TestAttestSequenceAddresses(t *testing.T) {
	f := newFixture(t)

	first, _ := f.engine.Attest(f.client, f.profile, 10, "")
	second, _ := f.engine.Attest(f.client, f.profile, 10, "")
	if first == nil || second == nil {
		t.Fatal("attestations not created")
	}
	if first.Address == second.Address {
		t.Fatal("repeat attestation reused an address")
	}
	if second.Seq != 1 {
		t.Fatalf("second attestation seq = %d, want 1", second.Seq)
	}

	atts, err := f.engine.Attestations(f.owner)
	if err != nil {
		t.Fatalf("list attestations: %v", err)
	}
	if len(atts) != 2 {
		t.Fatalf("history length = %d, want 2", len(atts))
	}
}

func TestSelfAttestationRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Attest(f.owner, f.profile, 100, "")
	wantCode(t, err, apperr.CodeSelfAttestation)

	p := f.reload(t)
	if p.Score != 500 || p.TotalAttestations != 0 {
		t.Fatalf("self-attestation mutated profile: score=%d total=%d", p.Score, p.TotalAttestations)
	}

	atts, _ := f.engine.Attestations(f.owner)
	if len(atts) != 0 {
		t.Fatal("self-attestation left a record behind")
	}
}

func TestAttestValidation(t *testing.T) {
	f := newFixture(t)

	for _, rating := range []int8{-101, 101} {
		_, err := f.engine.Attest(f.client, f.profile, rating, "")
		wantCode(t, err, apperr.CodeInvalidRating)
	}

	long := make([]byte, 281)
	for i := range long {
		long[i] = 'x'
	}
	_, err := f.engine.Attest(f.client, f.profile, 10, string(long))
	wantCode(t, err, apperr.CodeCommentTooLong)
}

func TestRecordTaskSuccess(t *testing.T) {
	f := newFixture(t)

	task, err := f.engine.RecordTask(f.client, f.profile, "task-1", 250, true)
	if err != nil {
		t.Fatalf("record task: %v", err)
	}
	if task.Address != ledger.TaskAddress("task-1", f.owner).String() {
		t.Fatal("task not stored at its derived address")
	}

	p := f.reload(t)
	if p.Score != 505 {
		t.Fatalf("score = %d, want 505", p.Score)
	}
	if p.TasksCompleted != 1 || p.TasksFailed != 0 {
		t.Fatalf("counters = %d/%d, want 1/0", p.TasksCompleted, p.TasksFailed)
	}
}

func TestRecordTaskFailure(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.RecordTask(f.client, f.profile, "task-1", 250, false); err != nil {
		t.Fatalf("record task: %v", err)
	}

	p := f.reload(t)
	if p.Score != 490 {
		t.Fatalf("score = %d, want 490", p.Score)
	}
	if p.TasksCompleted != 0 || p.TasksFailed != 1 {
		t.Fatalf("counters = %d/%d, want 0/1", p.TasksCompleted, p.TasksFailed)
	}
}

func TestRecordTaskClamps(t *testing.T) {
	f := newFixture(t)

	// Drive the score to the floor, then fail one more task.
	for i := 0; i < 50; i++ {
		if _, err := f.engine.RecordTask(f.client, f.profile, fmt.Sprintf("task-%d", i), 1, false); err != nil {
			t.Fatalf("record task %d: %v", i, err)
		}
	}
	if p := f.reload(t); p.Score != 0 {
		t.Fatalf("score = %d, want clamped 0", p.Score)
	}

	if _, err := f.engine.RecordTask(f.client, f.profile, "task-final", 1, false); err != nil {
		t.Fatalf("record task: %v", err)
	}
	if p := f.reload(t); p.Score != 0 {
		t.Fatalf("score = %d, want still 0", p.Score)
	}
}

func TestRecordTaskDuplicate(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.RecordTask(f.client, f.profile, "task-1", 250, true); err != nil {
		t.Fatalf("record task: %v", err)
	}
	_, err := f.engine.RecordTask(f.client, f.profile, "task-1", 250, true)
	wantCode(t, err, apperr.CodeTaskExists)

	// The failed replay left score and counters untouched.
	p := f.reload(t)
	if p.Score != 505 || p.TasksCompleted != 1 {
		t.Fatalf("replay mutated profile: score=%d completed=%d", p.Score, p.TasksCompleted)
	}
}

func TestRecordTaskValidation(t *testing.T) {
	f := newFixture(t)

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'x'
	}
	_, err := f.engine.RecordTask(f.client, f.profile, string(long), 1, true)
	wantCode(t, err, apperr.CodeTaskIDTooLong)
}

func TestListAgentsSortedByScore(t *testing.T) {
	f := newFixture(t)

	var owner2 ledger.Address
	owner2[0] = 7
	p2, err := f.engine.InitializeAgent(owner2, "rival-bot", "")
	if err != nil {
		t.Fatalf("initialize second agent: %v", err)
	}
	addr2, _ := ledger.ParseAddress(p2.Address)

	// Boost the second agent above the first.
	if _, err := f.engine.Attest(f.client, addr2, 100, ""); err != nil {
		t.Fatalf("attest: %v", err)
	}

	agents, err := f.engine.ListAgents(10)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("len = %d, want 2", len(agents))
	}
	if agents[0].AgentID != "rival-bot" {
		t.Fatalf("first agent = %s, want rival-bot", agents[0].AgentID)
	}
}
