// Package reputation scores agents from two signal sources: direct
// peer attestations (double-weighted) and recorded task outcomes
// (asymmetric: failures cost twice what successes earn). Scores are
// clamped to [0,1000] on every update.
package reputation

import (
	"errors"

	"gorm.io/gorm"

	"github.com/stake-plus/agent-ledger/src/api/types"
	"github.com/stake-plus/agent-ledger/src/apperr"
	"github.com/stake-plus/agent-ledger/src/ledger"
)

const (
	InitialScore = 500
	MaxScore     = 1000

	maxAgentIDLen     = 64
	maxTaskIDLen      = 64
	maxMetadataURILen = 200
	maxCommentLen     = 280

	successReward  = 5
	failurePenalty = 10
)

type Engine struct {
	db    *gorm.DB
	clock ledger.Clock
	locks *ledger.KeyMutex
}

func NewEngine(db *gorm.DB, clock ledger.Clock) *Engine {
	return &Engine{db: db, clock: clock, locks: ledger.NewKeyMutex()}
}

// InitializeAgent creates a profile at the neutral midpoint score with
// all counters zero. Profiles are never deleted.
func (e *Engine) InitializeAgent(owner ledger.Address, agentID, metadataURI string) (*types.AgentProfile, error) {
	if len(agentID) > maxAgentIDLen {
		return nil, apperr.New(apperr.CodeAgentIDTooLong, "agent id exceeds %d characters", maxAgentIDLen)
	}
	if len(metadataURI) > maxMetadataURILen {
		return nil, apperr.New(apperr.CodeMetadataURITooLong, "metadata uri exceeds %d characters", maxMetadataURILen)
	}

	addr := ledger.ProfileAddress(agentID, owner)
	unlock := e.locks.Lock(addr)
	defer unlock()

	profile := &types.AgentProfile{
		Address:     addr.String(),
		Owner:       owner.String(),
		AgentID:     agentID,
		Score:       InitialScore,
		MetadataURI: metadataURI,
		CreatedAt:   e.clock.Now().Unix(),
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		var existing types.AgentProfile
		if err := tx.First(&existing, "address = ?", profile.Address).Error; err == nil {
			return apperr.New(apperr.CodeAgentExists, "agent %s already registered", agentID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(profile).Error
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Attest applies a peer rating in [-100,100] to the target profile and
// appends an immutable attestation record keyed by the target's
// pre-increment attestation count. Self-attestation is rejected before
// any mutation.
func (e *Engine) Attest(attester, targetProfile ledger.Address, rating int8, comment string) (*types.AttestationRecord, error) {
	if rating < -100 || rating > 100 {
		return nil, apperr.New(apperr.CodeInvalidRating, "rating must be between -100 and 100")
	}
	if len(comment) > maxCommentLen {
		return nil, apperr.New(apperr.CodeCommentTooLong, "comment exceeds %d characters", maxCommentLen)
	}

	unlock := e.locks.Lock(targetProfile)
	defer unlock()

	var att *types.AttestationRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		profile, err := loadProfile(tx, targetProfile)
		if err != nil {
			return err
		}
		owner, err := ledger.ParseAddress(profile.Owner)
		if err != nil {
			return err
		}
		if attester == owner {
			return apperr.New(apperr.CodeSelfAttestation, "agents cannot attest to themselves")
		}

		seq := profile.TotalAttestations
		att = &types.AttestationRecord{
			Address:   ledger.AttestationAddress(attester, owner, seq).String(),
			Attester:  attester.String(),
			Target:    owner.String(),
			Seq:       seq,
			Rating:    rating,
			Comment:   comment,
			CreatedAt: e.clock.Now().Unix(),
		}
		if err := tx.Create(att).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"total_attestations": profile.TotalAttestations + 1,
			"score":              clampScore(int32(profile.Score) + int32(rating)*2),
		}
		if rating > 0 {
			updates["positive_attestations"] = profile.PositiveAttestations + 1
		}
		return tx.Model(profile).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// RecordTask appends an immutable task outcome and adjusts the named
// agent's score: +5 on success, -10 on failure, clamped.
func (e *Engine) RecordTask(client, targetProfile ledger.Address, taskID string, paymentAmount uint64, success bool) (*types.TaskRecord, error) {
	if len(taskID) > maxTaskIDLen {
		return nil, apperr.New(apperr.CodeTaskIDTooLong, "task id exceeds %d characters", maxTaskIDLen)
	}

	unlock := e.locks.Lock(targetProfile)
	defer unlock()

	var task *types.TaskRecord
	err := e.db.Transaction(func(tx *gorm.DB) error {
		profile, err := loadProfile(tx, targetProfile)
		if err != nil {
			return err
		}
		owner, err := ledger.ParseAddress(profile.Owner)
		if err != nil {
			return err
		}

		taskAddr := ledger.TaskAddress(taskID, owner).String()
		var existing types.TaskRecord
		if err := tx.First(&existing, "address = ?", taskAddr).Error; err == nil {
			return apperr.New(apperr.CodeTaskExists, "task %s already recorded", taskID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		task = &types.TaskRecord{
			Address:       taskAddr,
			TaskID:        taskID,
			Agent:         profile.Owner,
			Client:        client.String(),
			PaymentAmount: paymentAmount,
			Success:       success,
			CreatedAt:     e.clock.Now().Unix(),
		}
		if err := tx.Create(task).Error; err != nil {
			return err
		}

		updates := map[string]any{}
		if success {
			updates["tasks_completed"] = profile.TasksCompleted + 1
			updates["score"] = clampScore(int32(profile.Score) + successReward)
		} else {
			updates["tasks_failed"] = profile.TasksFailed + 1
			updates["score"] = clampScore(int32(profile.Score) - failurePenalty)
		}
		return tx.Model(profile).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetProfile loads one profile by its derived address.
func (e *Engine) GetProfile(addr ledger.Address) (*types.AgentProfile, error) {
	return loadProfile(e.db, addr)
}

// ListAgents returns up to limit profiles, best score first.
func (e *Engine) ListAgents(limit int) ([]types.AgentProfile, error) {
	if limit <= 0 {
		limit = 20
	}
	var profiles []types.AgentProfile
	err := e.db.Order("score desc").Limit(limit).Find(&profiles).Error
	return profiles, err
}

// Attestations lists the append-only attestation history for a target
// owner, oldest first.
func (e *Engine) Attestations(target ledger.Address) ([]types.AttestationRecord, error) {
	var atts []types.AttestationRecord
	err := e.db.Where("target = ?", target.String()).Order("seq asc").Find(&atts).Error
	return atts, err
}

// Tasks lists recorded outcomes for an agent owner, oldest first.
func (e *Engine) Tasks(agent ledger.Address) ([]types.TaskRecord, error) {
	var tasks []types.TaskRecord
	err := e.db.Where("agent = ?", agent.String()).Order("created_at asc").Find(&tasks).Error
	return tasks, err
}

func loadProfile(db *gorm.DB, addr ledger.Address) (*types.AgentProfile, error) {
	var profile types.AgentProfile
	if err := db.First(&profile, "address = ?", addr.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "agent profile %s not found", addr)
		}
		return nil, err
	}
	return &profile, nil
}

// clampScore keeps scores inside [0,1000]; the int32 intermediate
// cannot overflow for any legal score and delta.
func clampScore(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return uint16(v)
}
