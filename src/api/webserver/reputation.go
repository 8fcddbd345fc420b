package webserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/agent-ledger/src/api/data"
	"github.com/stake-plus/agent-ledger/src/api/types"
	"github.com/stake-plus/agent-ledger/src/ledger"
	"github.com/stake-plus/agent-ledger/src/reputation"
)

type Agents struct {
	engine    *reputation.Engine
	rdb       *redis.Client
	sanitizer *bluemonday.Policy
}

func NewAgents(engine *reputation.Engine, rdb *redis.Client) Agents {
	// User-supplied free text (comments, metadata URIs) is stored and
	// redisplayed verbatim, so strip all markup.
	return Agents{engine: engine, rdb: rdb, sanitizer: bluemonday.StrictPolicy()}
}

func profileJSON(p *types.AgentProfile) gin.H {
	return gin.H{
		"address":              p.Address,
		"owner":                p.Owner,
		"agentId":              p.AgentID,
		"score":                p.Score,
		"tier":                 reputation.Tier(p.Score),
		"totalAttestations":    p.TotalAttestations,
		"positiveAttestations": p.PositiveAttestations,
		"tasksCompleted":       p.TasksCompleted,
		"tasksFailed":          p.TasksFailed,
		"metadataUri":          p.MetadataURI,
		"createdAt":            p.CreatedAt,
	}
}

// Create registers an agent profile owned by the authenticated caller.
func (h Agents) Create(c *gin.Context) {
	var req struct {
		AgentID     string `json:"agentId" binding:"required"`
		MetadataURI string `json:"metadataUri"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	owner, ok := signerAddr(c)
	if !ok {
		return
	}

	profile, err := h.engine.InitializeAgent(owner, req.AgentID, h.sanitizer.Sanitize(req.MetadataURI))
	if err != nil {
		respondErr(c, err)
		return
	}

	_ = data.PublishEvent(context.Background(), h.rdb, "agent.registered", map[string]interface{}{
		"profile": profile.Address, "owner": profile.Owner, "agentId": profile.AgentID,
	})

	c.JSON(http.StatusCreated, profileJSON(profile))
}

// List returns the agent directory, best score first.
func (h Agents) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	profiles, err := h.engine.ListAgents(limit)
	if err != nil {
		respondErr(c, err)
		return
	}

	out := make([]gin.H, 0, len(profiles))
	for i := range profiles {
		out = append(out, profileJSON(&profiles[i]))
	}
	c.JSON(http.StatusOK, gin.H{"agents": out})
}

// Get returns one profile; with ?amount= it also quotes the collateral
// the agent would post for a task of that size.
func (h Agents) Get(c *gin.Context) {
	addr, ok := pathAddr(c, "address")
	if !ok {
		return
	}
	profile, err := h.engine.GetProfile(addr)
	if err != nil {
		respondErr(c, err)
		return
	}

	out := profileJSON(profile)
	if q := c.Query("amount"); q != "" {
		amount, err := strconv.ParseUint(q, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": "bad amount"})
			return
		}
		out["collateral"] = reputation.Collateral(amount, profile.Score)
	}
	c.JSON(http.StatusOK, out)
}

// Attest records a peer rating against the target profile.
func (h Agents) Attest(c *gin.Context) {
	var req struct {
		Rating  int8   `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	attester, ok := signerAddr(c)
	if !ok {
		return
	}
	target, ok := pathAddr(c, "address")
	if !ok {
		return
	}

	att, err := h.engine.Attest(attester, target, req.Rating, h.sanitizer.Sanitize(req.Comment))
	if err != nil {
		respondErr(c, err)
		return
	}

	_ = data.PublishEvent(context.Background(), h.rdb, "agent.attested", map[string]interface{}{
		"attestation": att.Address, "attester": att.Attester,
		"target": att.Target, "rating": att.Rating,
	})

	c.JSON(http.StatusCreated, gin.H{
		"address":   att.Address,
		"attester":  att.Attester,
		"target":    att.Target,
		"seq":       att.Seq,
		"rating":    att.Rating,
		"comment":   att.Comment,
		"createdAt": att.CreatedAt,
	})
}

// Attestations lists the target profile's attestation history.
func (h Agents) Attestations(c *gin.Context) {
	addr, ok := pathAddr(c, "address")
	if !ok {
		return
	}
	profile, err := h.engine.GetProfile(addr)
	if err != nil {
		respondErr(c, err)
		return
	}
	owner, err := ledger.ParseAddress(profile.Owner)
	if err != nil {
		respondErr(c, err)
		return
	}
	atts, err := h.engine.Attestations(owner)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attestations": atts})
}

// Tasks lists the profile owner's recorded task outcomes.
func (h Agents) Tasks(c *gin.Context) {
	addr, ok := pathAddr(c, "address")
	if !ok {
		return
	}
	profile, err := h.engine.GetProfile(addr)
	if err != nil {
		respondErr(c, err)
		return
	}
	owner, err := ledger.ParseAddress(profile.Owner)
	if err != nil {
		respondErr(c, err)
		return
	}
	tasks, err := h.engine.Tasks(owner)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// RecordTask records a task outcome against an agent profile; the
// authenticated caller is the client reporting it.
func (h Agents) RecordTask(c *gin.Context) {
	var req struct {
		TaskID        string `json:"taskId" binding:"required"`
		Agent         string `json:"agent" binding:"required"`
		PaymentAmount uint64 `json:"paymentAmount"`
		Success       *bool  `json:"success" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	client, ok := signerAddr(c)
	if !ok {
		return
	}
	target, err := ledger.ParseAddress(req.Agent)
	if err != nil {
		respondErr(c, err)
		return
	}

	task, err := h.engine.RecordTask(client, target, req.TaskID, req.PaymentAmount, *req.Success)
	if err != nil {
		respondErr(c, err)
		return
	}

	_ = data.PublishEvent(context.Background(), h.rdb, "task.recorded", map[string]interface{}{
		"task": task.Address, "agent": task.Agent, "client": task.Client,
		"paymentAmount": task.PaymentAmount, "success": task.Success,
	})

	c.JSON(http.StatusCreated, task)
}
