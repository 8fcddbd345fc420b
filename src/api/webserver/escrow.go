package webserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/agent-ledger/src/api/data"
	"github.com/stake-plus/agent-ledger/src/api/types"
	"github.com/stake-plus/agent-ledger/src/escrow"
	"github.com/stake-plus/agent-ledger/src/ledger"
)

type Escrows struct {
	engine *escrow.Engine
	rdb    *redis.Client
}

func NewEscrows(engine *escrow.Engine, rdb *redis.Client) Escrows {
	return Escrows{engine: engine, rdb: rdb}
}

func escrowJSON(rec *types.EscrowRecord) gin.H {
	return gin.H{
		"address":   rec.Address,
		"escrowId":  rec.EscrowID,
		"client":    rec.Client,
		"agent":     rec.Agent,
		"holding":   rec.Holding,
		"asset":     rec.Asset,
		"amount":    rec.Amount,
		"status":    rec.Status,
		"createdAt": rec.CreatedAt,
		"releaseAt": rec.ReleaseAt,
	}
}

// Create opens an escrow funded by the authenticated client.
func (h Escrows) Create(c *gin.Context) {
	var req struct {
		EscrowID            string `json:"escrowId" binding:"required"`
		Agent               string `json:"agent" binding:"required"`
		Asset               string `json:"asset" binding:"required"`
		Amount              uint64 `json:"amount"`
		ReleaseAfterSeconds int64  `json:"releaseAfterSeconds" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	client, ok := signerAddr(c)
	if !ok {
		return
	}
	agent, err := ledger.ParseAddress(req.Agent)
	if err != nil {
		respondErr(c, err)
		return
	}

	rec, err := h.engine.Create(escrow.CreateParams{
		EscrowID:     req.EscrowID,
		Client:       client,
		Agent:        agent,
		Asset:        req.Asset,
		Amount:       req.Amount,
		ReleaseAfter: req.ReleaseAfterSeconds,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	_ = data.PublishEvent(context.Background(), h.rdb, "escrow.created", map[string]interface{}{
		"escrow": rec.Address, "client": rec.Client, "agent": rec.Agent,
		"asset": rec.Asset, "amount": rec.Amount, "releaseAt": rec.ReleaseAt,
	})

	c.JSON(http.StatusCreated, escrowJSON(rec))
}

func (h Escrows) Release(c *gin.Context) {
	h.finalize(c, h.engine.Release, "escrow.released")
}

func (h Escrows) Refund(c *gin.Context) {
	h.finalize(c, h.engine.Refund, "escrow.refunded")
}

func (h Escrows) finalize(c *gin.Context,
	op func(string, ledger.Address, ledger.Address, ledger.Address) (*types.EscrowRecord, error), kind string) {

	signer, ok := signerAddr(c)
	if !ok {
		return
	}
	client, ok := pathAddr(c, "client")
	if !ok {
		return
	}
	agent, ok := pathAddr(c, "agent")
	if !ok {
		return
	}

	rec, err := op(c.Param("id"), client, agent, signer)
	if err != nil {
		respondErr(c, err)
		return
	}

	_ = data.PublishEvent(context.Background(), h.rdb, kind, map[string]interface{}{
		"escrow": rec.Address, "client": rec.Client, "agent": rec.Agent,
		"asset": rec.Asset, "amount": rec.Amount, "signer": signer.String(),
	})

	c.JSON(http.StatusOK, escrowJSON(rec))
}

func (h Escrows) Get(c *gin.Context) {
	client, ok := pathAddr(c, "client")
	if !ok {
		return
	}
	agent, ok := pathAddr(c, "agent")
	if !ok {
		return
	}

	rec, holdingBalance, err := h.engine.Get(c.Param("id"), client, agent)
	if err != nil {
		respondErr(c, err)
		return
	}

	out := escrowJSON(rec)
	out["holdingBalance"] = holdingBalance
	c.JSON(http.StatusOK, out)
}
