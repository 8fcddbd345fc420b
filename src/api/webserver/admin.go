package webserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stake-plus/agent-ledger/src/api/types"
	"github.com/stake-plus/agent-ledger/src/ledger"
)

type Admin struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

func NewAdmin(db *gorm.DB, l *ledger.Ledger) Admin {
	return Admin{db: db, ledger: l}
}

// OperatorMiddleware restricts a route group to addresses in the
// operators table.
func OperatorMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var op types.Operator
		if err := db.First(&op, "address = ?", c.GetString("addr")).Error; err != nil {
			c.JSON(http.StatusForbidden, gin.H{"err": "operator access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RegisterAsset adds a fungible asset the ledger will account for.
func (a Admin) RegisterAsset(c *gin.Context) {
	var req struct {
		Symbol   string `json:"symbol" binding:"required,min=1,max=16"`
		Decimals uint8  `json:"decimals"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	asset := types.Asset{Symbol: req.Symbol, Decimals: req.Decimals}
	if err := a.db.FirstOrCreate(&asset, types.Asset{Symbol: req.Symbol}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, asset)
}

// Mint credits an account. Operator-only; the funding path for demo
// and test deployments where no external bridge exists.
func (a Admin) Mint(c *gin.Context) {
	var req struct {
		Asset  string `json:"asset" binding:"required"`
		To     string `json:"to" binding:"required"`
		Amount uint64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	to, err := ledger.ParseAddress(req.To)
	if err != nil {
		respondErr(c, err)
		return
	}

	log.Printf("operator %s minting %d %s to %s", c.GetString("addr"), req.Amount, req.Asset, req.To)

	err = a.db.Transaction(func(tx *gorm.DB) error {
		return a.ledger.Credit(tx, req.Asset, to, req.Amount)
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Balance reads one account balance; missing accounts read as zero.
func (a Admin) Balance(c *gin.Context) {
	addr, ok := pathAddr(c, "address")
	if !ok {
		return
	}
	asset := c.Param("asset")

	var assetRow types.Asset
	if err := a.db.First(&assetRow, "symbol = ?", asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"err": "asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}

	amount, err := a.ledger.Balance(a.db, asset, addr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "address": addr.String(), "amount": amount})
}
