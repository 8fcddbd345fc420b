package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/stake-plus/agent-ledger/src/api/config"
	"github.com/stake-plus/agent-ledger/src/escrow"
	"github.com/stake-plus/agent-ledger/src/ledger"
	"github.com/stake-plus/agent-ledger/src/reputation"
)

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, db, rdb)
	return g
}

func attachRoutes(r *gin.Engine, cfg config.Config, db *gorm.DB, rdb *redis.Client) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	ldg := ledger.New()
	clock := ledger.SystemClock{}

	authH := NewAuth(rdb, []byte(cfg.JWTSecret))
	escrowH := NewEscrows(escrow.NewEngine(db, ldg, clock), rdb)
	agentH := NewAgents(reputation.NewEngine(db, clock), rdb)
	adminH := NewAdmin(db, ldg)

	limiter := NewRateLimiter(60, time.Minute)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/challenge", authH.Challenge)
		v1.POST("/auth/verify", authH.Verify)

		secured := v1.Group("")
		secured.Use(JWTMiddleware([]byte(cfg.JWTSecret)), RateLimitMiddleware(limiter))

		secured.POST("/escrows", escrowH.Create)
		secured.GET("/escrows/:client/:agent/:id", escrowH.Get)
		secured.POST("/escrows/:client/:agent/:id/release", escrowH.Release)
		secured.POST("/escrows/:client/:agent/:id/refund", escrowH.Refund)

		secured.POST("/agents", agentH.Create)
		secured.GET("/agents", agentH.List)
		secured.GET("/agents/:address", agentH.Get)
		secured.POST("/agents/:address/attestations", agentH.Attest)
		secured.GET("/agents/:address/attestations", agentH.Attestations)
		secured.GET("/agents/:address/tasks", agentH.Tasks)
		secured.POST("/tasks", agentH.RecordTask)

		secured.GET("/balances/:asset/:address", adminH.Balance)
	}

	admin := v1.Group("/admin")
	admin.Use(JWTMiddleware([]byte(cfg.JWTSecret)), OperatorMiddleware(db))
	{
		admin.POST("/mint", adminH.Mint)
		admin.POST("/assets", adminH.RegisterAsset)
	}
}
