package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/stake-plus/agent-ledger/src/api/config"
	"github.com/stake-plus/agent-ledger/src/api/data"
	"github.com/stake-plus/agent-ledger/src/api/types"
	"github.com/stake-plus/agent-ledger/src/api/webserver"
)

var allModels = []interface{}{
	&types.Asset{}, &types.Account{},
	&types.EscrowRecord{}, &types.AgentProfile{},
	&types.AttestationRecord{}, &types.TaskRecord{},
	&types.Operator{},
}

func migrate(db *gorm.DB) {
	if err := db.AutoMigrate(allModels...); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func seed(db *gorm.DB, cfg config.Config) {
	_ = db.FirstOrCreate(&types.Asset{Symbol: cfg.DefaultAsset},
		types.Asset{Symbol: cfg.DefaultAsset, Decimals: 9}).Error

	if cfg.OperatorAddr != "" {
		_ = db.FirstOrCreate(&types.Operator{Address: cfg.OperatorAddr}).Error
	}
}

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)
	migrate(db)
	seed(db, cfg)

	rdb := data.MustRedis(cfg.RedisURL)

	router := webserver.New(cfg, db, rdb)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		var err error
		if cfg.SSLCert != "" && cfg.SSLKey != "" {
			tlsReloader, rerr := webserver.NewTLSReloader(cfg.SSLCert, cfg.SSLKey)
			if rerr != nil {
				log.Printf("tls reloader: %v, falling back to HTTP", rerr)
				err = httpSrv.ListenAndServe()
			} else {
				httpSrv.TLSConfig = tlsReloader.GetConfig()
				err = httpSrv.ListenAndServeTLS("", "")
			}
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()
	log.Printf("Agent Ledger API listening on %s", cfg.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
