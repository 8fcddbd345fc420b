package config

import (
	"log"
	"os"
)

type Config struct {
	MySQLDSN     string
	RedisURL     string
	JWTSecret    string
	Port         string
	SSLCert      string
	SSLKey       string
	DefaultAsset string
	// OperatorAddr is seeded into the operators table on boot so a
	// fresh deployment has one account able to mint and register
	// assets.
	OperatorAddr string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func Load() Config {
	return Config{
		MySQLDSN:     getenv("MYSQL_DSN", "agentledger:agentledger@tcp(127.0.0.1:3306)/agentledger"),
		RedisURL:     getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret:    getenv("JWT_SECRET", ""),
		Port:         getenv("PORT", "8080"),
		SSLCert:      os.Getenv("SSL_CERT"),
		SSLKey:       os.Getenv("SSL_KEY"),
		DefaultAsset: getenv("DEFAULT_ASSET", "AGT"),
		OperatorAddr: os.Getenv("OPERATOR_ADDR"),
	}
}
