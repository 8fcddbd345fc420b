package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/agent-ledger/src/api/data"
	"github.com/stake-plus/agent-ledger/src/bot/discord"
)

func main() {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		log.Fatal("missing env DISCORD_TOKEN")
	}
	channelID := os.Getenv("DISCORD_CHANNEL_ID")
	if channelID == "" {
		log.Fatal("missing env DISCORD_CHANNEL_ID")
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://127.0.0.1:6379/0"
	}

	rdb := data.MustRedis(redisURL)

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatalf("discord: %v", err)
	}
	if err := session.Open(); err != nil {
		log.Fatalf("discord open: %v", err)
	}
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	monitor := discord.NewStreamMonitor(discord.MonitorConfig{
		Session:   session,
		Redis:     rdb,
		ChannelID: channelID,
	})
	go monitor.Start(ctx)

	log.Println("Agent Ledger notifier running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()
}
