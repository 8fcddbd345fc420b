// Package discord posts agent-ledger events to a Discord channel.
package discord

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/agent-ledger/src/api/data"
)

type MonitorConfig struct {
	Session   *discordgo.Session
	Redis     *redis.Client
	ChannelID string
}

// StreamMonitor tails the ledger event stream and mirrors each event
// into the configured channel as an embed.
type StreamMonitor struct {
	config MonitorConfig
}

func NewStreamMonitor(config MonitorConfig) *StreamMonitor {
	return &StreamMonitor{config: config}
}

func (m *StreamMonitor) Start(ctx context.Context) {
	log.Println("Starting ledger event monitor")

	lastID := "$"
	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping ledger event monitor")
			return
		default:
			streams, err := m.config.Redis.XRead(ctx, &redis.XReadArgs{
				Streams: []string{data.StreamEvents, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					log.Printf("Error reading event stream: %v", err)
				}
				continue
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					if err := m.post(msg.Values); err != nil {
						log.Printf("Error posting event %s: %v", msg.ID, err)
					}
					lastID = msg.ID
				}
			}
		}
	}
}

func (m *StreamMonitor) post(values map[string]interface{}) error {
	embed := buildEmbed(values)
	if embed == nil {
		return nil
	}
	_, err := m.config.Session.ChannelMessageSendEmbed(m.config.ChannelID, embed)
	return err
}

func buildEmbed(values map[string]interface{}) *discordgo.MessageEmbed {
	kind := str(values["kind"])

	var title string
	var color int
	switch kind {
	case "escrow.created":
		title = "Escrow created"
		color = 0x0099ff
	case "escrow.released":
		title = "Escrow released"
		color = 0x4ade80
	case "escrow.refunded":
		title = "Escrow refunded"
		color = 0xfbbf24
	case "agent.registered":
		title = "Agent registered"
		color = 0x667eea
	case "agent.attested":
		title = "Attestation recorded"
		color = 0x22d3ee
	case "task.recorded":
		title = "Task recorded"
		color = 0x0099ff
	default:
		return nil
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(values))
	for _, key := range []string{"escrow", "profile", "attestation", "task",
		"client", "agent", "owner", "agentId", "attester", "target",
		"asset", "amount", "paymentAmount", "rating", "success", "releaseAt"} {
		if v, ok := values[key]; ok {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   key,
				Value:  formatValue(key, str(v)),
				Inline: true,
			})
		}
	}

	ts := time.Now()
	if t, err := strconv.ParseInt(str(values["time"]), 10, 64); err == nil {
		ts = time.Unix(t, 0)
	}

	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Timestamp: ts.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Agent Ledger"},
		Fields:    fields,
	}
}

// formatValue truncates addresses for readability.
func formatValue(key, v string) string {
	switch key {
	case "escrow", "profile", "attestation", "task", "client", "agent",
		"owner", "attester", "target":
		if len(v) > 12 {
			return fmt.Sprintf("%s...%s", v[:6], v[len(v)-4:])
		}
	}
	return v
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
