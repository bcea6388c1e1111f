package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tasktalk/app/pkg/logger"
	"tasktalk/app/pkg/types"
)

// DefaultGateway fans inbound messages from every registered channel
// into the agent and delivers replies back on the originating channel.
// Each message is processed synchronously start to finish.
type DefaultGateway struct {
	agent    types.Agent
	channels map[string]types.Channel
	mu       sync.RWMutex

	processedMessages uint64
	startedUnix       atomic.Int64
}

type HealthStatus struct {
	Started            bool      `json:"started"`
	StartedAt          time.Time `json:"started_at,omitempty"`
	RegisteredChannels int       `json:"registered_channels"`
	ProcessedMessages  uint64    `json:"processed_messages"`
}

func NewGateway(agent types.Agent) *DefaultGateway {
	return &DefaultGateway{
		agent:    agent,
		channels: make(map[string]types.Channel),
	}
}

func (g *DefaultGateway) RegisterChannel(c types.Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
	logger.Info("gateway registered channel: %s", c.ID())
}

// Start runs every channel until the context is cancelled or all
// channels stop.
func (g *DefaultGateway) Start(ctx context.Context) error {
	if g.agent == nil {
		return fmt.Errorf("gateway has no agent")
	}
	g.startedUnix.Store(time.Now().Unix())

	handler := func(msg types.Message) {
		atomic.AddUint64(&g.processedMessages, 1)
		if err := g.processAndReply(ctx, msg); err != nil {
			logger.Error("gateway processing failed: %v", err)
			g.sendErrorReply(ctx, msg)
		}
	}

	var wg sync.WaitGroup
	g.mu.RLock()
	for _, c := range g.channels {
		wg.Add(1)
		go func(ch types.Channel) {
			defer wg.Done()
			if err := ch.Start(ctx, handler); err != nil && ctx.Err() == nil {
				logger.Error("channel %s stopped: %v", ch.ID(), err)
			}
		}(c)
	}
	g.mu.RUnlock()

	logger.Info("gateway started all channels")
	wg.Wait()
	return nil
}

func (g *DefaultGateway) processAndReply(ctx context.Context, msg types.Message) error {
	response, err := g.agent.Process(ctx, msg)
	if err != nil {
		return fmt.Errorf("agent process: %w", err)
	}
	if response.Content == "" {
		return nil
	}

	channel, exists := g.channelByID(msg.ChannelID)
	if !exists {
		return fmt.Errorf("channel not found for reply: %s", msg.ChannelID)
	}
	if err := channel.Send(ctx, response); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (g *DefaultGateway) sendErrorReply(ctx context.Context, msg types.Message) {
	channel, exists := g.channelByID(msg.ChannelID)
	if !exists {
		return
	}
	reply := types.Message{
		Content:   "Sorry, something went wrong on my end. Please try again.",
		Role:      "assistant",
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		RequestID: msg.RequestID,
	}
	if err := channel.Send(ctx, reply); err != nil {
		logger.Error("failed to deliver error reply: %v", err)
	}
}

func (g *DefaultGateway) channelByID(channelID string) (types.Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	channel, exists := g.channels[channelID]
	return channel, exists
}

func (g *DefaultGateway) HealthStatus() HealthStatus {
	g.mu.RLock()
	channels := len(g.channels)
	g.mu.RUnlock()

	status := HealthStatus{
		RegisteredChannels: channels,
		ProcessedMessages:  atomic.LoadUint64(&g.processedMessages),
	}
	if started := g.startedUnix.Load(); started > 0 {
		status.Started = true
		status.StartedAt = time.Unix(started, 0).UTC()
	}
	return status
}
