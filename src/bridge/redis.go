package bridge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orchestra-mcp/realtime/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const publishTimeout = 2 * time.Second

// NewRedisClient opens a client for cfg. An unparseable URL falls back to Addr.
func NewRedisClient(cfg *config.RedisConfig, logger zerolog.Logger) *redis.Client {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err == nil {
			return redis.NewClient(opts)
		}
		logger.Warn().Err(err).Msg("invalid REDIS_URL, using REDIS_ADDR")
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisBridge relays thread frames between relay instances. Each thread has
// its own channel, <prefix>thread:<id>; every instance pattern-subscribes to
// all of them and drops the frames it published itself.
type RedisBridge struct {
	client     *redis.Client
	prefix     string
	instanceID string
	hub        BroadcastTarget
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisBridge creates a bridge delivering remote frames to hub.
func NewRedisBridge(cfg *config.RedisConfig, hub BroadcastTarget, logger zerolog.Logger) *RedisBridge {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBridge{
		client:     NewRedisClient(cfg, logger),
		prefix:     cfg.Prefix,
		instanceID: uuid.NewString(),
		hub:        hub,
		logger:     logger.With().Str("component", "redis-bridge").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Client returns the underlying Redis client.
func (b *RedisBridge) Client() *redis.Client { return b.client }

func (b *RedisBridge) threadChannel(threadID int64) string {
	return b.prefix + "thread:" + strconv.FormatInt(threadID, 10)
}

// threadOf extracts the thread ID from a channel name built by threadChannel.
func (b *RedisBridge) threadOf(channel string) (int64, bool) {
	rest, ok := strings.CutPrefix(channel, b.prefix+"thread:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil && id > 0
}

// Start checks the connection and subscribes to every thread channel.
func (b *RedisBridge) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	pattern := b.prefix + "thread:*"
	sub := b.client.PSubscribe(b.ctx, pattern)
	if _, err := sub.Receive(b.ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe %s: %w", pattern, err)
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	b.logger.Info().
		Str("instance_id", b.instanceID).
		Str("pattern", pattern).
		Msg("redis bridge started")
	return nil
}

// Publish sends a thread frame to the other instances.
func (b *RedisBridge) Publish(threadID int64, frame []byte) error {
	payload, err := encodeEnvelope(b.instanceID, frame)
	if err != nil {
		return fmt.Errorf("thread %d: %w", threadID, err)
	}
	ctx, cancel := context.WithTimeout(b.ctx, publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, b.threadChannel(threadID), payload).Err()
}

// Stop ends the subscription and closes the Redis connection.
func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

// Available reports whether the bridge is subscribed.
func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

func (b *RedisBridge) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handleRedisMessage(msg.Channel, msg.Payload)
		case <-b.ctx.Done():
			return
		}
	}
}

// handleRedisMessage forwards a remote frame to local subscribers.
func (b *RedisBridge) handleRedisMessage(channel, payload string) {
	threadID, ok := b.threadOf(channel)
	if !ok {
		b.logger.Warn().Str("channel", channel).Msg("message on unexpected channel")
		return
	}
	origin, frame, err := decodeEnvelope(payload)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to decode redis message")
		return
	}
	if origin == b.instanceID {
		return
	}

	b.logger.Debug().
		Str("from_instance", origin).
		Int64("thread_id", threadID).
		Msg("relaying frame from redis")

	b.hub.BroadcastToLocal(threadID, frame)
}

// encodeEnvelope wraps frame as {"origin": instanceID, "frame": frame}.
func encodeEnvelope(instanceID string, frame []byte) ([]byte, error) {
	if !gjson.ValidBytes(frame) {
		return nil, fmt.Errorf("frame is not valid json")
	}
	out, err := sjson.SetBytes([]byte(`{}`), "origin", instanceID)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(out, "frame", frame)
}

func decodeEnvelope(payload string) (string, []byte, error) {
	if !gjson.Valid(payload) {
		return "", nil, fmt.Errorf("envelope is not valid json")
	}
	env := gjson.Parse(payload)
	frame := env.Get("frame")
	if !frame.IsObject() {
		return "", nil, fmt.Errorf("envelope has no frame object")
	}
	return env.Get("origin").String(), []byte(frame.Raw), nil
}
