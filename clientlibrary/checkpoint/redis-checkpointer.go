/*
 * Copyright (c) 2021 VMware, Inc.
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of this software and
 * associated documentation files (the "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is furnished to do
 * so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all copies or substantial
 * portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR IMPLIED, INCLUDING BUT
 * NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
 * WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 */
package checkpoint

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streambridge/go-scl/clientlibrary/config"
	par "github.com/streambridge/go-scl/clientlibrary/partition"
	"github.com/streambridge/go-scl/logger"
)

const defaultRedisKeyPrefix = "scl"

// RedisClient is the minimal interface over *redis.Client used by the checkpointer.
// *redis.Client satisfies this naturally.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Close() error
}

// Scripter is the interface for running Lua scripts (satisfied by *redis.Client).
type Scripter interface {
	redis.Scripter
}

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Address   string // host:port or a redis://-style URL (required)
	Password  string // auth password (optional)
	DB        int    // database number 0-15 (default: 0)
	KeyPrefix string // key prefix (default: "scl")
	TLS       bool   // enable TLS (default: false)
}

// RedisCheckpoint implements the Checkpointer interface using Redis as a backend.
// Checkpoints and owner removals go through Lua scripts so the owner fence and the
// write happen atomically.
type RedisCheckpoint struct {
	log       logger.Logger
	client    RedisClient
	scripter  Scripter
	sclConfig *config.StreamConsumerLibConfiguration
	redisCfg  RedisConfig

	tableName string
	keyPrefix string

	checkpointScript  *redis.Script
	removeOwnerScript *redis.Script
}

// NewRedisCheckpoint creates a new Redis-backed checkpointer.
func NewRedisCheckpoint(sclConfig *config.StreamConsumerLibConfiguration, redisCfg RedisConfig) *RedisCheckpoint {
	prefix := redisCfg.KeyPrefix
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}

	return &RedisCheckpoint{
		log:       sclConfig.Logger,
		sclConfig: sclConfig,
		redisCfg:  redisCfg,
		tableName: sclConfig.TableName,
		keyPrefix: prefix,

		checkpointScript:  redis.NewScript(scriptCheckpointSequenceSrc),
		removeOwnerScript: redis.NewScript(scriptRemoveLeaseOwnerSrc),
	}
}

// WithRedisClient injects a pre-configured Redis client (useful for testing).
func (c *RedisCheckpoint) WithRedisClient(client RedisClient, scripter Scripter) *RedisCheckpoint {
	c.client = client
	c.scripter = scripter
	return c
}

// shardKey returns the Redis hash key for a shard.
func (c *RedisCheckpoint) shardKey(shardID string) string {
	return fmt.Sprintf("%s:%s:shard:%s", c.keyPrefix, c.tableName, shardID)
}

// registryKey returns the Redis set key tracking all shard IDs.
func (c *RedisCheckpoint) registryKey() string {
	return fmt.Sprintf("%s:%s:shards", c.keyPrefix, c.tableName)
}

// Init initialises the Redis connection and verifies connectivity.
func (c *RedisCheckpoint) Init() error {
	c.log.Infof("Creating Redis session for table %s", c.tableName)

	if c.client == nil {
		client, err := createRedisClient(c.redisCfg)
		if err != nil {
			return fmt.Errorf("redis client creation failed: %w", err)
		}
		c.client = client
		c.scripter = client
	}

	if err := c.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("%w: redis ping failed: %v", ErrInvalidState, err)
	}

	return nil
}

// createRedisClient builds a *redis.Client from RedisConfig. A redis:// or rediss://
// address is parsed as a URL; rediss:// enables TLS. The explicit TLS field acts as
// an override on top of a plain host:port address.
func createRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if strings.HasPrefix(cfg.Address, "redis://") || strings.HasPrefix(cfg.Address, "rediss://") {
		opts, err := redis.ParseURL(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL %q: %w", cfg.Address, err)
		}
		if cfg.Password != "" {
			opts.Password = cfg.Password
		}
		if cfg.DB != 0 {
			opts.DB = cfg.DB
		}
		if cfg.TLS && opts.TLSConfig == nil {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return redis.NewClient(opts), nil
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts), nil
}

// CheckpointSequence writes the shard's current checkpoint atomically, fenced on the
// lease owner recorded in the shard status.
func (c *RedisCheckpoint) CheckpointSequence(shard *par.ShardStatus) error {
	leaseTimeout := shard.GetLeaseTimeout().UTC().Format(time.RFC3339)

	keys := []string{c.shardKey(shard.ID), c.registryKey()}
	args := []interface{}{
		shard.ID,
		shard.GetLeaseOwner(),
		shard.GetCheckpoint(),
		leaseTimeout,
		shard.ParentShardId,
	}

	result, err := c.checkpointScript.Run(context.Background(), c.scripter, keys, args...).Result()
	if err != nil {
		return fmt.Errorf("checkpoint script error: %w", err)
	}

	resultStr, ok := result.(string)
	if !ok {
		return fmt.Errorf("unexpected checkpoint result type: %T", result)
	}

	if strings.HasPrefix(resultStr, "LEASE_LOST:") {
		owner := strings.TrimPrefix(resultStr, "LEASE_LOST:")
		return fmt.Errorf("%w: shard %s now assigned to %s", ErrLeaseLost, shard.ID, owner)
	}

	return nil
}

// FetchCheckpoint retrieves the checkpoint for the given shard.
func (c *RedisCheckpoint) FetchCheckpoint(shard *par.ShardStatus) error {
	data, err := c.client.HGetAll(context.Background(), c.shardKey(shard.ID)).Result()
	if err != nil {
		return fmt.Errorf("fetch checkpoint failed: %w", err)
	}

	sequenceID, ok := data[SequenceNumberKey]
	if !ok || sequenceID == "" {
		return ErrSequenceIDNotFound
	}

	c.log.Debugf("Retrieved checkpoint %s for shard %s", sequenceID, shard.ID)
	shard.SetCheckpoint(sequenceID)

	if assignedTo, ok := data[LeaseOwnerKey]; ok && assignedTo != "" {
		shard.SetLeaseOwner(assignedTo)
	}

	if leaseTimeout, ok := data[LeaseTimeoutKey]; ok && leaseTimeout != "" {
		t, err := time.Parse(time.RFC3339, leaseTimeout)
		if err != nil {
			return fmt.Errorf("parse lease timeout failed: %w", err)
		}
		shard.SetLeaseTimeout(t)
	}

	return nil
}

// RemoveLeaseInfo removes all recorded info for a shard that no longer exists.
func (c *RedisCheckpoint) RemoveLeaseInfo(shardID string) error {
	if err := c.client.Del(context.Background(), c.shardKey(shardID)).Err(); err != nil {
		c.log.Errorf("Error in removing lease info for shard: %s, Error: %+v", shardID, err)
		return err
	}

	if err := c.client.SRem(context.Background(), c.registryKey(), shardID).Err(); err != nil {
		c.log.Errorf("Error removing shard from registry: %s, Error: %+v", shardID, err)
		return err
	}

	c.log.Infof("Lease info for shard: %s has been removed.", shardID)
	return nil
}

// RemoveLeaseOwner clears the lease owner when it still matches this worker, keeping
// the recorded checkpoint.
func (c *RedisCheckpoint) RemoveLeaseOwner(shardID string) error {
	keys := []string{c.shardKey(shardID)}
	args := []interface{}{c.sclConfig.WorkerID}

	result, err := c.removeOwnerScript.Run(context.Background(), c.scripter, keys, args...).Result()
	if err != nil {
		return fmt.Errorf("removeLeaseOwner script error: %w", err)
	}

	resultStr, ok := result.(string)
	if !ok {
		return fmt.Errorf("unexpected removeLeaseOwner result type: %T", result)
	}

	if strings.HasPrefix(resultStr, "LEASE_LOST:") {
		owner := strings.TrimPrefix(resultStr, "LEASE_LOST:")
		return fmt.Errorf("%w: shard %s now assigned to %s", ErrLeaseLost, shardID, owner)
	}

	return nil
}
