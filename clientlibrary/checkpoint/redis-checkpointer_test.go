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
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	par "github.com/streambridge/go-scl/clientlibrary/partition"
)

// mockRedisClient implements RedisClient in memory.
type mockRedisClient struct {
	data    map[string]map[string]string // hash key -> field -> value
	sets    map[string]map[string]bool   // set key -> members
	pingErr error
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{
		data: map[string]map[string]string{},
		sets: map[string]map[string]bool{},
	}
}

func (m *mockRedisClient) Ping(_ context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(context.Background())
	if m.pingErr != nil {
		cmd.SetErr(m.pingErr)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func (m *mockRedisClient) HGetAll(_ context.Context, key string) *goredis.MapStringStringCmd {
	cmd := goredis.NewMapStringStringCmd(context.Background())
	result := map[string]string{}
	for k, v := range m.data[key] {
		result[k] = v
	}
	cmd.SetVal(result)
	return cmd
}

func (m *mockRedisClient) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	cmd := goredis.NewIntCmd(context.Background())
	var deleted int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			deleted++
		}
	}
	cmd.SetVal(deleted)
	return cmd
}

func (m *mockRedisClient) SRem(_ context.Context, key string, members ...interface{}) *goredis.IntCmd {
	cmd := goredis.NewIntCmd(context.Background())
	var removed int64
	if set, ok := m.sets[key]; ok {
		for _, member := range members {
			s, _ := member.(string)
			if set[s] {
				delete(set, s)
				removed++
			}
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func (m *mockRedisClient) SMembers(_ context.Context, key string) *goredis.StringSliceCmd {
	cmd := goredis.NewStringSliceCmd(context.Background())
	members := make([]string, 0, len(m.sets[key]))
	for s := range m.sets[key] {
		members = append(members, s)
	}
	cmd.SetVal(members)
	return cmd
}

func (m *mockRedisClient) Close() error { return nil }

// mockScripter evaluates the two checkpoint scripts against the mock client's data,
// dispatching on the script SHA so the fencing behaviour is actually exercised.
type mockScripter struct {
	client *mockRedisClient

	checkpointSha  string
	removeOwnerSha string
}

func newMockScripter(client *mockRedisClient) *mockScripter {
	return &mockScripter{
		client:         client,
		checkpointSha:  goredis.NewScript(scriptCheckpointSequenceSrc).Hash(),
		removeOwnerSha: goredis.NewScript(scriptRemoveLeaseOwnerSrc).Hash(),
	}
}

func (s *mockScripter) EvalSha(_ context.Context, sha1 string, keys []string, args ...interface{}) *goredis.Cmd {
	cmd := goredis.NewCmd(context.Background())
	switch sha1 {
	case s.checkpointSha:
		cmd.SetVal(s.runCheckpoint(keys, args))
	case s.removeOwnerSha:
		cmd.SetVal(s.runRemoveOwner(keys, args))
	default:
		cmd.SetErr(goredis.Nil)
	}
	return cmd
}

func (s *mockScripter) runCheckpoint(keys []string, args []interface{}) string {
	shardKey, registry := keys[0], keys[1]
	shardID, _ := args[0].(string)
	owner, _ := args[1].(string)
	checkpoint, _ := args[2].(string)
	leaseTimeout, _ := args[3].(string)
	parentShardId, _ := args[4].(string)

	if current, ok := s.client.data[shardKey][LeaseOwnerKey]; ok && current != "" && current != owner {
		return "LEASE_LOST:" + current
	}

	if s.client.data[shardKey] == nil {
		s.client.data[shardKey] = map[string]string{}
	}
	hash := s.client.data[shardKey]
	hash[LeaseKeyKey] = shardID
	hash[LeaseOwnerKey] = owner
	hash[SequenceNumberKey] = checkpoint
	hash[LeaseTimeoutKey] = leaseTimeout
	if parentShardId != "" {
		hash[ParentShardIdKey] = parentShardId
	}

	if s.client.sets[registry] == nil {
		s.client.sets[registry] = map[string]bool{}
	}
	s.client.sets[registry][shardID] = true

	return "OK"
}

func (s *mockScripter) runRemoveOwner(keys []string, args []interface{}) string {
	shardKey := keys[0]
	owner, _ := args[0].(string)

	current, ok := s.client.data[shardKey][LeaseOwnerKey]
	if !ok || current == "" {
		return "OK"
	}
	if current != owner {
		return "LEASE_LOST:" + current
	}
	delete(s.client.data[shardKey], LeaseOwnerKey)
	return "OK"
}

func (s *mockScripter) Eval(_ context.Context, _ string, _ []string, _ ...interface{}) *goredis.Cmd {
	cmd := goredis.NewCmd(context.Background())
	cmd.SetErr(goredis.Nil)
	return cmd
}

func (s *mockScripter) EvalRO(_ context.Context, _ string, _ []string, _ ...interface{}) *goredis.Cmd {
	return goredis.NewCmd(context.Background())
}

func (s *mockScripter) EvalShaRO(_ context.Context, _ string, _ []string, _ ...interface{}) *goredis.Cmd {
	return goredis.NewCmd(context.Background())
}

func (s *mockScripter) ScriptExists(_ context.Context, _ ...string) *goredis.BoolSliceCmd {
	cmd := goredis.NewBoolSliceCmd(context.Background())
	cmd.SetVal([]bool{true})
	return cmd
}

func (s *mockScripter) ScriptLoad(_ context.Context, _ string) *goredis.StringCmd {
	cmd := goredis.NewStringCmd(context.Background())
	cmd.SetVal("OK")
	return cmd
}

func newTestRedisCheckpoint() (*RedisCheckpoint, *mockRedisClient) {
	client := newMockRedisClient()
	checkpointer := NewRedisCheckpoint(testConfig(), RedisConfig{Address: "localhost:6379"}).
		WithRedisClient(client, newMockScripter(client))
	return checkpointer, client
}

func TestRedisCheckpointRoundTrip(t *testing.T) {
	checkpointer, _ := newTestRedisCheckpoint()
	require.NoError(t, checkpointer.Init())

	shard := ownedShard("shard-0001", "worker-1")
	shard.SetCheckpoint("100")
	require.NoError(t, checkpointer.CheckpointSequence(shard))

	fetched := par.NewShardStatus("shard-0001")
	require.NoError(t, checkpointer.FetchCheckpoint(fetched))
	assert.Equal(t, "100", fetched.GetCheckpoint())
	assert.Equal(t, "worker-1", fetched.GetLeaseOwner())
	assert.WithinDuration(t, shard.GetLeaseTimeout(), fetched.GetLeaseTimeout(), time.Second)
}

func TestRedisFetchCheckpointNotFound(t *testing.T) {
	checkpointer, _ := newTestRedisCheckpoint()
	require.NoError(t, checkpointer.Init())

	err := checkpointer.FetchCheckpoint(par.NewShardStatus("shard-0001"))
	assert.ErrorIs(t, err, ErrSequenceIDNotFound)
}

func TestRedisCheckpointLeaseLost(t *testing.T) {
	checkpointer, _ := newTestRedisCheckpoint()
	require.NoError(t, checkpointer.Init())

	other := ownedShard("shard-0001", "worker-2")
	other.SetCheckpoint("100")
	require.NoError(t, checkpointer.CheckpointSequence(other))

	mine := ownedShard("shard-0001", "worker-1")
	mine.SetCheckpoint("200")
	assert.ErrorIs(t, checkpointer.CheckpointSequence(mine), ErrLeaseLost)

	fetched := par.NewShardStatus("shard-0001")
	require.NoError(t, checkpointer.FetchCheckpoint(fetched))
	assert.Equal(t, "100", fetched.GetCheckpoint())
}

func TestRedisRemoveLeaseOwner(t *testing.T) {
	checkpointer, _ := newTestRedisCheckpoint()
	require.NoError(t, checkpointer.Init())

	shard := ownedShard("shard-0001", "worker-1")
	shard.SetCheckpoint("100")
	require.NoError(t, checkpointer.CheckpointSequence(shard))

	require.NoError(t, checkpointer.RemoveLeaseOwner("shard-0001"))

	fetched := par.NewShardStatus("shard-0001")
	require.NoError(t, checkpointer.FetchCheckpoint(fetched))
	assert.Equal(t, "100", fetched.GetCheckpoint())
	assert.Equal(t, "", fetched.GetLeaseOwner())
}

func TestRedisRemoveLeaseOwnerFenced(t *testing.T) {
	checkpointer, _ := newTestRedisCheckpoint()
	require.NoError(t, checkpointer.Init())

	// Store shows a different owner than this worker.
	other := ownedShard("shard-0001", "worker-2")
	other.SetCheckpoint("100")
	require.NoError(t, checkpointer.CheckpointSequence(other))

	assert.ErrorIs(t, checkpointer.RemoveLeaseOwner("shard-0001"), ErrLeaseLost)
}

func TestRedisRemoveLeaseInfo(t *testing.T) {
	checkpointer, client := newTestRedisCheckpoint()
	require.NoError(t, checkpointer.Init())

	shard := ownedShard("shard-0001", "worker-1")
	shard.SetCheckpoint("100")
	require.NoError(t, checkpointer.CheckpointSequence(shard))

	require.NoError(t, checkpointer.RemoveLeaseInfo("shard-0001"))
	err := checkpointer.FetchCheckpoint(par.NewShardStatus("shard-0001"))
	assert.ErrorIs(t, err, ErrSequenceIDNotFound)
	assert.Empty(t, client.sets[checkpointer.registryKey()])
}

func TestRedisShardAndRegistryKeys(t *testing.T) {
	checkpointer, _ := newTestRedisCheckpoint()
	assert.Equal(t, "scl:testapp:shard:shard-0001", checkpointer.shardKey("shard-0001"))
	assert.Equal(t, "scl:testapp:shards", checkpointer.registryKey())
}
