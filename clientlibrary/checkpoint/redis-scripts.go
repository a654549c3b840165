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

// scriptCheckpointSequence atomically writes a checkpoint, fenced on the lease owner.
// The write succeeds when the stored AssignedTo is absent or matches the caller.
//
// KEYS[1] = shard hash key (e.g. scl:{table}:shard:{shardID})
// KEYS[2] = shard registry set key (e.g. scl:{table}:shards)
//
// ARGV[1] = shardID
// ARGV[2] = owner          (workerID the write is fenced on)
// ARGV[3] = checkpoint     (sequence number)
// ARGV[4] = leaseTimeout   (RFC3339 timestamp)
// ARGV[5] = parentShardId  (may be "")
const scriptCheckpointSequenceSrc = `
local current = redis.call('HGET', KEYS[1], 'AssignedTo')

local shardID       = ARGV[1]
local owner         = ARGV[2]
local checkpoint    = ARGV[3]
local leaseTimeout  = ARGV[4]
local parentShardId = ARGV[5]

if current and current ~= '' and current ~= owner then
  return 'LEASE_LOST:' .. current
end

redis.call('HSET', KEYS[1],
  'ShardID', shardID,
  'AssignedTo', owner,
  'Checkpoint', checkpoint,
  'LeaseTimeout', leaseTimeout)

if parentShardId ~= '' then
  redis.call('HSET', KEYS[1], 'ParentShardId', parentShardId)
end

redis.call('SADD', KEYS[2], shardID)

return 'OK'
`

// scriptRemoveLeaseOwner clears the lease owner field, fenced on the caller's workerID.
// The recorded checkpoint stays intact.
//
// KEYS[1] = shard hash key
//
// ARGV[1] = owner (workerID expected as the current AssignedTo)
const scriptRemoveLeaseOwnerSrc = `
local current = redis.call('HGET', KEYS[1], 'AssignedTo')

if not current or current == '' then
  return 'OK'
end

if current ~= ARGV[1] then
  return 'LEASE_LOST:' .. current
end

redis.call('HDEL', KEYS[1], 'AssignedTo')

return 'OK'
`
