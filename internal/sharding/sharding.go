package sharding

import (
	"fmt"
	"hash/crc32"
)

// ShardCount is the fixed number of event partitions. Activity sinks
// can split the subject space without coordinating with publishers.
const ShardCount = 256

// GetShardID maps an owner ID to its deterministic shard.
func GetShardID(ownerID string) int {
	checksum := crc32.ChecksumIEEE([]byte(ownerID))
	return int(checksum % ShardCount)
}

// OwnerSubject returns the NATS subject for one owner's todo events.
// Format: todo.event.{shard_id}.owner.{owner_id}
func OwnerSubject(ownerID string) string {
	return fmt.Sprintf("todo.event.%d.owner.%s", GetShardID(ownerID), ownerID)
}
