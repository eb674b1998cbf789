package sync

import (
	"encoding/binary"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over the shard indexes [0, shards)
type ring struct {
	hashRing *treemap.Map

	// Cached since treemap.Map.Min() is O(log n)
	minShard int
}

// newRing returns a new consistent hash ring where every shard has
// replicationFactor entries
func newRing(shards, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)
	for shard := 0; shard < int(shards); shard++ {
		keyHash, _ := murmur3.Sum128([]byte(fmt.Sprintf("shard%d", shard)))
		keyHashBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(keyHashBytes, keyHash)

		indexBytes := make([]byte, 4)
		for i := 0; i < int(replicationFactor); i++ {
			hasher := murmur3.New128()
			hasher.Write(keyHashBytes)
			binary.LittleEndian.PutUint32(indexBytes, uint32(i))
			hasher.Write(indexBytes)
			hash, _ := hasher.Sum128()
			hashRing.Put(int64(hash), shard)
		}
	}

	r := &ring{hashRing: hashRing}
	if _, minShard := hashRing.Min(); minShard != nil {
		r.minShard = minShard.(int)
	}
	return r
}

// shard consistently hashes the key to a shard index
func (r *ring) shard(key []byte) int {
	raw, _ := murmur3.Sum128(key)
	_, shard := r.hashRing.Ceiling(int64(raw))
	if shard != nil {
		return shard.(int)
	}
	return r.minShard
}
