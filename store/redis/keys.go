package redis

// Key prefixes for primary entity storage.
const (
	prefixEvent = "nexus:evt:"
)

// Keys for counters and singletons.
const (
	keyEventSeq = "nexus:seq:evt"
	keyToken    = "nexus:token"
)

// Keys for sorted set indexes. The "live" set excludes soft-deleted events
// so history reads never have to filter client-side.
const (
	zEventAll  = "nexus:z:evt:all"
	zEventLive = "nexus:z:evt:live"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
