// Package core provides client key derivation.
package core

import (
	"hash/fnv"
	"strconv"
)

// UnknownOrigin is the shared origin used when a request carries no usable
// network address. All such requests land in a single bucket.
const UnknownOrigin = "unknown"

// uaHashBuckets bounds the cardinality of the user agent hash component.
const uaHashBuckets = 1000000

// ClientIdentifier derives stable client keys from request attributes.
//
// A key combines the network origin with a coarse hash of the user agent
// string so that clients behind a shared address are kept apart. The hash
// is an approximation, not a security boundary: distinct agents can
// collide and merge into one bucket.
type ClientIdentifier struct {
	bufPool *ByteBufferPool
}

// NewClientIdentifier constructs a ClientIdentifier.
func NewClientIdentifier(pool *ByteBufferPool) *ClientIdentifier {
	if pool == nil {
		pool = NewByteBufferPool(0)
	}
	return &ClientIdentifier{bufPool: pool}
}

// Identify returns the composite client key for an origin and user agent.
// An empty origin degrades to UnknownOrigin rather than failing.
func (ci *ClientIdentifier) Identify(origin, userAgent string) string {
	if origin == "" {
		origin = UnknownOrigin
	}
	if userAgent == "" {
		userAgent = "unknown"
	}
	bucket := uaBucket(userAgent)
	if ci == nil || ci.bufPool == nil {
		return origin + ":" + strconv.FormatUint(uint64(bucket), 10)
	}
	buf := ci.bufPool.Get()
	buf = append(buf, origin...)
	buf = append(buf, ':')
	buf = strconv.AppendUint(buf, uint64(bucket), 10)
	key := string(buf)
	ci.bufPool.Put(buf)
	return key
}

func uaBucket(userAgent string) uint32 {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(userAgent))
	return hasher.Sum32() % uaHashBuckets
}
