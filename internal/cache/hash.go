package cache

import (
	"github.com/cespare/xxhash/v2"
)

// hashKey returns a cache key for an owner/qtype pair. Name comparison
// is case-insensitive and a missing trailing dot is added, matching DNS
// semantics.
func hashKey(owner string, qtype uint16) uint64 {
	buf := make([]byte, 0, len(owner)+3)
	buf = append(buf, byte(qtype>>8), byte(qtype))

	for i := 0; i < len(owner); i++ {
		c := owner[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		buf = append(buf, c)
	}

	if len(owner) == 0 || owner[len(owner)-1] != '.' {
		buf = append(buf, '.')
	}

	return xxhash.Sum64(buf)
}
