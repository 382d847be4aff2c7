// Package filterhash maps natural filter values into the unsigned 32-bit
// domain used by the watch_filters table.
package filterhash

import (
	"fmt"
	"hash/crc32"
	"math"
)

// Hash converts a natural filter value to its stored form. Strings are
// hashed with CRC32 (IEEE) over their UTF-8 bytes; integer values already
// inside the uint32 range are used verbatim.
//
// CRC32 assumes filter vocabularies are small and enumerable (locales,
// product slugs). It is exposed as a variable so a deployment with larger
// vocabularies can swap in a stronger hash at startup.
var Hash = DefaultHash

// DefaultHash is the CRC32-based strategy.
func DefaultHash(v any) (uint32, error) {
	switch val := v.(type) {
	case string:
		return crc32.ChecksumIEEE([]byte(val)), nil
	case uint32:
		return val, nil
	case int:
		if val < 0 || int64(val) > math.MaxUint32 {
			return 0, fmt.Errorf("filter value %d outside uint32 range", val)
		}
		return uint32(val), nil
	case int64:
		if val < 0 || val > math.MaxUint32 {
			return 0, fmt.Errorf("filter value %d outside uint32 range", val)
		}
		return uint32(val), nil
	case uint:
		if uint64(val) > math.MaxUint32 {
			return 0, fmt.Errorf("filter value %d outside uint32 range", val)
		}
		return uint32(val), nil
	default:
		return 0, fmt.Errorf("unhashable filter value type %T", v)
	}
}
