package storage

import (
	"encoding/binary"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
)

// Key layout:
//
//	t/users/<code>           user row
//	t/orders/<code>          order row
//	m/usersMeta/<version>    users meta history row
//	m/ordersMeta/<version>   orders meta history row
//
// Codes are stored sign-flipped big-endian so negative codes sort first;
// versions are plain big-endian.
var (
	prefixUsers      = []byte("t/users/")
	prefixOrders     = []byte("t/orders/")
	prefixUsersMeta  = []byte("m/usersMeta/")
	prefixOrdersMeta = []byte("m/ordersMeta/")
)

func tablePrefix(f domain.Family) []byte {
	if f == domain.FamilyUsers {
		return prefixUsers
	}
	return prefixOrders
}

func metaPrefix(f domain.Family) []byte {
	if f == domain.FamilyUsers {
		return prefixUsersMeta
	}
	return prefixOrdersMeta
}

func codeKey(prefix []byte, code int64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(code)^(1<<63))
	return key
}

func versionKey(prefix []byte, version uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], version)
	return key
}

// lastKeyOf returns a key sorting after every key under prefix with an
// 8-byte suffix, used to seek reverse iterators.
func lastKeyOf(prefix []byte) []byte {
	key := make([]byte, len(prefix)+9)
	copy(key, prefix)
	for i := len(prefix); i < len(key); i++ {
		key[i] = 0xFF
	}
	return key
}

func validFamily(f domain.Family) bool {
	return f == domain.FamilyUsers || f == domain.FamilyOrders
}
