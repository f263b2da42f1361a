package domain

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spaolacci/murmur3"
)

// Family names an entity family with its own version counter.
type Family string

// Entity families.
const (
	FamilyUsers  Family = "users"
	FamilyOrders Family = "orders"
)

// MetaRecord is one version of a family's meta: the version number and
// the change-log lines appended when that version was produced. The full
// change log of a family is the concatenation of its history in version
// order.
type MetaRecord struct {
	Version   uint64   `json:"version"`
	ChangeLog []string `json:"changeLog"`
}

// Clone creates a deep copy of the record.
func (m MetaRecord) Clone() MetaRecord {
	c := MetaRecord{Version: m.Version}
	if m.ChangeLog != nil {
		c.ChangeLog = append([]string(nil), m.ChangeLog...)
	}
	return c
}

// IsNewerThan reports whether m supersedes local. Equal versions are not
// newer: the importer treats them as stale.
func (m MetaRecord) IsNewerThan(local MetaRecord) bool {
	return m.Version > local.Version
}

// signedUser is the user projection covered by a snapshot signature.
type signedUser struct {
	Code       int64  `json:"code"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Speciality *int64 `json:"speciality"`
	Active     bool   `json:"active"`
	Signature  string `json:"signature"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

// UsersSignature hashes every user field except the password hash and
// appends the meta version: "<murmur3-128 hex>.<version>". Order of the
// input slice does not matter.
func UsersSignature(users []*User, version uint64) string {
	projected := make([]signedUser, 0, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		projected = append(projected, signedUser{
			Code:       u.Code,
			Name:       u.Name,
			Role:       u.Role,
			Speciality: u.Speciality,
			Active:     u.Active,
			Signature:  u.Signature,
			CreatedAt:  u.CreatedAt,
			UpdatedAt:  u.UpdatedAt,
		})
	}
	sort.Slice(projected, func(i, j int) bool { return projected[i].Code < projected[j].Code })

	// Marshal of plain structs cannot fail.
	data, _ := json.Marshal(projected)

	h := murmur3.New128()
	h.Write(data)
	h1, h2 := h.Sum128()
	return fmt.Sprintf("%016x%016x.%d", h1, h2, version)
}
