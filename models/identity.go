package models

import (
	"fmt"

	errs "github.com/staffhive/teamchat/errors"
)

// IdentityKind discriminates the two account tables a chat participant can
// resolve from.
type IdentityKind string

const (
	IdentityEmployee IdentityKind = "employee"
	IdentityEmployer IdentityKind = "employer"
)

// Identity is a tagged reference to exactly one employee or employer record.
// It is carried explicitly through participant construction and comparison so
// nothing downstream has to inspect which foreign key happens to be non-null.
type Identity struct {
	Kind IdentityKind `json:"role"`
	ID   uint         `json:"id"`
}

func NewIdentity(kind IdentityKind, id uint) (Identity, error) {
	if kind != IdentityEmployee && kind != IdentityEmployer {
		return Identity{}, errs.New(fmt.Sprintf("unknown identity role %q", kind), 400)
	}
	if id == 0 {
		return Identity{}, errs.New("identity id is required", 400)
	}
	return Identity{Kind: kind, ID: id}, nil
}

func (i Identity) String() string {
	return fmt.Sprintf("%s:%d", i.Kind, i.ID)
}

func (i Identity) Zero() bool {
	return i.ID == 0
}

// Less orders identities by kind then id. Employees sort before employers so
// the ordering is total and stable.
func (i Identity) Less(other Identity) bool {
	if i.Kind != other.Kind {
		return i.Kind == IdentityEmployee
	}
	return i.ID < other.ID
}

// DirectPairKey returns the canonical key for the unordered identity pair of a
// direct conversation. The two halves are sorted so {A,B} and {B,A} produce
// the same key; a unique index on the column turns concurrent creation into a
// constraint violation instead of a duplicate conversation.
func DirectPairKey(a, b Identity) string {
	if b.Less(a) {
		a, b = b, a
	}
	return fmt.Sprintf("%s|%s", a, b)
}
