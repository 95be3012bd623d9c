// Package scope identifies whose budget a budget row belongs to.
//
// A Scope is a tagged union over three owner kinds. Each kind fixes what its
// OwnerID refers to:
//
//	PERSONAL  OwnerID is a user id
//	GENERAL   OwnerID is a family id (pooled family budget)
//	MEMBER    OwnerID is a family member id (custodial members included)
//
// Every scope lives in exactly one account book and may be narrowed to a
// single category.
package scope

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the owner kind of a scope.
type Kind string

const (
	KindPersonal Kind = "PERSONAL"
	KindGeneral  Kind = "GENERAL"
	KindMember   Kind = "MEMBER"
)

// ErrInvalidKey is returned when a scope key cannot be parsed.
var ErrInvalidKey = errors.New("invalid scope key")

// ErrInvalidScope is returned when a scope is missing a field its kind requires.
var ErrInvalidScope = errors.New("invalid scope")

const keySep = ":"

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPersonal, KindGeneral, KindMember:
		return true
	}
	return false
}

// Rank orders kinds for display: PERSONAL, GENERAL, MEMBER.
func (k Kind) Rank() int {
	switch k {
	case KindPersonal:
		return 0
	case KindGeneral:
		return 1
	case KindMember:
		return 2
	}
	return 3
}

// Scope is the (owner kind, owner, account book, optional category) tuple a
// budget applies to.
type Scope struct {
	Kind          Kind
	OwnerID       string
	AccountBookID string
	CategoryID    string
}

// Personal returns the scope of a user's own budget in an account book.
func Personal(userID, accountBookID string) Scope {
	return Scope{Kind: KindPersonal, OwnerID: userID, AccountBookID: accountBookID}
}

// General returns the pooled family scope of a family account book.
func General(familyID, accountBookID string) Scope {
	return Scope{Kind: KindGeneral, OwnerID: familyID, AccountBookID: accountBookID}
}

// Member returns the scope of one family member inside a family account book.
func Member(memberID, accountBookID string) Scope {
	return Scope{Kind: KindMember, OwnerID: memberID, AccountBookID: accountBookID}
}

// WithCategory narrows the scope to a single category.
func (s Scope) WithCategory(categoryID string) Scope {
	s.CategoryID = categoryID
	return s
}

// Base drops the category narrowing.
func (s Scope) Base() Scope {
	s.CategoryID = ""
	return s
}

// Validate checks that the fields required by the scope's kind are present.
func (s Scope) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidScope, s.Kind)
	}
	if s.OwnerID == "" {
		return fmt.Errorf("%w: %s scope requires an owner id", ErrInvalidScope, s.Kind)
	}
	if s.AccountBookID == "" {
		return fmt.Errorf("%w: %s scope requires an account book id", ErrInvalidScope, s.Kind)
	}
	for _, part := range []string{s.OwnerID, s.AccountBookID, s.CategoryID} {
		if strings.Contains(part, keySep) {
			return fmt.Errorf("%w: id %q contains %q", ErrInvalidScope, part, keySep)
		}
	}
	return nil
}

// Key renders the canonical storage key, e.g.
// "personal:<user>:<book>" or "member:<member>:<book>:<category>".
func (s Scope) Key() string {
	parts := []string{strings.ToLower(string(s.Kind)), s.OwnerID, s.AccountBookID}
	if s.CategoryID != "" {
		parts = append(parts, s.CategoryID)
	}
	return strings.Join(parts, keySep)
}

// String implements fmt.Stringer.
func (s Scope) String() string { return s.Key() }

// Parse is the inverse of Key.
func Parse(key string) (Scope, error) {
	parts := strings.Split(key, keySep)
	if len(parts) != 3 && len(parts) != 4 {
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s := Scope{
		Kind:          Kind(strings.ToUpper(parts[0])),
		OwnerID:       parts[1],
		AccountBookID: parts[2],
	}
	if len(parts) == 4 {
		if parts[3] == "" {
			return Scope{}, fmt.Errorf("%w: %q has an empty category", ErrInvalidKey, key)
		}
		s.CategoryID = parts[3]
	}
	if err := s.Validate(); err != nil {
		return Scope{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return s, nil
}
