package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdentifierType is the axis a restriction record is keyed on.
type IdentifierType string

const (
	IdentifierIPAddress   IdentifierType = "ip_address"
	IdentifierUUID        IdentifierType = "uuid"
	IdentifierAccountName IdentifierType = "account_name"
)

// AllIdentifierTypes returns every known identifier type.
func AllIdentifierTypes() []IdentifierType {
	return []IdentifierType{IdentifierIPAddress, IdentifierUUID, IdentifierAccountName}
}

// Valid reports whether t is one of the known identifier types.
func (t IdentifierType) Valid() bool {
	switch t {
	case IdentifierIPAddress, IdentifierUUID, IdentifierAccountName:
		return true
	}
	return false
}

// ParseIdentifierType converts a wire value into an IdentifierType.
func ParseIdentifierType(s string) (IdentifierType, error) {
	t := IdentifierType(s)
	if !t.Valid() {
		return "", ErrUnknownIdentifierType(s)
	}
	return t, nil
}

// Restriction is one persisted (type, value, expiry) tuple barring a single identifier.
// A player restriction is made of two or three of these with no stored link between them.
type Restriction struct {
	ID        uuid.UUID      `json:"id"`
	Type      IdentifierType `json:"identifier_type"`
	Value     string         `json:"value"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"` // nil = permanent
	CreatedAt time.Time      `json:"created_at"`
}

// NewRestriction builds an unsaved record. The store assigns ID on insert if it is zero.
func NewRestriction(t IdentifierType, value string, expiresAt *time.Time) *Restriction {
	return &Restriction{
		ID:        uuid.New(),
		Type:      t,
		Value:     value,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

// IsPermanent returns true if the record has no expiry.
func (r *Restriction) IsPermanent() bool {
	return r.ExpiresAt == nil
}

// IsExpired returns true if the record has an expiry at or before now.
func (r *Restriction) IsExpired(now time.Time) bool {
	if r.ExpiresAt == nil {
		return false
	}
	return !now.Before(*r.ExpiresAt)
}

// PlayerIdentity is the snapshot of a connected player's identifiers.
type PlayerIdentity struct {
	IP          string `json:"ip"`
	UUID        string `json:"uuid"`
	AccountName string `json:"account_name,omitempty"` // empty = no linked account
	Name        string `json:"name,omitempty"`         // display only
}

// HasAccount returns true if the player has a linked account.
func (p PlayerIdentity) HasAccount() bool {
	return p.AccountName != ""
}

// Values returns the non-empty identifier values used for lookups.
func (p PlayerIdentity) Values() []string {
	values := make([]string, 0, 3)
	for _, v := range []string{p.IP, p.UUID, p.AccountName} {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// DisplayName returns the best label for log lines.
func (p PlayerIdentity) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.AccountName != "":
		return p.AccountName
	default:
		return p.UUID
	}
}

// Identifier pairs a type with the player's value for it.
type Identifier struct {
	Type  IdentifierType
	Value string
}

// MuteIdentifiers returns the identifiers a mute is written under, in creation order:
// uuid, ip address, then account name when linked.
func (p PlayerIdentity) MuteIdentifiers() []Identifier {
	ids := []Identifier{
		{Type: IdentifierUUID, Value: p.UUID},
		{Type: IdentifierIPAddress, Value: p.IP},
	}
	if p.HasAccount() {
		ids = append(ids, Identifier{Type: IdentifierAccountName, Value: p.AccountName})
	}
	return ids
}

// UnmuteIdentifiers returns the identifiers in removal order: uuid, account name when
// linked, then ip address.
func (p PlayerIdentity) UnmuteIdentifiers() []Identifier {
	ids := []Identifier{{Type: IdentifierUUID, Value: p.UUID}}
	if p.HasAccount() {
		ids = append(ids, Identifier{Type: IdentifierAccountName, Value: p.AccountName})
	}
	return append(ids, Identifier{Type: IdentifierIPAddress, Value: p.IP})
}
