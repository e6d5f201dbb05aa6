package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const maxValueLength = 255

// ValidateIdentifier checks a single identifier before it is written.
func ValidateIdentifier(t IdentifierType, value string) error {
	if !t.Valid() {
		return ErrUnknownIdentifierType(string(t))
	}
	if value == "" {
		return ErrValidation(fmt.Sprintf("%s value is required", t))
	}
	if len(value) > maxValueLength {
		return ErrValidation(fmt.Sprintf("%s value exceeds %d characters", t, maxValueLength))
	}
	return nil
}

// ValidateIdentity checks that a player snapshot carries the identifiers every mute needs.
func ValidateIdentity(p PlayerIdentity) error {
	if p.UUID == "" {
		return ErrValidation("uuid is required")
	}
	if p.IP == "" {
		return ErrValidation("ip is required")
	}
	if net.ParseIP(p.IP) == nil {
		return ErrValidation(fmt.Sprintf("invalid ip address: %s", p.IP))
	}
	return nil
}

// ParseMuteDuration turns a moderator-supplied duration into an expiry.
// "", "forever" and "permanent" mean no expiry. "7d" style day counts are accepted
// alongside anything time.ParseDuration understands.
func ParseMuteDuration(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "forever", "permanent":
		return nil, nil
	}

	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return nil, ErrValidation(fmt.Sprintf("invalid duration: %s", s))
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return nil, ErrValidation(fmt.Sprintf("invalid duration: %s", s))
		}
		d = parsed
	}
	if d <= 0 {
		return nil, ErrValidation(fmt.Sprintf("duration must be positive, got %s", s))
	}

	t := now.UTC().Add(d)
	return &t, nil
}
