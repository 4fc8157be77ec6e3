package account

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	playerPrefix = "player:"
	namedPrefix  = "named:"
)

// ErrInvalidID is returned when an identifier cannot be parsed.
var ErrInvalidID = errors.New("invalid account id")

// ID identifies an account. Player accounts and named (non-player) accounts
// live in separate prefixed spaces so the two can never collide.
type ID string

// PlayerID returns the identifier of a player account.
func PlayerID(id uuid.UUID) ID {
	return ID(playerPrefix + id.String())
}

// NamedID returns the identifier of a non-player account such as a shop or bank.
func NamedID(name string) ID {
	return ID(namedPrefix + name)
}

// ParseID accepts "player:<uuid>", "named:<name>", a bare UUID (player) or any
// other non-empty string (named).
func ParseID(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", ErrInvalidID
	case strings.HasPrefix(raw, playerPrefix):
		u, err := uuid.Parse(strings.TrimPrefix(raw, playerPrefix))
		if err != nil {
			return "", ErrInvalidID
		}
		return PlayerID(u), nil
	case strings.HasPrefix(raw, namedPrefix):
		name := strings.TrimPrefix(raw, namedPrefix)
		if name == "" {
			return "", ErrInvalidID
		}
		return NamedID(name), nil
	}
	if u, err := uuid.Parse(raw); err == nil {
		return PlayerID(u), nil
	}
	return NamedID(raw), nil
}

// IsPlayer reports whether the id belongs to the player space.
func (id ID) IsPlayer() bool {
	return strings.HasPrefix(string(id), playerPrefix)
}

func (id ID) String() string {
	return string(id)
}
