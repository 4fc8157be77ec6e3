package account

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseID(t *testing.T) {
	u := uuid.New()

	id, err := ParseID(u.String())
	if err != nil {
		t.Fatalf("parse bare uuid: %v", err)
	}
	if id != PlayerID(u) || !id.IsPlayer() {
		t.Fatalf("expected player id, got %s", id)
	}

	id, err = ParseID("player:" + u.String())
	if err != nil || id != PlayerID(u) {
		t.Fatalf("expected canonical player id, got %s %v", id, err)
	}

	id, err = ParseID("town-bank")
	if err != nil || id != NamedID("town-bank") || id.IsPlayer() {
		t.Fatalf("expected named id, got %s %v", id, err)
	}

	id, err = ParseID("named:" + u.String())
	if err != nil || id.IsPlayer() {
		t.Fatalf("explicit named prefix must stay named, got %s %v", id, err)
	}
	if id == PlayerID(u) {
		t.Fatal("named and player spaces must not collide")
	}

	for _, raw := range []string{"", "  ", "player:not-a-uuid", "named:"} {
		if _, err := ParseID(raw); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("expected invalid id for %q, got %v", raw, err)
		}
	}
}
