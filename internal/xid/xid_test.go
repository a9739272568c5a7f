package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewWithPrefix(t *testing.T) {
	id := New("cust")
	if !strings.HasPrefix(id, "cust-") {
		t.Fatalf("expected cust- prefix, got %s", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "cust-")); err != nil {
		t.Fatalf("expected uuid suffix: %v", err)
	}
}

func TestNewWithoutPrefixIsUUID(t *testing.T) {
	if _, err := uuid.Parse(New("")); err != nil {
		t.Fatalf("expected bare uuid: %v", err)
	}
	if New("") == New("") {
		t.Fatalf("ids must differ")
	}
}
