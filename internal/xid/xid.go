package xid

import (
	"github.com/google/uuid"
)

// New returns prefix-<uuid v4>. An empty prefix yields the bare UUID.
func New(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
