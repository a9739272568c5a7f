package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrConflict      = errors.New("already exists")
)

// KV is the storage port every history and profile is kept behind. Values
// are JSON documents; Append treats the value at key as a JSON array and
// adds item to its end, creating the array when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Append(ctx context.Context, key string, item []byte) error
}

const (
	KeyVisitHistory = "visitHistory"
	KeyCurrentVisit = "currentVisit"
	KeyInvoices     = "invoices"
	KeyCustomers    = "customers"
	KeyUsers        = "users"
)

const keyPrefix = "fieldsales"

// Key namespaces name under the owning sales rep.
func Key(owner string, name string) string {
	owner = strings.ToLower(strings.TrimSpace(owner))
	if owner == "" {
		owner = "local"
	}
	return keyPrefix + ":" + owner + ":" + name
}

func GlobalKey(name string) string {
	return keyPrefix + ":" + name
}

func LoadList[T any](ctx context.Context, kv KV, key string) ([]T, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidRecord, key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func LoadRecord[T any](ctx context.Context, kv KV, key string) (T, bool, error) {
	var record T
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok || len(raw) == 0 || string(raw) == "null" {
		return record, false, err
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return record, false, fmt.Errorf("%w: decode %s: %v", ErrInvalidRecord, key, err)
	}
	return record, true, nil
}

func SetRecord(ctx context.Context, kv KV, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, payload)
}

func AppendRecord(ctx context.Context, kv KV, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return kv.Append(ctx, key, payload)
}

// PrependRecord stores value at the head of the list at key, keeping the list
// most-recent-first.
func PrependRecord[T any](ctx context.Context, kv KV, key string, value T) error {
	items, err := LoadList[T](ctx, kv, key)
	if err != nil {
		return err
	}
	items = append([]T{value}, items...)
	return SetRecord(ctx, kv, key, items)
}

// AppendJSON adds item to the JSON array encoded in current. A nil or empty
// current yields a one-element array.
func AppendJSON(current []byte, item []byte) ([]byte, error) {
	if !json.Valid(item) {
		return nil, fmt.Errorf("%w: item is not valid JSON", ErrInvalidRecord)
	}
	var items []json.RawMessage
	if len(current) > 0 {
		if err := json.Unmarshal(current, &items); err != nil {
			return nil, fmt.Errorf("%w: existing value is not a JSON array", ErrInvalidRecord)
		}
	}
	items = append(items, json.RawMessage(item))
	return json.Marshal(items)
}
