// Package repository stores code model entities under keys.Key and serves
// them to a uid.Provider.
package repository

import (
	"context"
	"maps"

	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
	"github.com/standardbeagle/uidmgr/internal/keys"
	"github.com/standardbeagle/uidmgr/internal/uid"
)

// Record is a stored code model entity. Its handle is bound on load and is
// not part of the stored payload.
type Record struct {
	Key   keys.Key          `json:"-"`
	Name  string            `json:"name"`
	Text  string            `json:"text,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`

	handle *uid.UID
}

var (
	_ uid.Identifiable = (*Record)(nil)
	_ uid.Spanned      = (*Record)(nil)
	_ uid.Disposable   = (*Record)(nil)
)

// NewRecord creates a record bound to the canonical handle of key
func NewRecord(m *uid.Manager, key keys.Key, name string) (*Record, error) {
	r := &Record{Key: key, Name: name}
	if m == nil {
		return r, nil
	}
	if err := r.bind(m); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Record) bind(m *uid.Manager) error {
	u, err := m.SharedKeyUID(r.Key)
	if err != nil {
		return err
	}
	r.handle = u
	return nil
}

// UID returns the bound handle; nil for records loaded without a manager
func (r *Record) UID() *uid.UID { return r.handle }

func (r *Record) StartOffset() int { return int(r.Key.Start) }

func (r *Record) EndOffset() int { return int(r.Key.End) }

// Dispose drops the record's text and attributes
func (r *Record) Dispose() {
	r.Text = ""
	r.Attrs = nil
}

// clone returns a copy that shares no mutable state with r
func (r *Record) clone() *Record {
	cp := *r
	cp.Attrs = maps.Clone(r.Attrs)
	return &cp
}

func (r *Record) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Key.String()
}

// Store is the write side shared by the repository implementations
type Store interface {
	uid.Repository
	Put(ctx context.Context, r *Record) error
	DropPartition(ctx context.Context, unit uint32) (int, error)
}

// asKey narrows a uid.Key to keys.Key
func asKey(op string, k uid.Key) (keys.Key, error) {
	key, ok := k.(keys.Key)
	if !ok {
		return keys.Key{}, uiderrors.NewArgumentError(op, "key", "unsupported key type")
	}
	return key, nil
}
