package uid

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
)

// Identifiable entities know their own handle
type Identifiable interface {
	UID() *UID
}

// Spanned entities expose their source position range
type Spanned interface {
	StartOffset() int
	EndOffset() int
}

// Disposable entities release secondary resources when decommissioned
type Disposable interface {
	Dispose()
}

// Provider resolves handles to live entities and wraps entities into handles
type Provider struct {
	repo    Repository
	manager *Manager

	diagnostics DiagnosticSink
	exemptions  *Exemptions

	loads singleflight.Group

	// entity types already reported for transient wrapping
	transientTypes sync.Map
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithDiagnostics sets the anomaly sink; nil restores the no-op sink
func WithDiagnostics(sink DiagnosticSink) ProviderOption {
	return func(p *Provider) {
		if sink == nil {
			sink = NopDiagnostics
		}
		p.diagnostics = sink
	}
}

// WithExemptions sets the entity types excused from missing-UID reports
func WithExemptions(e *Exemptions) ProviderOption {
	return func(p *Provider) {
		p.exemptions = e
	}
}

// NewProvider creates a provider backed by repo. Wrapped transient handles are
// interned through manager.
func NewProvider(repo Repository, manager *Manager, opts ...ProviderOption) *Provider {
	p := &Provider{
		repo:        repo,
		manager:     manager,
		diagnostics: NopDiagnostics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve returns the live entity for u. Transient handles return their
// entity without touching the repository. Persisted handles return the cached
// entity or load it; concurrent loads of the same key share one repository
// call. The shared call is not cancelled by any one caller; each caller stops
// waiting when its own ctx is done. Repository errors are returned unchanged.
// A nil entity with a nil error means the repository has nothing under the key.
func (p *Provider) Resolve(ctx context.Context, u *UID) (any, error) {
	if u == nil {
		return nil, uiderrors.NewArgumentError("Resolve", "uid", "must not be nil")
	}
	if u.variant == Transient {
		return u.self, nil
	}
	if v, ok := u.Cached(); ok {
		return v, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loadCtx := context.WithoutCancel(ctx)
	ch := p.loads.DoChan(loadKey(u), func() (any, error) {
		return p.repo.Get(loadCtx, u.key)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	v := res.Val
	if v == nil {
		return nil, nil
	}

	u.setCached(v)
	p.checkIdentity(v, u)
	return v, nil
}

func loadKey(u *UID) string {
	return strconv.FormatUint(u.hash, 16) + "|" + u.key.String()
}

// Wrap returns a handle for entity: the entity's own UID when it has one,
// otherwise the canonical transient UID for it.
func (p *Provider) Wrap(entity any) (*UID, error) {
	if isNil(entity) {
		return nil, uiderrors.NewArgumentError("Wrap", "entity", "must not be nil")
	}

	if id, ok := entity.(Identifiable); ok {
		if u := id.UID(); u != nil {
			return u, nil
		}
		p.checkIdentity(entity, nil)
	} else {
		p.reportTransient(entity)
	}

	u, err := NewSelfUID(entity)
	if err != nil {
		return nil, err
	}
	if p.manager == nil {
		return u, nil
	}
	return p.manager.SharedUID(u)
}

// Dispose decommissions entity: its embedded handle drops the cached value and
// Disposable entities release their resources.
func (p *Provider) Dispose(entity any) {
	if isNil(entity) {
		return
	}
	if id, ok := entity.(Identifiable); ok {
		if u := id.UID(); u != nil {
			u.ClearCache()
		}
	}
	if d, ok := entity.(Disposable); ok {
		d.Dispose()
	}
}

// PartitionOf forwards to the repository's partition mapping
func (p *Provider) PartitionOf(u *UID) int {
	if u == nil || u.variant != Persisted {
		return NoPartition
	}
	return p.repo.PartitionOf(u.key)
}

// checkIdentity reports entities that should carry a UID but do not
func (p *Provider) checkIdentity(entity any, via *UID) {
	id, ok := entity.(Identifiable)
	if !ok || id.UID() != nil || p.exemptions.Match(entity) {
		return
	}
	a := Anomaly{
		Kind:       AnomalyMissingUID,
		EntityType: typeName(entity),
		Entity:     fmt.Sprint(entity),
	}
	if s, ok := entity.(Spanned); ok {
		a.Span = &Span{Start: s.StartOffset(), End: s.EndOffset()}
	}
	if via != nil {
		a.UID = via.String()
	}
	p.diagnostics.Report(a)
}

// reportTransient reports the first transient wrap of each entity type
func (p *Provider) reportTransient(entity any) {
	name := typeName(entity)
	if _, seen := p.transientTypes.LoadOrStore(name, struct{}{}); seen {
		return
	}
	p.diagnostics.Report(Anomaly{
		Kind:       AnomalyTransientUID,
		EntityType: name,
		Entity:     fmt.Sprint(entity),
	})
}
