package resolver

import (
	"context"
	"log"
	"strings"
	"time"

	"newsimpact/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	SourceLookup = "lookup"
	SourceAlias  = "alias"

	minCandidateConfidence = 0.5
)

// Lookup queries an external symbol search.
type Lookup interface {
	LookupSymbol(ctx context.Context, name string) ([]domain.SymbolCandidate, error)
}

// Cache stores mappings by normalized company name. Implementations must
// serialize writes to the same key.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.SymbolMapping, error)
	Put(ctx context.Context, key string, m domain.SymbolMapping) error
	Delete(ctx context.Context, key string) error
}

type Config struct {
	DefaultMarket string
	UnresolvedTTL time.Duration
}

type Resolver struct {
	tracer  trace.Tracer
	lookup  Lookup
	aliases *AliasTable
	cache   Cache
	cfg     Config
	group   singleflight.Group
	now     func() time.Time
}

// New builds a resolver. lookup may be nil, in which case only the alias
// table is consulted.
func New(tracer trace.Tracer, lookup Lookup, aliases *AliasTable, cache Cache, cfg Config) *Resolver {
	if cfg.UnresolvedTTL <= 0 {
		cfg.UnresolvedTTL = 24 * time.Hour
	}
	cfg.DefaultMarket = strings.ToUpper(strings.TrimSpace(cfg.DefaultMarket))
	if aliases == nil {
		aliases = NewAliasTable(nil)
	}
	return &Resolver{
		tracer:  tracer,
		lookup:  lookup,
		aliases: aliases,
		cache:   cache,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Resolve returns the mapping for name. Unresolved outcomes are returned as
// mappings, not errors; an error means ctx ended.
func (r *Resolver) Resolve(ctx context.Context, name string) (domain.SymbolMapping, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.resolve")
	defer span.End()

	name = strings.TrimSpace(name)
	key := domain.NormalizeCompanyName(name)
	span.SetAttributes(attribute.String("company.key", key))
	if key == "" {
		return r.unresolved(name, domain.ReasonNotFound), nil
	}

	if m, ok := r.cached(ctx, key); ok {
		return m, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if m, ok := r.cached(ctx, key); ok {
			return m, nil
		}
		m := r.resolveUncached(ctx, name)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.cache.Put(ctx, key, m); err != nil {
			log.Printf("resolver: cache put %q failed: %v", key, err)
		}
		return m, nil
	})
	if err != nil {
		return domain.SymbolMapping{}, err
	}
	return v.(domain.SymbolMapping), nil
}

// Refresh drops the cached mapping for name and resolves it again.
func (r *Resolver) Refresh(ctx context.Context, name string) (domain.SymbolMapping, error) {
	key := domain.NormalizeCompanyName(name)
	if key != "" {
		if err := r.cache.Delete(ctx, key); err != nil {
			log.Printf("resolver: cache delete %q failed: %v", key, err)
		}
		r.group.Forget(key)
	}
	return r.Resolve(ctx, name)
}

func (r *Resolver) cached(ctx context.Context, key string) (domain.SymbolMapping, bool) {
	m, err := r.cache.Get(ctx, key)
	if err != nil {
		log.Printf("resolver: cache get %q failed: %v", key, err)
		return domain.SymbolMapping{}, false
	}
	if m == nil || m.Expired(r.now()) {
		return domain.SymbolMapping{}, false
	}
	return *m, true
}

func (r *Resolver) resolveUncached(ctx context.Context, name string) domain.SymbolMapping {
	ambiguous := false

	if r.lookup != nil {
		candidates, err := r.lookup.LookupSymbol(ctx, name)
		if err != nil {
			log.Printf("resolver: lookup %q failed: %v", name, err)
		} else {
			c, outcome := r.pick(confident(candidates))
			if outcome == pickOne {
				return r.resolved(name, c, SourceLookup)
			}
			ambiguous = outcome == pickAmbiguous
		}
	}

	c, outcome := r.pick(r.aliases.Match(name))
	switch {
	case outcome == pickOne:
		return r.resolved(name, c, SourceAlias)
	case outcome == pickAmbiguous || ambiguous:
		return r.unresolved(name, domain.ReasonAmbiguous)
	default:
		return r.unresolved(name, domain.ReasonNotFound)
	}
}

type pickOutcome int

const (
	pickNone pickOutcome = iota
	pickOne
	pickAmbiguous
)

// pick applies the tie-break: a single candidate wins outright, several are
// narrowed to the default market and must leave exactly one.
func (r *Resolver) pick(candidates []domain.SymbolCandidate) (domain.SymbolCandidate, pickOutcome) {
	switch len(candidates) {
	case 0:
		return domain.SymbolCandidate{}, pickNone
	case 1:
		return candidates[0], pickOne
	}
	var local []domain.SymbolCandidate
	for _, c := range candidates {
		if r.cfg.DefaultMarket != "" && strings.EqualFold(c.Exchange, r.cfg.DefaultMarket) {
			local = append(local, c)
		}
	}
	if len(local) == 1 {
		return local[0], pickOne
	}
	return domain.SymbolCandidate{}, pickAmbiguous
}

func confident(candidates []domain.SymbolCandidate) []domain.SymbolCandidate {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Symbol != "" && c.Confidence >= minCandidateConfidence {
			out = append(out, c)
		}
	}
	return out
}

func (r *Resolver) resolved(name string, c domain.SymbolCandidate, source string) domain.SymbolMapping {
	return domain.SymbolMapping{
		CompanyName: name,
		Symbol:      strings.ToUpper(c.Symbol),
		Exchange:    strings.ToUpper(c.Exchange),
		Status:      domain.ResolutionResolved,
		Source:      source,
		Confidence:  c.Confidence,
		ResolvedAt:  r.now().UTC(),
	}
}

func (r *Resolver) unresolved(name, reason string) domain.SymbolMapping {
	now := r.now().UTC()
	expires := now.Add(r.cfg.UnresolvedTTL)
	return domain.SymbolMapping{
		CompanyName: name,
		Status:      domain.ResolutionUnresolved,
		Reason:      reason,
		ResolvedAt:  now,
		ExpiresAt:   &expires,
	}
}
