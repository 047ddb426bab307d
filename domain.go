package rescache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// CepCache composes a ResilientCache, a RateLimiter and an ordered list of
// AddressProvider collaborators into the address-lookup-by-postal-code use
// case. It owns its own ResilientCache instance and admission budget, per
// spec §9's design note that logical caches never share one.
type CepCache struct {
	cache       *ResilientCache
	limiter     *RateLimiter
	providers   []Provider[*AddressData]
	addrLookups map[string]AddressProvider
}

// NewCepCache wires a ResilientCache scoped by the "cache:cep:" prefix
// (spec §6) around providers, rate limited by limiter.
func NewCepCache(client redis.UniversalClient, limiter *RateLimiter, providers []AddressProvider, opts ...Option) *CepCache {
	generic := make([]Provider[*AddressData], 0, len(providers))
	byName := make(map[string]AddressProvider, len(providers))
	for _, p := range providers {
		generic = append(generic, p)
		byName[p.Name()] = p
	}
	return &CepCache{
		cache:       NewResilientCache("cep", client, opts...),
		limiter:     limiter,
		providers:   generic,
		addrLookups: byName,
	}
}

// FetchAddress resolves cep through the cache, falling through to
// ExecuteStrategy over the configured providers on a miss.
func (c *CepCache) FetchAddress(ctx context.Context, cep string) (*AddressData, error) {
	key := GenerateKey("cache:cep:", map[string]any{"cep": cep})

	raw, err := c.cache.GetOrFetch(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		addr, err := ExecuteStrategy(ctx, c.providers, func(ctx context.Context, p Provider[*AddressData]) (*AddressData, error) {
			provider := c.addrLookups[p.Name()]
			if !c.limiter.Allow(ctx, provider.Name()) {
				return nil, errRateLimited
			}
			return provider.FetchAddress(ctx, cep)
		})
		c.cache.observeStrategyOutcome(strategyOutcomeFor(err))
		if err != nil {
			return nil, err
		}
		return json.Marshal(addr)
	}, mapNotFound("InvalidCepError", "CEP not found"))
	if err != nil {
		return nil, err
	}

	var addr AddressData
	if err := json.Unmarshal(raw, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

// GeocodingCache composes a ResilientCache, a RateLimiter and an ordered
// list of GeocodingProvider collaborators into the geocoding use case.
type GeocodingCache struct {
	cache     *ResilientCache
	limiter   *RateLimiter
	providers []Provider[*Coordinates]
	byName    map[string]GeocodingProvider
}

// NewGeocodingCache wires a ResilientCache scoped by the
// "cache:geocoding:" prefix (spec §6) around providers.
func NewGeocodingCache(client redis.UniversalClient, limiter *RateLimiter, providers []GeocodingProvider, opts ...Option) *GeocodingCache {
	generic := make([]Provider[*Coordinates], 0, len(providers))
	byName := make(map[string]GeocodingProvider, len(providers))
	for _, p := range providers {
		generic = append(generic, p)
		byName[p.Name()] = p
	}
	return &GeocodingCache{
		cache:     NewResilientCache("geocoding", client, opts...),
		limiter:   limiter,
		providers: generic,
		byName:    byName,
	}
}

// Search resolves a free-text query through the cache.
func (g *GeocodingCache) Search(ctx context.Context, query string) (*Coordinates, error) {
	key := GenerateKey("cache:geocoding:", map[string]any{"q": query})
	return g.fetch(ctx, key, func(ctx context.Context, p GeocodingProvider) (*Coordinates, error) {
		return p.Search(ctx, query)
	})
}

// SearchStructured resolves a structured query through the cache.
func (g *GeocodingCache) SearchStructured(ctx context.Context, q StructuredQuery) (*Coordinates, error) {
	key := GenerateKey("cache:geocoding:", map[string]any{
		"street": q.Street, "city": q.City, "state": q.State, "country": q.Country,
	})
	return g.fetch(ctx, key, func(ctx context.Context, p GeocodingProvider) (*Coordinates, error) {
		return p.SearchStructured(ctx, q)
	})
}

func (g *GeocodingCache) fetch(ctx context.Context, key string, call func(context.Context, GeocodingProvider) (*Coordinates, error)) (*Coordinates, error) {
	raw, err := g.cache.GetOrFetch(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		coords, err := ExecuteStrategy(ctx, g.providers, func(ctx context.Context, p Provider[*Coordinates]) (*Coordinates, error) {
			provider := g.byName[p.Name()]
			if !g.limiter.Allow(ctx, provider.Name()) {
				return nil, errRateLimited
			}
			return call(ctx, provider)
		})
		g.cache.observeStrategyOutcome(strategyOutcomeFor(err))
		if err != nil {
			return nil, err
		}
		return json.Marshal(coords)
	}, mapNotFound("CoordinatesNotFound", "coordinates not found"))
	if err != nil {
		return nil, err
	}

	var coords Coordinates
	if err := json.Unmarshal(raw, &coords); err != nil {
		return nil, err
	}
	return &coords, nil
}

// strategyOutcomeFor classifies an ExecuteStrategy result for the
// strategy-outcome counter.
func strategyOutcomeFor(err error) string {
	switch {
	case err == nil:
		return strategyValue
	case errors.Is(err, ErrNotFound):
		return strategyNotFound
	default:
		return strategyFailure
	}
}

// errRateLimited marks a provider call skipped by the rate limiter as a
// system error: it is never mapped to a cacheable not-found, since a
// busy provider tells us nothing about whether the entity exists.
var errRateLimited = errors.New("rescache: provider rate limit exceeded")

// mapNotFound builds the ErrorMapper a caller hands GetOrFetch: only
// ExecuteStrategy's ErrNotFound becomes a cacheable negative envelope, with
// errType as the envelope's e.type so a consumer can translate it straight
// back to its own domain error (e.g. InvalidCepError).
func mapNotFound(errType, message string) ErrorMapper {
	return func(err error) *CachedFailure {
		if !errors.Is(err, ErrNotFound) {
			return nil
		}
		return &CachedFailure{Type: errType, Message: message}
	}
}
