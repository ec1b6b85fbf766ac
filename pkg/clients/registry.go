package clients

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	sdkerrors "github.com/coveguard/cove-go-sdk/internal/errors"
	"github.com/coveguard/cove-go-sdk/pkg/api"
	"github.com/rs/zerolog/log"
)

// Category names one lazily fetched partition of entities.
type Category string

const (
	CategoryOffice365                 Category = "office365"
	CategoryDynamics365               Category = "dynamics365"
	CategorySalesforce                Category = "salesforce"
	CategoryFileServer                Category = "fileServer"
	CategoryLaptop                    Category = "laptop"
	CategoryVirtualMachines           Category = "virtualMachines"
	CategoryVirtualizationClients     Category = "virtualizationClients"
	CategoryVirtualizationAccessNodes Category = "virtualizationAccessNodes"

	// CategoryInfrastructure is derived from the cache view rather than
	// fetched from a dedicated listing.
	CategoryInfrastructure Category = "infrastructure"
)

var categoryServices = map[Category]string{
	CategoryOffice365:                 api.ServiceOffice365,
	CategoryDynamics365:               api.ServiceDynamics365,
	CategorySalesforce:                api.ServiceSalesforce,
	CategoryFileServer:                api.ServiceFileServers,
	CategoryLaptop:                    api.ServiceLaptops,
	CategoryVirtualMachines:           api.ServiceVirtualMachines,
	CategoryVirtualizationClients:     api.ServiceVirtualizationClients,
	CategoryVirtualizationAccessNodes: api.ServiceVirtualizationAccessNodes,
}

// Registry owns the entity partitions and resolves identifiers to records
// and handles.
//
// Partitions are plain maps with no locking. Refresh reassigns them in
// sequence, so a concurrent reader can observe an inconsistent snapshot;
// callers needing consistency under concurrent refreshes must serialize
// access externally.
type Registry struct {
	transport   api.Transport
	compiler    *QueryCompiler
	fetcher     *RetryingFetcher
	specializer *Specializer

	visible Partition
	hidden  Partition

	// categorized partitions, fetched at most once per refresh epoch
	categories map[Category]Partition

	// cache view backing the derived infrastructure partition
	cacheView map[string]CachedRecord
}

// NewRegistry builds a registry over the transport and performs the initial
// refresh.
func NewRegistry(ctx context.Context, transport api.Transport) (*Registry, error) {
	registry := &Registry{
		transport:   transport,
		compiler:    NewQueryCompiler(),
		fetcher:     NewRetryingFetcher(transport),
		specializer: NewSpecializer(transport),
	}
	if err := registry.Refresh(ctx); err != nil {
		return nil, err
	}
	return registry, nil
}

// Refresh refetches the visible and exhaustive listings, recomputes the
// hidden partition, and invalidates every categorized partition. Not atomic
// across partitions.
func (r *Registry) Refresh(ctx context.Context) error {
	visible, err := r.fetcher.Fetch(ctx, api.ServiceEntities)
	if err != nil {
		return err
	}
	all, err := r.fetcher.Fetch(ctx, api.ServiceEntitiesHidden)
	if err != nil {
		return err
	}

	r.visible = visible
	// An entity is hidden precisely because it appears in the exhaustive
	// listing but not in the permission-scoped one; there is no hidden bit
	// on the wire record.
	r.hidden = all.difference(visible)
	r.categories = make(map[Category]Partition)
	r.cacheView = nil

	log.Debug().
		Int("visible", len(r.visible)).
		Int("hidden", len(r.hidden)).
		Msg("Entity registry refreshed")
	return nil
}

// Visible returns a copy of the visible partition.
func (r *Registry) Visible() Partition { return r.visible.clone() }

// Hidden returns a copy of the hidden partition.
func (r *Registry) Hidden() Partition { return r.hidden.clone() }

// VisibleCount returns the number of visible entities.
func (r *Registry) VisibleCount() int { return len(r.visible) }

// AllNames returns the visible entity names, sorted.
func (r *Registry) AllNames() []string {
	names := r.visible.Names()
	sort.Strings(names)
	return names
}

// Has reports whether the identifier resolves to a known entity. An
// ambiguous display name still counts as present.
func (r *Registry) Has(identifier string) bool {
	_, err := r.Resolve(identifier)
	if err == nil {
		return true
	}
	return errors.Is(err, sdkerrors.ErrAmbiguousDisplayName)
}

// Resolve maps an identifier to a record. Resolution order, short-circuiting
// on first match: visible by name, visible by hostname, the same two steps
// against hidden, then visible by display name. A display name matching
// more than one record is an error, never an arbitrary pick.
func (r *Registry) Resolve(identifier string) (EntityRecord, error) {
	key := strings.ToLower(strings.TrimSpace(identifier))
	if key == "" {
		return EntityRecord{}, sdkerrors.NotFound("resolve_entity", identifier)
	}

	if rec, ok := lookup(r.visible, key); ok {
		return rec, nil
	}
	if rec, ok := lookup(r.hidden, key); ok {
		return rec, nil
	}

	var matches []EntityRecord
	for _, name := range r.visible.Names() {
		if r.visible[name].DisplayName == key {
			matches = append(matches, r.visible[name])
		}
	}
	switch len(matches) {
	case 0:
		return EntityRecord{}, sdkerrors.NotFound("resolve_entity", identifier)
	case 1:
		return matches[0], nil
	default:
		return EntityRecord{}, sdkerrors.Ambiguous("resolve_entity", identifier)
	}
}

// Get resolves the identifier and returns a specialized handle for it. A
// purely numeric identifier is interpreted as an entity id and looked up by
// linear scan over the visible partition. Every call triggers its own
// detail probe.
func (r *Registry) Get(ctx context.Context, identifier string) (Entity, error) {
	trimmed := strings.TrimSpace(identifier)
	if _, err := strconv.Atoi(trimmed); err == nil && trimmed != "" {
		return r.getByID(ctx, trimmed)
	}

	rec, err := r.Resolve(trimmed)
	if err != nil {
		return nil, err
	}
	return r.specializer.Specialize(ctx, rec.ID, rec.Name)
}

func (r *Registry) getByID(ctx context.Context, id string) (Entity, error) {
	for _, name := range r.visible.Names() {
		if r.visible[name].ID == id {
			return r.specializer.Specialize(ctx, id, name)
		}
	}
	return nil, sdkerrors.NotFound("get_entity", id)
}

// Category returns the named partition, fetching it on first access and
// caching it until the next Refresh.
func (r *Registry) Category(ctx context.Context, category Category) (Partition, error) {
	if cached, ok := r.categories[category]; ok {
		return cached.clone(), nil
	}

	var partition Partition
	var err error
	switch category {
	case CategoryInfrastructure:
		partition, err = r.deriveInfrastructure(ctx)
	case CategoryVirtualMachines:
		partition, err = r.fetchCategory(ctx, category, parseVMListing)
	case CategoryOffice365, CategoryDynamics365, CategorySalesforce:
		partition, err = r.fetchCategory(ctx, category, parseAppListing)
	case CategoryFileServer, CategoryLaptop, CategoryVirtualizationClients, CategoryVirtualizationAccessNodes:
		partition, err = r.fetchCategory(ctx, category, parseClientListing)
	default:
		return nil, sdkerrors.NewSDKError(sdkerrors.ErrorTypeValidation, "get_category",
			string(category), sdkerrors.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}

	r.categories[category] = partition
	return partition.clone(), nil
}

func (r *Registry) fetchCategory(ctx context.Context, category Category, parse func([]byte) (Partition, error)) (Partition, error) {
	ok, resp := r.transport.Do(ctx, http.MethodGet, categoryServices[category], nil)
	if !ok {
		return nil, sdkerrors.FetchFailed("fetch_"+string(category), r.transport.ErrorText(resp))
	}
	return parse(resp.Body)
}

// lookup finds a record by exact name, then by hostname (both case-folded).
func lookup(p Partition, key string) (EntityRecord, bool) {
	if rec, ok := p[key]; ok {
		return rec, true
	}
	names := p.Names()
	sort.Strings(names)
	for _, name := range names {
		if p[name].Hostname == key {
			return p[name], true
		}
	}
	return EntityRecord{}, false
}

// deriveInfrastructure filters the cache view by the isInfrastructure flag.
func (r *Registry) deriveInfrastructure(ctx context.Context) (Partition, error) {
	if r.cacheView == nil {
		view, _, err := r.CachedEntities(ctx, QueryRequest{})
		if err != nil {
			return nil, err
		}
		r.cacheView = view
	}

	partition := make(Partition)
	for name, rec := range r.cacheView {
		if !rec.IsInfrastructure {
			continue
		}
		partition[name] = EntityRecord{
			Name:        rec.Name,
			ID:          rec.ID,
			Hostname:    rec.Hostname,
			DisplayName: rec.DisplayName,
		}
	}
	return partition, nil
}

// CachedEntities queries the paginated server-side cache with the compiled
// form of the request and returns the matching records together with the
// server's filterQueryCount.
func (r *Registry) CachedEntities(ctx context.Context, req QueryRequest) (map[string]CachedRecord, int, error) {
	query, err := r.compiler.Compile(req)
	if err != nil {
		return nil, 0, err
	}

	ok, resp := r.transport.Do(ctx, http.MethodGet, api.ServiceEntityCache+query, nil)
	if !ok {
		return nil, 0, sdkerrors.FetchFailed("fetch_entity_cache", r.transport.ErrorText(resp))
	}
	return parseCacheListing(resp.Body)
}
