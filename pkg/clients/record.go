// Package clients mirrors the entities managed by a remote backup-management
// server into local in-memory partitions and resolves caller queries against
// them. It owns the entity registry, the remote query compiler, the retrying
// listing fetcher, entity specialization, and the readiness probe.
package clients

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// EntityRecord is one entity as parsed from a listing response. Records are
// replaced wholesale on refresh, never patched in place.
type EntityRecord struct {
	Name        string // unique key within a partition, case-folded
	ID          string
	Hostname    string // case-folded
	DisplayName string // case-folded
}

// Partition maps entity name to record. The registry holds several
// partitions at once; membership across them is not exclusive.
type Partition map[string]EntityRecord

// Names returns the partition's keys, unordered.
func (p Partition) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	return names
}

// clone returns a shallow copy so callers cannot mutate registry state.
func (p Partition) clone() Partition {
	out := make(Partition, len(p))
	for name, rec := range p {
		out[name] = rec
	}
	return out
}

// difference returns the records of p whose names are absent from other.
func (p Partition) difference(other Partition) Partition {
	out := make(Partition)
	for name, rec := range p {
		if _, ok := other[name]; !ok {
			out[name] = rec
		}
	}
	return out
}

// entityIdentity is the wire identity block shared by all listing shapes.
type entityIdentity struct {
	ClientName  string      `json:"clientName"`
	ClientID    json.Number `json:"clientId"`
	HostName    string      `json:"hostName"`
	DisplayName string      `json:"displayName"`
}

func (e entityIdentity) record() EntityRecord {
	return EntityRecord{
		Name:        strings.ToLower(e.ClientName),
		ID:          e.ClientID.String(),
		Hostname:    strings.ToLower(e.HostName),
		DisplayName: strings.ToLower(e.DisplayName),
	}
}

// clientListingEnvelope is the standard listing shape: a clientProperties
// array of wrapped identity blocks.
type clientListingEnvelope struct {
	ClientProperties []struct {
		Client struct {
			ClientEntity entityIdentity `json:"clientEntity"`
		} `json:"client"`
	} `json:"clientProperties"`
}

// appListingEnvelope is the shape used by the app-category listings
// (Office 365, Dynamics 365, Salesforce).
type appListingEnvelope struct {
	Clients []struct {
		ClientEntity entityIdentity `json:"clientEntity"`
	} `json:"clients"`
}

// vmListingEnvelope is the virtual-machine listing. VM names are not
// guaranteed unique; see parseVMListing for the dedup policy.
type vmListingEnvelope struct {
	VirtualMachines []struct {
		Name        string      `json:"name"`
		GUID        string      `json:"vmGUID"`
		ClientID    json.Number `json:"clientId"`
		Host        string      `json:"host"`
		DisplayName string      `json:"displayName"`
	} `json:"virtualMachines"`
}

// parseClientListing parses the standard listing envelope. An absent or
// empty clientProperties key yields an empty partition; that is valid data,
// not an error.
func parseClientListing(body []byte) (Partition, error) {
	var envelope clientListingEnvelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("parse entity listing: %w", err)
		}
	}

	partition := make(Partition, len(envelope.ClientProperties))
	for _, entry := range envelope.ClientProperties {
		rec := entry.Client.ClientEntity.record()
		if rec.Name == "" {
			log.Warn().Str("id", rec.ID).Msg("Skipping listing entry without a client name")
			continue
		}
		partition[rec.Name] = rec
	}
	return partition, nil
}

// parseAppListing parses the app-category envelope.
func parseAppListing(body []byte) (Partition, error) {
	var envelope appListingEnvelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("parse app listing: %w", err)
		}
	}

	partition := make(Partition, len(envelope.Clients))
	for _, entry := range envelope.Clients {
		rec := entry.ClientEntity.record()
		if rec.Name == "" {
			continue
		}
		partition[rec.Name] = rec
	}
	return partition, nil
}

// parseVMListing parses the VM envelope. Duplicate names are kept by
// suffixing the 2nd, 3rd, ... occurrences as name_2, name_3, ... in raw
// listing order; the first occurrence keeps the bare name.
func parseVMListing(body []byte) (Partition, error) {
	var envelope vmListingEnvelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("parse vm listing: %w", err)
		}
	}

	partition := make(Partition, len(envelope.VirtualMachines))
	seen := make(map[string]int, len(envelope.VirtualMachines))
	for _, vm := range envelope.VirtualMachines {
		name := strings.ToLower(vm.Name)
		if name == "" {
			continue
		}
		seen[name]++
		key := name
		if n := seen[name]; n > 1 {
			key = fmt.Sprintf("%s_%d", name, n)
		}
		partition[key] = EntityRecord{
			Name:        key,
			ID:          vm.ClientID.String(),
			Hostname:    strings.ToLower(vm.Host),
			DisplayName: strings.ToLower(vm.DisplayName),
		}
	}
	return partition, nil
}

// CachedRecord is the richer per-entity view returned by the paginated
// cache endpoint.
type CachedRecord struct {
	Name             string
	ID               string
	Hostname         string
	DisplayName      string
	Company          string
	OSName           string
	Version          string
	IsInfrastructure bool
	IsDeleted        bool
	Tags             []string
}

type cacheListingEnvelope struct {
	FilterQueryCount int `json:"filterQueryCount"`
	Clients          []struct {
		Name             string      `json:"name"`
		ID               json.Number `json:"id"`
		HostName         string      `json:"hostName"`
		DisplayName      string      `json:"displayName"`
		CompanyName      string      `json:"companyName"`
		OSName           string      `json:"osName"`
		Version          string      `json:"version"`
		IsInfrastructure bool        `json:"isInfrastructure"`
		IsDeletedClient  bool        `json:"isDeletedClient"`
		Tags             []string    `json:"tags"`
	} `json:"clients"`
}

// parseCacheListing parses the cache envelope, returning the records keyed
// by folded name together with the server's filterQueryCount.
func parseCacheListing(body []byte) (map[string]CachedRecord, int, error) {
	var envelope cacheListingEnvelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, 0, fmt.Errorf("parse cache listing: %w", err)
		}
	}

	records := make(map[string]CachedRecord, len(envelope.Clients))
	for _, entry := range envelope.Clients {
		name := strings.ToLower(entry.Name)
		if name == "" {
			continue
		}
		records[name] = CachedRecord{
			Name:             name,
			ID:               entry.ID.String(),
			Hostname:         strings.ToLower(entry.HostName),
			DisplayName:      strings.ToLower(entry.DisplayName),
			Company:          entry.CompanyName,
			OSName:           entry.OSName,
			Version:          entry.Version,
			IsInfrastructure: entry.IsInfrastructure,
			IsDeleted:        entry.IsDeletedClient,
			Tags:             entry.Tags,
		}
	}
	return records, envelope.FilterQueryCount, nil
}
