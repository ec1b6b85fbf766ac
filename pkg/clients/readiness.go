package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sdkerrors "github.com/coveguard/cove-go-sdk/internal/errors"
	"github.com/coveguard/cove-go-sdk/pkg/api"
)

// Status is the parsed readiness state of an entity. The wire contract is a
// string sentinel; it is parsed exactly once at the response boundary.
type Status int

const (
	StatusUnknown Status = iota
	StatusReady
	StatusNotReady
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusNotReady:
		return "not ready"
	default:
		return "unknown"
	}
}

// readySentinel is the exact status string the server reports for a
// reachable, trusted entity.
const readySentinel = "Ready."

func parseStatus(wire string) Status {
	switch wire {
	case "":
		return StatusUnknown
	case readySentinel:
		return StatusReady
	default:
		return StatusNotReady
	}
}

// ReadinessOptions are the boolean switches of the readiness-check
// endpoint.
type ReadinessOptions struct {
	NetworkCheck         bool
	ResourceCapacity     bool
	IncludeDisabled      bool
	CSClientNetworkCheck bool // restrict to the CS-to-client network path
	ApplicationCheck     bool
	AdditionalResources  bool
	ApplicationReadiness bool
}

func (o ReadinessOptions) values() url.Values {
	values := url.Values{}
	values.Set("network", strconv.FormatBool(o.NetworkCheck))
	values.Set("resourceCapacity", strconv.FormatBool(o.ResourceCapacity))
	values.Set("includeDisabledClients", strconv.FormatBool(o.IncludeDisabled))
	values.Set("csccNetworkCheck", strconv.FormatBool(o.CSClientNetworkCheck))
	values.Set("applicationCheck", strconv.FormatBool(o.ApplicationCheck))
	values.Set("additionalResources", strconv.FormatBool(o.AdditionalResources))
	values.Set("applicationReadiness", strconv.FormatBool(o.ApplicationReadiness))
	return values
}

// DefaultReadinessOptions checks the network path only.
func DefaultReadinessOptions() ReadinessOptions {
	return ReadinessOptions{NetworkCheck: true}
}

// readinessEnvelope is the probe response. Both the summary list and the
// detail field are optional; their absence leaves prior state untouched.
type readinessEnvelope struct {
	Summary []readinessSummary `json:"summary"`
	Detail  *string            `json:"detail"`
}

type readinessSummary struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Entity struct {
		EntityName string `json:"entityName"`
	} `json:"entity"`
}

// ReadinessProbe checks whether the server can currently communicate with
// one entity. IsReady and IsMongoDBReady each issue a fresh probe; the
// Status, Reason and Detail accessors return the last probed values without
// re-probing.
type ReadinessProbe struct {
	transport api.Transport
	id        string

	status    Status
	reason    string
	detail    string
	summaries []readinessSummary
}

// NewReadinessProbe returns an unprobed state object for the entity.
func NewReadinessProbe(transport api.Transport, id string) *ReadinessProbe {
	return &ReadinessProbe{transport: transport, id: id}
}

// Probe issues the readiness check and parses the response into the probe's
// state.
func (p *ReadinessProbe) Probe(ctx context.Context, opts ReadinessOptions) error {
	ok, resp := p.transport.Do(ctx, http.MethodGet, api.Readiness(p.id, opts.values()), nil)
	if !ok {
		return sdkerrors.NewSDKError(sdkerrors.ErrorTypeAPI, "check_readiness", p.id,
			fmt.Errorf("%s", p.transport.ErrorText(resp)))
	}

	var envelope readinessEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return fmt.Errorf("parse readiness response: %w", err)
	}

	if len(envelope.Summary) > 0 {
		p.status = parseStatus(envelope.Summary[0].Status)
		p.reason = envelope.Summary[0].Reason
		p.summaries = envelope.Summary
	}
	if envelope.Detail != nil {
		p.detail = *envelope.Detail
	}
	return nil
}

// IsReady issues a fresh probe and reports whether the entity is ready.
func (p *ReadinessProbe) IsReady(ctx context.Context, opts ReadinessOptions) (bool, error) {
	if err := p.Probe(ctx, opts); err != nil {
		return false, err
	}
	return p.status == StatusReady, nil
}

// IsMongoDBReady issues a fresh probe with the application check enabled
// and reports whether the MongoDB application on the entity is ready. An
// entity without a MongoDB summary entry is not ready.
func (p *ReadinessProbe) IsMongoDBReady(ctx context.Context) (bool, error) {
	opts := DefaultReadinessOptions()
	opts.ApplicationCheck = true
	if err := p.Probe(ctx, opts); err != nil {
		return false, err
	}
	for _, summary := range p.summaries {
		if summary.Entity.EntityName == "MongoDB" {
			return parseStatus(strings.TrimSpace(summary.Status)) == StatusReady, nil
		}
	}
	return false, nil
}

// Status returns the overall state from the last probe.
func (p *ReadinessProbe) Status() Status { return p.status }

// Reason returns the server's reason string from the last probe.
func (p *ReadinessProbe) Reason() string { return p.reason }

// Detail returns the server's detail text from the last probe.
func (p *ReadinessProbe) Detail() string { return p.detail }
