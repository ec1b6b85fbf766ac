package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	sdkerrors "github.com/coveguard/cove-go-sdk/internal/errors"
	"github.com/coveguard/cove-go-sdk/pkg/api"
	"github.com/rs/zerolog/log"
)

// Application ids the server reports for installed agents.
const (
	applicationIDVirtualServer = 106
	applicationIDCloudApps     = 134
)

// Specializer decides which entity handle to construct for a freshly
// resolved (id, name) pair. The decision is made from one detail probe per
// construction; a probe failure propagates to the caller, never silently
// falling back to the generic handle.
type Specializer struct {
	transport api.Transport
}

// NewSpecializer returns a specializer issuing probes over the given
// transport.
func NewSpecializer(transport api.Transport) *Specializer {
	return &Specializer{transport: transport}
}

// detailEnvelope keeps the first detail entry both typed (for dispatch) and
// raw (for the handle's property bag).
type detailEnvelope struct {
	ClientProperties []json.RawMessage `json:"clientProperties"`
}

type detailPayload struct {
	Client struct {
		IdaList []struct {
			IdaEntity struct {
				ApplicationID int    `json:"applicationId"`
				AppName       string `json:"appName"`
			} `json:"idaEntity"`
		} `json:"idaList"`
	} `json:"client"`
	VMStatusInfo *struct {
		VsaSubClientEntity struct {
			ApplicationID int `json:"applicationId"`
		} `json:"vsaSubClientEntity"`
	} `json:"vmStatusInfo"`
}

type detailProbe struct {
	properties map[string]any
	payload    detailPayload
	vmStatus   map[string]any
}

// Specialize probes the entity's detail endpoint once and constructs the
// matching handle: VM when the payload carries a virtual-server VM-status
// marker, cloud-app when the first installed agent is a cloud application,
// generic otherwise.
func (s *Specializer) Specialize(ctx context.Context, id, name string) (Entity, error) {
	probe, err := s.probe(ctx, id)
	if err != nil {
		return nil, err
	}

	base := Client{
		specializer: s,
		id:          id,
		name:        name,
		properties:  probe.properties,
	}

	payload := probe.payload
	if payload.VMStatusInfo != nil &&
		payload.VMStatusInfo.VsaSubClientEntity.ApplicationID == applicationIDVirtualServer {
		log.Debug().Str("name", name).Msg("Specializing entity as virtual machine")
		return &VMClient{Client: base, vmStatus: probe.vmStatus}, nil
	}

	if idas := payload.Client.IdaList; len(idas) > 0 &&
		idas[0].IdaEntity.ApplicationID == applicationIDCloudApps {
		log.Debug().Str("name", name).Msg("Specializing entity as cloud app")
		return &CloudAppClient{Client: base, appName: idas[0].IdaEntity.AppName}, nil
	}

	return &base, nil
}

func (s *Specializer) probe(ctx context.Context, id string) (*detailProbe, error) {
	ok, resp := s.transport.Do(ctx, http.MethodGet, api.EntityDetail(id), nil)
	if !ok {
		return nil, sdkerrors.NewSDKError(sdkerrors.ErrorTypeAPI, "probe_entity", id,
			fmt.Errorf("%s", s.transport.ErrorText(resp)))
	}

	var envelope detailEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("parse entity detail: %w", err)
	}
	if len(envelope.ClientProperties) == 0 {
		return nil, sdkerrors.NotFound("probe_entity", id)
	}

	first := envelope.ClientProperties[0]

	var payload detailPayload
	if err := json.Unmarshal(first, &payload); err != nil {
		return nil, fmt.Errorf("parse entity detail: %w", err)
	}

	var properties map[string]any
	if err := json.Unmarshal(first, &properties); err != nil {
		return nil, fmt.Errorf("parse entity detail: %w", err)
	}

	var vmStatus map[string]any
	if raw, ok := properties["vmStatusInfo"].(map[string]any); ok {
		vmStatus = raw
	}

	return &detailProbe{
		properties: properties,
		payload:    payload,
		vmStatus:   vmStatus,
	}, nil
}
