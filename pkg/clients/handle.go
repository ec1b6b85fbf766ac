package clients

import (
	"context"
)

// Kind distinguishes the specialized entity handles.
type Kind string

const (
	KindGeneric        Kind = "client"
	KindVirtualMachine Kind = "virtual_machine"
	KindCloudApp       Kind = "cloud_app"
)

// Entity is the caller-facing handle returned by Registry.Get. Handles wrap
// the entity's id and name plus a property bag populated from the detail
// probe at construction; Refresh refetches it. Handles are created only
// through the specializer and are not cached by the registry.
type Entity interface {
	ID() string
	Name() string
	Kind() Kind

	// Properties returns a deep copy of the detail property bag; mutating
	// it never affects the handle.
	Properties() map[string]any

	// Refresh refetches the detail payload and replaces the property bag.
	Refresh(ctx context.Context) error
}

// Client is the generic entity handle.
type Client struct {
	specializer *Specializer
	id          string
	name        string
	properties  map[string]any
}

func (c *Client) ID() string   { return c.id }
func (c *Client) Name() string { return c.name }
func (c *Client) Kind() Kind   { return KindGeneric }

func (c *Client) Properties() map[string]any {
	return deepCopyMap(c.properties)
}

func (c *Client) Refresh(ctx context.Context) error {
	probe, err := c.specializer.probe(ctx, c.id)
	if err != nil {
		return err
	}
	c.properties = probe.properties
	return nil
}

// Readiness returns a fresh readiness probe for this entity. Probes do not
// share state with the handle.
func (c *Client) Readiness() *ReadinessProbe {
	return NewReadinessProbe(c.specializer.transport, c.id)
}

// VMClient is the handle for entities backed by the virtual-server agent.
type VMClient struct {
	Client
	vmStatus map[string]any
}

func (c *VMClient) Kind() Kind { return KindVirtualMachine }

// VMStatus returns a deep copy of the vmStatusInfo block from the last
// detail probe.
func (c *VMClient) VMStatus() map[string]any {
	return deepCopyMap(c.vmStatus)
}

func (c *VMClient) Refresh(ctx context.Context) error {
	probe, err := c.specializer.probe(ctx, c.id)
	if err != nil {
		return err
	}
	c.properties = probe.properties
	c.vmStatus = probe.vmStatus
	return nil
}

// CloudAppClient is the handle for entities whose leading installed agent
// is a cloud application (OneDrive and friends).
type CloudAppClient struct {
	Client
	appName string
}

func (c *CloudAppClient) Kind() Kind { return KindCloudApp }

// AppName reports the cloud application behind the entity, e.g. "OneDrive".
func (c *CloudAppClient) AppName() string { return c.appName }

func deepCopyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = deepCopyValue(value)
	}
	return out
}

func deepCopyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return deepCopyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return typed
	}
}
