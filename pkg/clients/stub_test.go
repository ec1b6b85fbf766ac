package clients

import (
	"context"
	"strings"
	"sync"

	"github.com/coveguard/cove-go-sdk/pkg/api"
)

// stubTransport fails the first N calls, then serves a fixed body.
type stubTransport struct {
	mu       sync.Mutex
	failures int
	calls    int
	body     []byte
	errText  string
}

func (s *stubTransport) Do(_ context.Context, _, _ string, _ any) (bool, *api.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return false, &api.Response{StatusCode: 500}
	}
	return true, &api.Response{StatusCode: 200, Body: s.body}
}

func (s *stubTransport) ErrorText(*api.Response) string {
	if s.errText != "" {
		return s.errText
	}
	return "server unavailable"
}

// routeTransport serves canned bodies keyed by service prefix and counts
// calls per route.
type routeTransport struct {
	mu     sync.Mutex
	routes map[string][]byte
	calls  map[string]int
	fail   map[string]bool
}

func newRouteTransport() *routeTransport {
	return &routeTransport{
		routes: make(map[string][]byte),
		calls:  make(map[string]int),
		fail:   make(map[string]bool),
	}
}

func (r *routeTransport) set(service string, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[service] = []byte(body)
}

func (r *routeTransport) callCount(service string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[service]
}

func (r *routeTransport) Do(_ context.Context, _, service string, _ any) (bool, *api.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// longest-prefix match so "Client?hiddenclients=true" wins over "Client"
	var matched string
	for route := range r.routes {
		if strings.HasPrefix(service, route) && len(route) > len(matched) {
			matched = route
		}
	}
	if matched == "" {
		return false, &api.Response{StatusCode: 404}
	}

	r.calls[matched]++
	if r.fail[matched] {
		return false, &api.Response{StatusCode: 500}
	}
	return true, &api.Response{StatusCode: 200, Body: r.routes[matched]}
}

func (r *routeTransport) ErrorText(resp *api.Response) string {
	if resp != nil && resp.StatusCode == 404 {
		return "no such service"
	}
	return "internal server error"
}
