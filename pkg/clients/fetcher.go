package clients

import (
	"context"
	"net/http"
	"time"

	sdkerrors "github.com/coveguard/cove-go-sdk/internal/errors"
	"github.com/coveguard/cove-go-sdk/internal/metrics"
	"github.com/coveguard/cove-go-sdk/pkg/api"
	"github.com/rs/zerolog/log"
)

const (
	fetchAttempts   = 5
	fetchRetryDelay = 5 * time.Second
)

// RetryingFetcher fetches an entity listing, retrying transient transport
// failures with a fixed delay. A successful response with no listing in it
// is valid data (the caller simply has no visibility into any entity), not
// a fault.
type RetryingFetcher struct {
	transport api.Transport
	attempts  int
	delay     time.Duration
	sleep     func(time.Duration)
}

// NewRetryingFetcher returns a fetcher with the default retry policy:
// five attempts, five seconds apart.
func NewRetryingFetcher(transport api.Transport) *RetryingFetcher {
	return &RetryingFetcher{
		transport: transport,
		attempts:  fetchAttempts,
		delay:     fetchRetryDelay,
		sleep:     time.Sleep,
	}
}

// Fetch lists the entities behind the given service. After the final failed
// attempt the server's translated error text is surfaced.
func (f *RetryingFetcher) Fetch(ctx context.Context, service string) (Partition, error) {
	var lastResp *api.Response

	for attempt := 1; attempt <= f.attempts; attempt++ {
		ok, resp := f.transport.Do(ctx, http.MethodGet, service, nil)
		if ok {
			partition, err := parseClientListing(resp.Body)
			if err != nil {
				return nil, err
			}
			return partition, nil
		}

		lastResp = resp
		if attempt < f.attempts {
			log.Warn().
				Str("service", service).
				Int("attempt", attempt).
				Int("max_attempts", f.attempts).
				Msg("Entity listing fetch failed, retrying")
			metrics.Default().IncFetchRetry(service)
			f.sleep(f.delay)
		}
	}

	return nil, sdkerrors.FetchFailed("fetch_entities", f.transport.ErrorText(lastResp))
}
