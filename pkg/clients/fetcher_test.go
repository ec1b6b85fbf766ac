package clients

import (
	"context"
	"testing"
	"time"

	sdkerrors "github.com/coveguard/cove-go-sdk/internal/errors"
	"github.com/coveguard/cove-go-sdk/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingFixture = `{
	"clientProperties": [
		{"client": {"clientEntity": {"clientName": "Web01", "clientId": 2, "hostName": "WEB01.example.com", "displayName": "Web Server"}}},
		{"client": {"clientEntity": {"clientName": "db01", "clientId": 3, "hostName": "db01.example.com", "displayName": "Database"}}}
	]
}`

func newTestFetcher(transport api.Transport) (*RetryingFetcher, *[]time.Duration) {
	fetcher := NewRetryingFetcher(transport)
	sleeps := &[]time.Duration{}
	fetcher.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return fetcher, sleeps
}

func TestFetchParsesListing(t *testing.T) {
	stub := &stubTransport{body: []byte(listingFixture)}
	fetcher, _ := newTestFetcher(stub)

	partition, err := fetcher.Fetch(context.Background(), api.ServiceEntities)
	require.NoError(t, err)

	require.Len(t, partition, 2)
	rec, ok := partition["web01"]
	require.True(t, ok, "names must be case-folded")
	assert.Equal(t, "2", rec.ID)
	assert.Equal(t, "web01.example.com", rec.Hostname)
	assert.Equal(t, "web server", rec.DisplayName)
}

func TestFetchRecoversWithinRetryBudget(t *testing.T) {
	stub := &stubTransport{failures: 4, body: []byte(listingFixture)}
	fetcher, sleeps := newTestFetcher(stub)

	partition, err := fetcher.Fetch(context.Background(), api.ServiceEntities)
	require.NoError(t, err)

	assert.Len(t, partition, 2)
	assert.Equal(t, 5, stub.calls)
	require.Len(t, *sleeps, 4)
	assert.Equal(t, 5*time.Second, (*sleeps)[0])
}

func TestFetchFailsAfterFiveAttempts(t *testing.T) {
	stub := &stubTransport{failures: 5, errText: "gateway timed out"}
	fetcher, _ := newTestFetcher(stub)

	_, err := fetcher.Fetch(context.Background(), api.ServiceEntities)
	require.ErrorIs(t, err, sdkerrors.ErrFetchFailed)
	assert.Contains(t, err.Error(), "gateway timed out")
	assert.Equal(t, 5, stub.calls)
}

func TestFetchNeverRetriesPastFive(t *testing.T) {
	stub := &stubTransport{failures: 6}
	fetcher, sleeps := newTestFetcher(stub)

	_, err := fetcher.Fetch(context.Background(), api.ServiceEntities)
	require.ErrorIs(t, err, sdkerrors.ErrFetchFailed)
	assert.Equal(t, 5, stub.calls)
	assert.Len(t, *sleeps, 4)
}

func TestFetchEmptyListingIsNotAnError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "listing key absent", body: `{"processinginstructioninfo": {}}`},
		{name: "listing present but empty", body: `{"clientProperties": []}`},
		{name: "empty body", body: ``},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubTransport{body: []byte(tc.body)}
			fetcher, _ := newTestFetcher(stub)

			partition, err := fetcher.Fetch(context.Background(), api.ServiceEntities)
			require.NoError(t, err, "no visibility into any entity is a legitimate state")
			assert.Empty(t, partition)
		})
	}
}
