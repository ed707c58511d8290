package meraki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetsAuthHeaders(t *testing.T) {
	t.Parallel()

	var gotKey, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Cisco-Meraki-API-Key")
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", Options{})
	body, err := c.Get(context.Background(), "/organizations/123", nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, UserAgent, gotAgent)
}

func TestGetPaginatedFollowsLinkHeader(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("startingAfter") {
		case "":
			w.Header().Set("Link", fmt.Sprintf(`<%s/networks?startingAfter=2>; rel=next`, srv.URL))
			fmt.Fprint(w, `[{"id":"N_1"},{"id":"N_2"}]`)
		case "2":
			fmt.Fprint(w, `[{"id":"N_3"}]`)
		default:
			http.Error(w, "unexpected page", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", Options{})
	body, err := c.GetPaginated(context.Background(), "/networks", nil)
	require.NoError(t, err)

	assert.JSONEq(t, `[{"id":"N_1"},{"id":"N_2"},{"id":"N_3"}]`, string(body))
}

func TestGetRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", Options{MaxRetries: 4})
	body, err := c.Get(context.Background(), "/organizations", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "[]", string(body))
}

func TestGetStopsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", Options{MaxRetries: 2})
	_, err := c.Get(context.Background(), "/organizations", nil)
	require.Error(t, err)

	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", Options{MaxRetries: 3})
	_, err := c.Get(context.Background(), "/networks/N_404/applianceVlans", nil)
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrganizations(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"id":"123","name":"ACME"},{"id":"456","name":"Globex"}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", Options{})
	orgs, err := c.GetOrganizations(context.Background())
	require.NoError(t, err)

	require.Len(t, orgs, 2)
	assert.Equal(t, "ACME", orgs[0].Name)
	assert.Equal(t, "456", orgs[1].ID)
}

func TestGetOperations(t *testing.T) {
	t.Parallel()

	spec := `{
		"paths": {
			"/organizations/{organizationId}/networks": {
				"get": {
					"operationId": "getOrganizationNetworks",
					"tags": ["organizations", "configure", "networks"],
					"description": "List the networks in an organization",
					"parameters": [{"name": "organizationId"}, {"name": "perPage"}]
				}
			},
			"/networks/{networkId}": {
				"get": {
					"operationId": "getNetwork",
					"tags": ["networks", "configure"],
					"parameters": [{"name": "networkId"}]
				},
				"put": {"operationId": "updateNetwork"}
			},
			"/networks/{networkId}/bind": {
				"post": {"operationId": "bindNetwork"}
			}
		}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, spec)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", Options{})
	ops, err := c.GetOperations(context.Background(), "123")
	require.NoError(t, err)

	// POST-only paths are excluded.
	require.Len(t, ops, 2)
	byID := map[string]Operation{}
	for _, op := range ops {
		byID[op.OperationID] = op
	}
	assert.Contains(t, byID, "getOrganizationNetworks")
	assert.Contains(t, byID, "getNetwork")
	assert.Equal(t, []string{"organizationId", "perPage"}, byID["getOrganizationNetworks"].Parameters)
	assert.Equal(t, "/organizations/{organizationId}/networks", byID["getOrganizationNetworks"].Path)
}

func TestNextLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "next among rels",
			header: `<https://api.example.com/networks?startingAfter=a>; rel=first, <https://api.example.com/networks?startingAfter=b>; rel=next`,
			want:   "https://api.example.com/networks?startingAfter=b",
		},
		{
			name:   "quoted rel",
			header: `<https://api.example.com/page2>; rel="next"`,
			want:   "https://api.example.com/page2",
		},
		{
			name:   "no next",
			header: `<https://api.example.com/networks>; rel=first`,
			want:   "",
		},
		{
			name:   "empty",
			header: "",
			want:   "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, nextLink(tc.header))
		})
	}
}
