package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/telescan/telescan/internal/domain/parsing"
	"github.com/telescan/telescan/pkg/common/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "secret-token", 100, 100, server.Client(), logger.Noop(), noop.NewTracerProvider().Tracer("test"))
}

func TestClientStartParse(t *testing.T) {
	t.Run("accepted start decodes the acknowledgement", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody startRequest
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(startResponse{Accepted: true, JobID: "job-17", Message: "started"})
		})

		ack, err := client.StartParse(context.Background(), parsing.CollectionChannels,
			"https://t.me/somechannel", parsing.StartOptions{PostLimit: 50})

		require.NoError(t, err)
		assert.True(t, ack.Accepted)
		assert.Equal(t, "job-17", ack.JobRef)
		assert.Equal(t, "/api/v1/channels/parse", gotPath)
		assert.Equal(t, "Bearer secret-token", gotAuth)
		assert.Equal(t, "https://t.me/somechannel", gotBody.Link)
		assert.Equal(t, 50, gotBody.PostLimit)
	})

	t.Run("rejected start carries the service message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(startResponse{Accepted: false, Message: "All bot tokens are exhausted"})
		})

		ack, err := client.StartParse(context.Background(), parsing.CollectionGroups,
			"https://t.me/somegroup", parsing.StartOptions{})

		require.NoError(t, err)
		assert.False(t, ack.Accepted)
		assert.Equal(t, "All bot tokens are exhausted", ack.Message)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "subscription expired", http.StatusPaymentRequired)
		})

		_, err := client.StartParse(context.Background(), parsing.CollectionGroups,
			"https://t.me/somegroup", parsing.StartOptions{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "402")
	})
}

func TestClientJobStatus(t *testing.T) {
	t.Run("decodes a running snapshot", func(t *testing.T) {
		current, total := 120, 400
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/groups/parse/status", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{
				"running": true, "progress": 30, "phase": "fetching",
				"message": "fetching members", "current": current, "total": total,
			})
		})

		status, err := client.JobStatus(context.Background(), parsing.CollectionGroups)

		require.NoError(t, err)
		assert.True(t, status.Running)
		assert.Equal(t, 30, status.Progress)
		assert.Equal(t, parsing.PhaseFetching, status.Phase)
		require.NotNil(t, status.Current)
		assert.Equal(t, current, *status.Current)
		require.NotNil(t, status.Total)
		assert.Equal(t, total, *status.Total)
	})

	t.Run("decodes a terminal snapshot with explicit state", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"running": false, "progress": 100, "state": "completed", "message": "done",
			})
		})

		status, err := client.JobStatus(context.Background(), parsing.CollectionGroups)

		require.NoError(t, err)
		assert.True(t, status.IsTerminal())
		assert.True(t, status.IsSuccess())
	})

	t.Run("missing running flag is a malformed status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"progress": 10, "message": "warming up"})
		})

		_, err := client.JobStatus(context.Background(), parsing.CollectionGroups)

		assert.ErrorIs(t, err, parsing.ErrMalformedStatus)
	})
}

func TestClientListPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/groups", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("page_size"))
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id": 5, "group_id": "-1001234", "group_name": "Gophers",
				"group_username": "gogophers", "member_count": 1200,
				"is_public": true, "parsed_at": "2025-06-01T12:00:00Z",
			},
		})
	})

	items, err := client.ListPage(context.Background(), parsing.CollectionGroups, 2, 10)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].ID)
	assert.Equal(t, "-1001234", items[0].ResourceID)
	assert.Equal(t, "Gophers", items[0].Name)
	assert.Equal(t, "gogophers", items[0].Username)
	assert.Equal(t, 1200, items[0].MemberCount)
	assert.True(t, items[0].IsPublic)
}

func TestClientDeleteItem(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	err := client.DeleteItem(context.Background(), parsing.CollectionChannels, 42)

	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/v1/channels/42", gotPath)
}

func TestClientCancelParse(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	})

	err := client.CancelParse(context.Background(), parsing.CollectionGroups)

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/groups/parse/cancel", gotPath)
}

func TestClientTokens(t *testing.T) {
	t.Run("create and list round-trip the wire fields", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				var input parsing.TokenInput
				require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
				json.NewEncoder(w).Encode(tokenResponse{
					ID: 1, APIID: input.APIID, APIHash: input.APIHash, Phone: input.Phone,
				})
			case http.MethodGet:
				json.NewEncoder(w).Encode([]tokenResponse{{ID: 1, APIID: "12345", APIHash: "abcdef"}})
			}
		})

		token, err := client.CreateToken(context.Background(), parsing.TokenInput{
			APIID: "12345", APIHash: "abcdef", Phone: "+15550100",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), token.ID)
		assert.Equal(t, "12345", token.APIID)

		tokens, err := client.ListTokens(context.Background())
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, "abcdef", tokens[0].APIHash)
	})

	t.Run("delete targets the token path", func(t *testing.T) {
		var gotPath string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
		})

		require.NoError(t, client.DeleteToken(context.Background(), 7))
		assert.Equal(t, "/api/v1/tokens/7", gotPath)
	})
}
