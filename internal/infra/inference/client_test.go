package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenderlens/lenderlens/internal/app/classification"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	require.NoError(t, json.NewEncoder(w).Encode(reply))
}

func TestClient_Classify(t *testing.T) {
	t.Parallel()

	req := classification.InferenceRequest{
		SystemPrompt: "classify the site",
		Model:        "gpt-3.5-turbo",
		Content:      "we provide merchant cash advances",
	}

	t.Run("parses a structured verdict", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

			var chat struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
				ResponseFormat struct {
					Type string `json:"type"`
				} `json:"response_format"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&chat))
			assert.Equal(t, "gpt-3.5-turbo", chat.Model)
			assert.Equal(t, "json_object", chat.ResponseFormat.Type)
			require.Len(t, chat.Messages, 2)
			assert.Equal(t, "system", chat.Messages[0].Role)
			assert.Equal(t, "classify the site", chat.Messages[0].Content)
			assert.Equal(t, "user", chat.Messages[1].Role)
			assert.Contains(t, chat.Messages[1].Content, "we provide merchant cash advances")

			chatReply(t, w, `{
				"is_mca_lender_broker": true,
				"business_model": "direct_lender",
				"confidence": 0.92,
				"primary_services": ["merchant cash advance"],
				"evidence": ["homepage offers MCA funding"],
				"exclusion_reason": null
			}`)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "sk-test")
		verdict, err := client.Classify(context.Background(), req)
		require.NoError(t, err)

		assert.True(t, verdict.IsLenderBroker)
		assert.Equal(t, "direct_lender", verdict.BusinessModel)
		assert.InDelta(t, 0.92, verdict.Confidence, 1e-9)
		assert.Equal(t, []string{"merchant cash advance"}, verdict.PrimaryServices)
		assert.Equal(t, []string{"homepage offers MCA funding"}, verdict.Evidence)
		assert.Empty(t, verdict.ExclusionReason)
		assert.NotEmpty(t, verdict.Raw)
	})

	t.Run("exclusion reason is carried through", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			chatReply(t, w, `{
				"is_mca_lender_broker": false,
				"business_model": "other",
				"confidence": 0.97,
				"primary_services": [],
				"evidence": [],
				"exclusion_reason": "equipment leasing only"
			}`)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "sk-test")
		verdict, err := client.Classify(context.Background(), req)
		require.NoError(t, err)

		assert.False(t, verdict.IsLenderBroker)
		assert.Equal(t, "equipment leasing only", verdict.ExclusionReason)
	})

	t.Run("malformed verdict payload is an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			chatReply(t, w, "the site looks like a lender to me")
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "sk-test")
		_, err := client.Classify(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed verdict payload")
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "sk-test")
		_, err := client.Classify(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no choices")
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "sk-test")
		_, err := client.Classify(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})
}
