package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partsbot/internal"
	"partsbot/internal/cache"
	"partsbot/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testConfig() config.Config {
	return config.Config{
		CatalogAPIBaseURL:   "https://catalog.test/api",
		CatalogAPIToken:     "test",
		CatalogRateLimitRPS: 1000,
		CatalogRetryCount:   2,
		CacheTTL:            time.Hour,
	}
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func newTestClient(cfg config.Config, rt roundTripFunc) *Client {
	client := NewClient(cfg, cache.NewMemory())
	client.httpClient = &http.Client{Transport: rt}
	client.backoff = func(int) time.Duration { return 0 }
	return client
}

func TestArticlesRetriesServerErrors(t *testing.T) {
	attempt := 0
	client := newTestClient(testConfig(), func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "/api/getArticlesList", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		attempt++
		if attempt == 1 {
			return jsonResponse(http.StatusInternalServerError, map[string]any{"error": "boom"}), nil
		}

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 402, body["productGroupId"])
		assert.EqualValues(t, 19942, body["vehicleId"])

		return jsonResponse(http.StatusOK, map[string]any{
			"success": true,
			"articles": []map[string]any{
				{"articleId": 11, "articleNo": "0 986 479 C67", "brandName": "BOSCH"},
			},
		}), nil
	})

	v := internal.VehicleIdentity{BaseParams: internal.BaseParams{LangID: 10, CountryID: 62, VehicleTypeID: 1}, VehicleID: 19942}
	articles, err := client.Articles(context.Background(), v, 402)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, 2, attempt)
	assert.Equal(t, "0 986 479 C67", articles[0].String(ArticleNumberFields...))
}

func TestCallGivesUpAfterRetryBudget(t *testing.T) {
	attempt := 0
	client := newTestClient(testConfig(), func(r *http.Request) (*http.Response, error) {
		attempt++
		return jsonResponse(http.StatusServiceUnavailable, map[string]any{}), nil
	})

	_, err := client.SearchArticlesByNumber(context.Background(), 4, "1K0615301AA")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
	assert.Equal(t, 3, attempt)
}

func TestCallDoesNotRetryClientErrors(t *testing.T) {
	attempt := 0
	client := newTestClient(testConfig(), func(r *http.Request) (*http.Response, error) {
		attempt++
		return jsonResponse(http.StatusUnauthorized, map[string]any{"message": "bad token"}), nil
	})

	_, err := client.Manufacturers(context.Background(), internal.BaseParams{LangID: 4, CountryID: 62, VehicleTypeID: 1})
	require.Error(t, err)
	assert.Equal(t, 1, attempt)
}

func TestCallRejectsUnsuccessfulEnvelope(t *testing.T) {
	client := newTestClient(testConfig(), func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, map[string]any{"success": false, "message": "unknown vin"}), nil
	})

	_, err := client.DecodeVIN(context.Background(), "WVWZZZ1KZAW000001", internal.BaseParams{LangID: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vin")
}

func TestCallRequiresConfiguration(t *testing.T) {
	cfg := testConfig()
	cfg.CatalogAPIToken = ""
	called := false
	client := newTestClient(cfg, func(r *http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("unreachable")
	})

	_, err := client.Languages(context.Background())
	require.ErrorIs(t, err, config.ErrCatalogNotConfigured)
	assert.False(t, called)
}

func TestReferenceListsAreCached(t *testing.T) {
	calls := 0
	client := newTestClient(testConfig(), func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusOK, map[string]any{
			"data": map[string]any{"manufacturers": []map[string]any{{"manuId": 121, "manuName": "VW"}}},
		}), nil
	})

	p := internal.BaseParams{LangID: 4, CountryID: 62, VehicleTypeID: 1}
	for i := 0; i < 3; i++ {
		manufacturers, err := client.Manufacturers(context.Background(), p)
		require.NoError(t, err)
		require.Len(t, manufacturers, 1)
		assert.Equal(t, 121, manufacturers[0].Int(ManufacturerIDFields...))
	}
	assert.Equal(t, 1, calls)
}

func TestArticleDetailsWrapsArrays(t *testing.T) {
	client := newTestClient(testConfig(), func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, []map[string]any{{"articleNo": "X1"}}), nil
	})

	details, err := client.ArticleDetails(context.Background(), internal.BaseParams{LangID: 4}, 7)
	require.NoError(t, err)
	assert.Len(t, ListOf(map[string]any(details)), 1)
}
