package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"partsbot/internal"
	"partsbot/internal/cache"
	"partsbot/internal/config"
)

// StatusError is a non-2xx catalog response.
type StatusError struct {
	Operation string
	Status    int
	Body      string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("catalog api error: op=%s status=%d body=%s", e.Operation, e.Status, body)
}

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	cache      cache.Store
	backoff    func(attempt int) time.Duration
}

func NewClient(cfg config.Config, store cache.Store) *Client {
	if store == nil {
		store = cache.NewMemory()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.CatalogTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.CatalogRateLimitRPS),
		cache:      store,
		backoff:    defaultBackoff,
	}
}

func (c *Client) Languages(ctx context.Context) ([]Record, error) {
	return c.cachedList(ctx, "getAllLanguages", map[string]any{})
}

func (c *Client) Countries(ctx context.Context, langID int) ([]Record, error) {
	return c.cachedList(ctx, "getAllCountries", map[string]any{"langId": langID})
}

func (c *Client) DecodeVIN(ctx context.Context, vin string, p internal.BaseParams) ([]Record, error) {
	body := baseBody(p)
	body["vin"] = strings.TrimSpace(vin)
	return c.list(ctx, "getVehicleByVin", body)
}

func (c *Client) DecodeRegistrationCode(ctx context.Context, rc1, rc2 string, p internal.BaseParams) ([]Record, error) {
	body := baseBody(p)
	body["hsn"] = strings.TrimSpace(rc1)
	body["tsn"] = strings.TrimSpace(rc2)
	return c.list(ctx, "getVehicleByKba", body)
}

func (c *Client) Manufacturers(ctx context.Context, p internal.BaseParams) ([]Record, error) {
	return c.cachedList(ctx, "getManufacturers", baseBody(p))
}

func (c *Client) Models(ctx context.Context, p internal.BaseParams, manufacturerID int) ([]Record, error) {
	body := baseBody(p)
	setID(body, "manufacturerId", manufacturerID)
	return c.cachedList(ctx, "getModels", body)
}

func (c *Client) EngineVariants(ctx context.Context, p internal.BaseParams, manufacturerID, modelSeriesID int) ([]Record, error) {
	body := baseBody(p)
	setID(body, "manufacturerId", manufacturerID)
	setID(body, "modelSeriesId", modelSeriesID)
	return c.cachedList(ctx, "getVehicleEngineTypes", body)
}

func (c *Client) Categories(ctx context.Context, v internal.VehicleIdentity) ([]Record, error) {
	return c.list(ctx, "getCategoryV3", vehicleBody(v))
}

func (c *Client) CategoriesLegacy(ctx context.Context, v internal.VehicleIdentity) ([]Record, error) {
	return c.list(ctx, "getCategoryV2", vehicleBody(v))
}

func (c *Client) Articles(ctx context.Context, v internal.VehicleIdentity, categoryID int) ([]Record, error) {
	body := vehicleBody(v)
	setID(body, "productGroupId", categoryID)
	return c.list(ctx, "getArticlesList", body)
}

// ArticleDetails returns the raw details object for one article.
func (c *Client) ArticleDetails(ctx context.Context, p internal.BaseParams, articleID int) (Record, error) {
	resp, err := c.call(ctx, "getArticleDetailsById", map[string]any{
		"langId":          p.LangID,
		"countryFilterId": p.CountryID,
		"articleId":       articleID,
	})
	if err != nil {
		return nil, err
	}
	switch t := resp.(type) {
	case map[string]any:
		return Record(t), nil
	case []any:
		return Record{"data": t}, nil
	default:
		return nil, fmt.Errorf("unexpected article details shape %T", resp)
	}
}

func (c *Client) SearchArticlesByNumber(ctx context.Context, langID int, number string) ([]Record, error) {
	return c.list(ctx, "searchArticlesByNumber", map[string]any{"langId": langID, "articleSearchNr": strings.TrimSpace(number)})
}

func (c *Client) SearchArticlesByEqualOemNumber(ctx context.Context, langID int, number string) ([]Record, error) {
	return c.list(ctx, "searchAllEqualOemNo", map[string]any{"langId": langID, "oemNo": strings.TrimSpace(number)})
}

func (c *Client) list(ctx context.Context, op string, body map[string]any) ([]Record, error) {
	resp, err := c.call(ctx, op, body)
	if err != nil {
		return nil, err
	}
	return ListOf(resp), nil
}

// cachedList serves stable reference data from the cache store. Cache failures
// fall through to the API.
func (c *Client) cachedList(ctx context.Context, op string, body map[string]any) ([]Record, error) {
	keyBlob, _ := json.Marshal(body)
	key := "catalog:" + op + ":" + string(keyBlob)

	if blob, err := c.cache.Get(ctx, key); err == nil {
		var cached any
		if json.Unmarshal(blob, &cached) == nil {
			return ListOf(cached), nil
		}
	}

	resp, err := c.call(ctx, op, body)
	if err != nil {
		return nil, err
	}
	if blob, err := json.Marshal(resp); err == nil {
		_ = c.cache.Set(ctx, key, blob, c.cfg.CacheTTL)
	}
	return ListOf(resp), nil
}

func (c *Client) call(ctx context.Context, op string, params map[string]any) (any, error) {
	if err := c.cfg.RequireCatalog(); err != nil {
		return nil, err
	}

	u := strings.TrimRight(c.cfg.CatalogAPIBaseURL, "/") + "/" + op
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	attempts := c.cfg.CatalogRetryCount + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.CatalogAPIToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = &StatusError{Operation: op, Status: resp.StatusCode, Body: string(body)}
			if isRetryableStatus(resp.StatusCode) {
				continue
			}
			return nil, lastErr
		}

		var out any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("catalog %s: malformed body: %w", op, err)
		}
		if env, ok := out.(map[string]any); ok {
			if success, present := env["success"].(bool); present && !success {
				return nil, fmt.Errorf("catalog %s unsuccessful: %v", op, env["message"])
			}
		}
		return out, nil
	}

	if lastErr == nil {
		lastErr = errors.New("catalog request failed")
	}
	return nil, lastErr
}

func baseBody(p internal.BaseParams) map[string]any {
	return map[string]any{
		"langId":          p.LangID,
		"countryFilterId": p.CountryID,
		"typeId":          p.VehicleTypeID,
	}
}

func vehicleBody(v internal.VehicleIdentity) map[string]any {
	body := baseBody(v.BaseParams)
	setID(body, "manufacturerId", v.ManufacturerID)
	setID(body, "vehicleId", v.VehicleID)
	return body
}

func setID(body map[string]any, key string, id int) {
	if id != 0 {
		body[key] = id
	}
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
