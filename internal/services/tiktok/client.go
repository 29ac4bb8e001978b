package tiktok

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// API is the behavioral contract the sync engines expect from the
// marketplace. The concrete Client implements it; tests use fakes.
type API interface {
	SearchOrders(ctx context.Context, params OrderSearchParams) (*OrderPage, error)
	GetProducts(ctx context.Context, pageToken string, pageSize int) (*ProductPage, error)
}

// OrderSearchParams filter a paginated order search.
type OrderSearchParams struct {
	CreateTimeFrom time.Time
	CreateTimeTo   time.Time
	Status         string
	PageToken      string
	PageSize       int
}

// OrderPage is one page of raw order payloads. Payload maps keep the
// provider's loose field shapes; extraction happens in the engines.
type OrderPage struct {
	Orders        []map[string]interface{}
	NextPageToken string
	Total         int
}

// ProductPage is one page of raw product payloads.
type ProductPage struct {
	Products      []map[string]interface{}
	NextPageToken string
	Total         int
}

// Client is an authenticated TikTok Shop API client bound to one account.
type Client struct {
	baseURL     string
	appKey      string
	appSecret   string
	accessToken string
	shopCipher  string
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewClient(baseURL, appKey, appSecret, accessToken, shopCipher string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		appKey:      appKey,
		appSecret:   appSecret,
		accessToken: accessToken,
		shopCipher:  shopCipher,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// apiEnvelope is the provider's uniform response wrapper.
type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// SearchOrders fetches one page of orders matching the filters.
func (c *Client) SearchOrders(ctx context.Context, params OrderSearchParams) (*OrderPage, error) {
	query := url.Values{}
	if params.PageSize <= 0 {
		params.PageSize = 50
	}
	query.Set("page_size", strconv.Itoa(params.PageSize))
	if params.PageToken != "" {
		query.Set("page_token", params.PageToken)
	}

	body := map[string]interface{}{}
	if !params.CreateTimeFrom.IsZero() {
		body["create_time_ge"] = params.CreateTimeFrom.Unix()
	}
	if !params.CreateTimeTo.IsZero() {
		body["create_time_lt"] = params.CreateTimeTo.Unix()
	}
	if params.Status != "" {
		body["order_status"] = params.Status
	}

	data, err := c.call(ctx, http.MethodPost, "/order/202309/orders/search", query, body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Orders        []map[string]interface{} `json:"orders"`
		NextPageToken string                   `json:"next_page_token"`
		TotalCount    int                      `json:"total_count"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode order page: %w", err)
	}
	return &OrderPage{
		Orders:        payload.Orders,
		NextPageToken: payload.NextPageToken,
		Total:         payload.TotalCount,
	}, nil
}

// GetProducts fetches one page of products.
func (c *Client) GetProducts(ctx context.Context, pageToken string, pageSize int) (*ProductPage, error) {
	query := url.Values{}
	if pageSize <= 0 {
		pageSize = 100
	}
	query.Set("page_size", strconv.Itoa(pageSize))
	if pageToken != "" {
		query.Set("page_token", pageToken)
	}

	data, err := c.call(ctx, http.MethodPost, "/product/202309/products/search", query, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Products      []map[string]interface{} `json:"products"`
		NextPageToken string                   `json:"next_page_token"`
		TotalCount    int                      `json:"total_count"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode product page: %w", err)
	}
	return &ProductPage{
		Products:      payload.Products,
		NextPageToken: payload.NextPageToken,
		Total:         payload.TotalCount,
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body map[string]interface{}) (json.RawMessage, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("app_key", c.appKey)
	query.Set("timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	if c.shopCipher != "" {
		query.Set("shop_cipher", c.shopCipher)
	}

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	query.Set("sign", sign(c.appSecret, path, query, reqBody))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-tts-access-token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API request failed: %d - %s", resp.StatusCode, string(raw))
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Code != 0 {
		return nil, fmt.Errorf("API error %d: %s", envelope.Code, envelope.Message)
	}
	return envelope.Data, nil
}

// sign computes the request signature the provider requires: HMAC-SHA256 of
// path + sorted query pairs + body, keyed by the app secret.
func sign(secret, path string, query url.Values, body []byte) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "sign" || k == "access_token" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(secret)
	buf.WriteString(path)
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteString(query.Get(k))
	}
	buf.Write(body)
	buf.WriteString(secret)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(buf.Bytes())
	return hex.EncodeToString(mac.Sum(nil))
}
