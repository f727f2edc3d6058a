package wits

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/time/rate"

	"furtrade/internal/model"
	"furtrade/internal/providers"
)

var ErrNoRecords = errors.New("wits: no records found")

// Config holds the WITS HTTP settings. All fields are overridable through
// WITS_* environment variables.
type Config struct {
	BaseURL         string        `envconfig:"BASE_URL" default:"https://wits.worldbank.org/API/V1/"`
	ProductPath     string        `envconfig:"PRODUCT_PATH" default:"wits/datasource/trade/reporter/{reporter}/year/{year}/partner/ALL/product/{product}/tradeflow/{flow}"`
	FlowImportCode  string        `envconfig:"FLOW_IMPORT_CODE" default:"I"`
	FlowExportCode  string        `envconfig:"FLOW_EXPORT_CODE" default:"E"`
	APIKey          string        `envconfig:"API_KEY"`
	APIKeyParam     string        `envconfig:"API_KEY_PARAM" default:"token"`
	FormatParam     string        `envconfig:"FORMAT_PARAM" default:"format"`
	FormatValue     string        `envconfig:"FORMAT_VALUE" default:"JSON"`
	RateLimitPerSec float64       `envconfig:"RATE_LIMIT_PER_SEC" default:"5"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"5"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"120s"`
	UserAgent       string        `envconfig:"USER_AGENT" default:"furtrade/0.1"`
	ValueMultiplier float64       `envconfig:"VALUE_MULTIPLIER" default:"1000"`
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func New() (*Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("wits: base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	if strings.TrimSpace(cfg.ProductPath) == "" {
		return nil, errors.New("wits: product path is required")
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 5
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.ValueMultiplier == 0 {
		cfg.ValueMultiplier = 1
	}
	return &Provider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
	}, nil
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("WITS", &cfg); err != nil {
		return Config{}, fmt.Errorf("wits: config: %w", err)
	}
	return cfg, nil
}

func (p *Provider) Name() string {
	return "wits"
}

func (p *Provider) FetchProduct(ctx context.Context, reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error) {
	path := p.productPath(reporterCode, year, flow, product)

	body, err := p.doRequest(ctx, path, nil, "application/json")
	if err != nil {
		return nil, err
	}

	var payload any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("wits: decode response: %w", err)
	}

	rows, err := extractRows(payload)
	if err != nil {
		return nil, err
	}

	observations := make([]model.RawObservation, 0, len(rows))
	for _, row := range rows {
		observation, ok := rowToObservation(row, reporterCode, year, flow, product, p.config.ValueMultiplier)
		if !ok {
			continue
		}
		observations = append(observations, observation)
	}
	if len(observations) == 0 {
		return nil, ErrNoRecords
	}
	return observations, nil
}

func (p *Provider) productPath(reporterCode string, year int, flow model.Flow, product model.ProductCode) string {
	replacer := strings.NewReplacer(
		"{reporter}", url.PathEscape(reporterCode),
		"{year}", strconv.Itoa(year),
		"{flow}", url.PathEscape(p.flowCode(flow)),
		"{product}", url.PathEscape(string(product)),
	)
	return replacer.Replace(p.config.ProductPath)
}

func (p *Provider) flowCode(flow model.Flow) string {
	switch flow {
	case model.FlowImport:
		return p.config.FlowImportCode
	case model.FlowExport:
		return p.config.FlowExportCode
	default:
		return string(flow)
	}
}

func (p *Provider) doRequest(ctx context.Context, path string, params url.Values, accept string) ([]byte, error) {
	endpoint := p.buildURL(path, params)

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound && strings.Contains(string(body), "NoRecordsFound") {
		return nil, ErrNoRecords
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("wits: request failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (p *Provider) buildURL(path string, params url.Values) string {
	base := strings.TrimRight(p.config.BaseURL, "/")
	path = strings.TrimLeft(path, "/")
	endpoint := base + "/" + path

	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	if p.config.APIKey != "" && p.config.APIKeyParam != "" {
		query.Set(p.config.APIKeyParam, p.config.APIKey)
	}
	if p.config.FormatParam != "" && p.config.FormatValue != "" {
		query.Set(p.config.FormatParam, p.config.FormatValue)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func extractRows(payload any) ([]map[string]any, error) {
	switch typed := payload.(type) {
	case []any:
		return toRowList(typed), nil
	case map[string]any:
		for _, key := range []string{"dataset", "Dataset", "data", "Data", "rows", "Rows", "results", "Results", "value", "Value"} {
			if raw, ok := typed[key]; ok {
				return extractRows(raw)
			}
		}
		return nil, errors.New("wits: unexpected response shape")
	default:
		return nil, errors.New("wits: unexpected response type")
	}
}

func toRowList(items []any) []map[string]any {
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// rowToObservation keeps only rows whose quantity is reported in kilograms,
// the unit the final table aggregates on. Values come scaled by the
// configured multiplier (WITS reports thousands of USD).
func rowToObservation(row map[string]any, reporterCode string, year int, flow model.Flow, product model.ProductCode, multiplier float64) (model.RawObservation, bool) {
	partner, ok := getString(row, "Partner", "partner", "PartnerName")
	if !ok || partner == "" {
		return model.RawObservation{}, false
	}
	partner = normalizePartner(partner)

	if unit, ok := getString(row, "QuantityUnit", "Quantity Unit", "quantityUnit", "Unit"); ok {
		if !strings.EqualFold(strings.TrimSpace(unit), "kg") {
			return model.RawObservation{}, false
		}
	}

	quantity, _ := getFloat(row, "Quantity", "quantity", "QuantityKg")
	valueUSD, _ := getFloat(row,
		"TradeValue1000USD", "Trade Value 1000USD", "TradeValue", "tradeValue",
		"TradeValueUSD", "Value", "value",
	)
	valueEUR, _ := getFloat(row, "TradeValueEUR", "Trade Value EUR", "tradeValueEUR", "ValueEUR")

	return model.RawObservation{
		Reporter:   reporterCode,
		Partner:    partner,
		Year:       year,
		Flow:       flow,
		Product:    product,
		QuantityKG: quantity,
		ValueUSD:   valueUSD * multiplier,
		ValueEUR:   valueEUR * multiplier,
	}, true
}

func normalizePartner(partner string) string {
	trimmed := strings.TrimSpace(partner)
	if strings.EqualFold(trimmed, "world") || strings.EqualFold(trimmed, "wld") {
		return model.PartnerWorld
	}
	return trimmed
}

func getString(row map[string]any, keys ...string) (string, bool) {
	value, ok := getValue(row, keys...)
	if !ok {
		return "", false
	}
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	case json.Number:
		return typed.String(), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	default:
		return "", false
	}
}

func getFloat(row map[string]any, keys ...string) (float64, bool) {
	value, ok := getValue(row, keys...)
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func getValue(row map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := row[key]; ok {
			return value, ok
		}
	}
	for rowKey, value := range row {
		for _, key := range keys {
			if strings.EqualFold(rowKey, key) {
				return value, true
			}
		}
	}
	return nil, false
}

var _ providers.Provider = (*Provider)(nil)
