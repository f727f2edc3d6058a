package comtrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/time/rate"

	"furtrade/internal/model"
	"furtrade/internal/providers"
)

var (
	ErrNoRecords     = errors.New("comtrade: no records found")
	ErrQuotaExceeded = errors.New("comtrade: quota exceeded")
)

// Config holds the UN Comtrade HTTP settings, overridable through COMTRADE_*
// environment variables. Reporter codes in run configuration may be ISO3;
// they are resolved against the Reporters reference file on first use.
type Config struct {
	BaseURL         string        `envconfig:"BASE_URL" default:"https://comtradeapi.un.org/"`
	DataPath        string        `envconfig:"DATA_PATH" default:"data/v1/get/C/A/HS"`
	ReportersURL    string        `envconfig:"REPORTERS_URL" default:"https://comtradeapi.un.org/files/v1/app/reference/Reporters.json"`
	APIKey          string        `envconfig:"API_KEY"`
	APIKeyParam     string        `envconfig:"API_KEY_PARAM" default:"subscription-key"`
	FlowImportCode  string        `envconfig:"FLOW_IMPORT_CODE" default:"M"`
	FlowExportCode  string        `envconfig:"FLOW_EXPORT_CODE" default:"X"`
	MaxRecords      int           `envconfig:"MAX_RECORDS" default:"50000"`
	RateLimitPerSec float64       `envconfig:"RATE_LIMIT_PER_SEC" default:"2"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"2"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"30s"`
	UserAgent       string        `envconfig:"USER_AGENT" default:"furtrade/0.1"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"3"`
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter

	mu           sync.Mutex
	refsLoaded   bool
	reporterCode map[string]string
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
		return nil, errors.New("comtrade: base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 50000
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 2
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Provider{
		config:       cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
		reporterCode: make(map[string]string),
	}, nil
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("COMTRADE", &cfg); err != nil {
		return Config{}, fmt.Errorf("comtrade: config: %w", err)
	}
	return cfg, nil
}

func (p *Provider) Name() string {
	return "comtrade"
}

func (p *Provider) FetchProduct(ctx context.Context, reporterCode string, year int, flow model.Flow, product model.ProductCode) ([]model.RawObservation, error) {
	code, err := p.resolveReporterCode(ctx, reporterCode)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("reporterCode", code)
	params.Set("period", strconv.Itoa(year))
	params.Set("flowCode", p.flowCode(flow))
	params.Set("cmdCode", string(product))
	params.Set("maxRecords", strconv.Itoa(p.config.MaxRecords))
	params.Set("format", "json")

	body, err := p.doRequest(ctx, p.config.BaseURL+strings.TrimLeft(p.config.DataPath, "/"), params)
	if err != nil {
		return nil, err
	}

	var payload dataResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("comtrade: decode response: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, ErrNoRecords
	}

	observations := make([]model.RawObservation, 0, len(payload.Data))
	for _, record := range payload.Data {
		partner := partnerLabel(record)
		if partner == "" {
			continue
		}
		observations = append(observations, model.RawObservation{
			Reporter:   reporterCode,
			Partner:    partner,
			Year:       year,
			Flow:       flow,
			Product:    product,
			QuantityKG: numberValue(record.NetWgt),
			ValueUSD:   numberValue(record.PrimaryValue),
			ValueEUR:   0, // Comtrade reports USD only
		})
	}
	if len(observations) == 0 {
		return nil, ErrNoRecords
	}
	return observations, nil
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

func (p *Provider) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if p.config.APIKey != "" && p.config.APIKeyParam != "" {
		params.Set(p.config.APIKeyParam, p.config.APIKey)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if p.config.UserAgent != "" {
			req.Header.Set("User-Agent", p.config.UserAgent)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(string(body)), "quota"):
			return nil, ErrQuotaExceeded
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("comtrade: rate limited (%s)", resp.Status)
			continue
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("comtrade: request failed (%s)", resp.Status)
			continue
		case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
			return nil, fmt.Errorf("comtrade: request failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
		}
		return body, nil
	}
	return nil, lastErr
}

// resolveReporterCode maps an ISO3 reporter code to the numeric Comtrade
// code via the Reporters reference file. Numeric codes pass through.
func (p *Provider) resolveReporterCode(ctx context.Context, reporterCode string) (string, error) {
	trimmed := strings.TrimSpace(reporterCode)
	if isDigits(trimmed) {
		return trimmed, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.refsLoaded {
		if err := p.loadReportersLocked(ctx); err != nil {
			return "", err
		}
		p.refsLoaded = true
	}
	code, ok := p.reporterCode[strings.ToUpper(trimmed)]
	if !ok {
		return "", fmt.Errorf("comtrade: unknown reporter %s", reporterCode)
	}
	return code, nil
}

func (p *Provider) loadReportersLocked(ctx context.Context) error {
	body, err := p.doRequest(ctx, p.config.ReportersURL, url.Values{})
	if err != nil {
		return err
	}

	var payload referenceResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("comtrade: decode reporters: %w", err)
	}
	for _, entry := range payload.Results {
		iso3 := strings.ToUpper(strings.TrimSpace(entry.ReporterCodeIsoAlpha3))
		if iso3 == "" || entry.ID == nil {
			continue
		}
		p.reporterCode[iso3] = entry.ID.String()
	}
	if len(p.reporterCode) == 0 {
		return errors.New("comtrade: no reporters in reference file")
	}
	return nil
}

type dataResponse struct {
	Data []dataRecord `json:"data"`
}

type dataRecord struct {
	PartnerCode  *json.Number `json:"partnerCode"`
	PartnerDesc  string       `json:"partnerDesc"`
	NetWgt       *json.Number `json:"netWgt"`
	PrimaryValue *json.Number `json:"primaryValue"`
}

type referenceResponse struct {
	Results []referenceEntry `json:"results"`
}

type referenceEntry struct {
	ID                    *json.Number `json:"id"`
	ReporterCodeIsoAlpha3 string       `json:"reporterCodeIsoAlpha3"`
}

// partnerLabel normalizes the Comtrade partner to the label the reconciler
// keys on. Partner code 0 is the world total.
func partnerLabel(record dataRecord) string {
	if record.PartnerCode != nil && record.PartnerCode.String() == "0" {
		return model.PartnerWorld
	}
	desc := strings.TrimSpace(record.PartnerDesc)
	if strings.EqualFold(desc, "world") {
		return model.PartnerWorld
	}
	return desc
}

func numberValue(number *json.Number) float64 {
	if number == nil {
		return 0
	}
	value, err := number.Float64()
	if err != nil {
		return 0
	}
	return value
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var _ providers.Provider = (*Provider)(nil)
