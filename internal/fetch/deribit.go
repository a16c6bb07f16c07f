package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/btc-maxpain/internal/logger"
	"github.com/yourorg/btc-maxpain/internal/model"
	"github.com/yourorg/btc-maxpain/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	indexPriceMethod  = "public/get_index_price"
	bookSummaryMethod = "public/get_book_summary_by_currency"

	IndexName = "btc_usd"
	Currency  = "BTC"
	Kind      = "option"
)

var (
	// ErrNoData is returned when a response carries no result.
	ErrNoData = errors.New("no data returned from Deribit")

	// ErrInvalidPrice is returned for a zero, negative or non-finite index price.
	ErrInvalidPrice = errors.New("invalid index price")
)

// rpcError is the JSON-RPC error object Deribit returns instead of a result
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// DeribitClient reads the BTC index price and the option book summary.
type DeribitClient struct {
	baseURL          string
	httpClient       *http.Client
	limiter          *rate.Limiter
	priceTimeout     time.Duration
	contractsTimeout time.Duration
	log              logrus.FieldLogger
}

// NewDeribitClient creates a new Deribit API client
func NewDeribitClient(opts Options, log logrus.FieldLogger) *DeribitClient {
	limit := rate.Inf
	burst := opts.RateLimitBurst
	if opts.RateLimitRPS > 0 {
		limit = rate.Limit(opts.RateLimitRPS)
	}
	if burst < 1 {
		burst = 1
	}

	return &DeribitClient{
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		httpClient:       StandardClient(newRetryClient(opts.RetryMax)),
		limiter:          rate.NewLimiter(limit, burst),
		priceTimeout:     opts.PriceTimeout,
		contractsTimeout: opts.ContractsTimeout,
		log:              logger.Component(log, "deribit"),
	}
}

// IndexPrice returns the current BTC/USD index price.
func (c *DeribitClient) IndexPrice(ctx context.Context) (float64, error) {
	raw, err := c.get(ctx, c.priceTimeout, indexPriceMethod, url.Values{"index_name": {IndexName}})
	if err != nil {
		return 0, err
	}

	var result struct {
		IndexPrice *float64 `json:"index_price"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("error decoding index price: %w", err)
	}
	if result.IndexPrice == nil {
		return 0, fmt.Errorf("%w: index_price missing", ErrNoData)
	}

	price := *result.IndexPrice
	if !(price > 0) || math.IsInf(price, 1) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	c.log.WithField("price", price).Debug("Received index price")
	return price, nil
}

// BookSummaries returns one entry per listed BTC option.
func (c *DeribitClient) BookSummaries(ctx context.Context) ([]model.RawContract, error) {
	raw, err := c.get(ctx, c.contractsTimeout, bookSummaryMethod, url.Values{
		"currency": {Currency},
		"kind":     {Kind},
	})
	if err != nil {
		return nil, err
	}

	var contracts []model.RawContract
	if err := json.Unmarshal(raw, &contracts); err != nil {
		return nil, fmt.Errorf("error decoding book summary: %w", err)
	}

	c.log.WithField("count", len(contracts)).Debug("Received book summaries")
	return contracts, nil
}

func (c *DeribitClient) get(ctx context.Context, timeout time.Duration, method string, query url.Values) (json.RawMessage, error) {
	ctx, span := tracing.Tracer().Start(ctx, "deribit."+strings.TrimPrefix(method, "public/"))
	defer span.End()

	raw, err := c.do(ctx, timeout, method, query)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("response.bytes", len(raw)))
	return raw, nil
}

func (c *DeribitClient) do(ctx context.Context, timeout time.Duration, method string, query url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoint := c.baseURL + "/" + method + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debugf("Fetching %s", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s from Deribit: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading %s response: %w", method, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if decodeErr == nil && env.Error != nil {
		return nil, fmt.Errorf("Deribit API error on %s: code %d: %s", method, env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Deribit API error on %s: status %d, body: %s", method, resp.StatusCode, string(body))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("error decoding %s response: %w", method, decodeErr)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, fmt.Errorf("%w: %s", ErrNoData, method)
	}
	return env.Result, nil
}
