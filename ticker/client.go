package ticker

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cyberfolio/folio-core/api"
	"github.com/cyberfolio/folio-core/logger"
	"github.com/cyberfolio/folio-core/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultEndpoint is the public CoinGecko API root.
const DefaultEndpoint = "https://api.coingecko.com/api/v3"

// ErrNoPrices is returned when the upstream answered without any requested coin.
var ErrNoPrices = errors.New("no prices in response")

// Source produces a fresh snapshot on every call.
type Source interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// Client reads spot prices from a CoinGecko compatible /simple/price endpoint.
type Client struct {
	api     *api.Client
	breaker *resilience.Breaker
	symbols []string
	logger  logger.Logger
	now     func() time.Time
}

var _ Source = (*Client)(nil)

// NewClient returns a Client for symbols. A nil breaker disables short-circuiting.
func NewClient(log logger.Logger, endpoint string, symbols []string, breaker *resilience.Breaker, opts ...api.Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	log = log.WithPrefix("[ticker]")
	return &Client{
		api:     api.New(log, endpoint, opts...),
		breaker: breaker,
		symbols: symbols,
		logger:  log,
		now:     time.Now,
	}
}

func (c *Client) Symbols() []string {
	return c.symbols
}

func (c *Client) query() string {
	ids := make([]string, len(c.symbols))
	for i, s := range c.symbols {
		ids[i] = CoinID(s)
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	return "/simple/price?" + q.Encode()
}

func (c *Client) Fetch(ctx context.Context) (snap Snapshot, err error) {
	ctx, span := otel.Tracer("github.com/cyberfolio/folio-core/ticker").Start(ctx, "ticker.fetch")
	span.SetAttributes(attribute.StringSlice("ticker.symbols", c.symbols))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	fetch := func(ctx context.Context) (map[string]map[string]float64, error) {
		var body map[string]map[string]float64
		if err := c.api.Do(ctx, "GET", c.query(), nil, &body); err != nil {
			return nil, err
		}
		return body, nil
	}
	var body map[string]map[string]float64
	if c.breaker != nil {
		body, err = resilience.Guard(ctx, c.breaker, fetch)
	} else {
		body, err = fetch(ctx)
	}
	if err != nil {
		return Snapshot{}, err
	}

	snap.FetchedAt = c.now()
	for _, s := range c.symbols {
		row, ok := body[CoinID(s)]
		if !ok {
			c.logger.Warn("no price for %s", s)
			continue
		}
		snap.Quotes = append(snap.Quotes, Quote{
			Symbol:    strings.ToUpper(s),
			Price:     row["usd"],
			Change24h: row["usd_24h_change"],
		})
	}
	if len(snap.Quotes) == 0 {
		return Snapshot{}, ErrNoPrices
	}
	return snap, nil
}
