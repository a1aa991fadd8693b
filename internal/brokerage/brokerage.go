// Package brokerage is the credential-scoped gateway to the Alpaca
// paper-trading API. Each operation resolves a stored key pair for
// "<userId>_<accountName>", builds a transient client, and forwards exactly
// one brokerage call.
package brokerage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"stocktalk/internal/docstore"
	"stocktalk/internal/domain"
	"stocktalk/internal/marketcache"
	"stocktalk/internal/secrets"
	"stocktalk/internal/util"
)

// colPaperAccounts is the document-store collection of linked accounts.
const colPaperAccounts = "PaperAccount"

// dataRequestsPerMin caps outbound market-data calls across all accounts,
// matching the Alpaca free-tier allowance.
const dataRequestsPerMin = 200

var (
	ErrNoAccount     = errors.New("brokerage: paper account not found")
	ErrAccountExists = errors.New("brokerage: paper account already exists")
	ErrNoPosition    = errors.New("brokerage: no open position for symbol")
)

// Gateway resolves per-user credentials and forwards brokerage operations.
type Gateway struct {
	store   docstore.Store
	box     *secrets.Box
	cache   *marketcache.Cache
	baseURL string
	dataURL string
	dataRL  *util.RateLimiter
	log     *slog.Logger
}

// NewGateway creates a Gateway. cache may be nil to disable the on-disk
// bar cache.
func NewGateway(store docstore.Store, box *secrets.Box, cache *marketcache.Cache, baseURL, dataURL string, log *slog.Logger) *Gateway {
	return &Gateway{
		store:   store,
		box:     box,
		cache:   cache,
		baseURL: baseURL,
		dataURL: dataURL,
		dataRL:  util.NewRateLimiter(dataRequestsPerMin),
		log:     log.With("component", "brokerage"),
	}
}

// AccountKey builds the composite document id for a paper account.
func AccountKey(userID, accountName string) string {
	return userID + "_" + accountName
}

// CreateAccount links a paper account, sealing the key pair before it is
// written. Fails with ErrAccountExists when the composite key is taken.
func (g *Gateway) CreateAccount(ctx context.Context, userID, accountName, apiKey, apiSecret string) error {
	if userID == "" || accountName == "" || apiKey == "" || apiSecret == "" {
		return errors.New("brokerage: userId, accountName, and key pair are required")
	}

	sealedKey, err := g.box.Seal(apiKey)
	if err != nil {
		return fmt.Errorf("sealing api key: %w", err)
	}
	sealedSecret, err := g.box.Seal(apiSecret)
	if err != nil {
		return fmt.Errorf("sealing api secret: %w", err)
	}

	acct := domain.PaperAccount{
		UserID:          userID,
		AccountName:     accountName,
		EncryptedKey:    sealedKey,
		EncryptedSecret: sealedSecret,
		Profit:          0,
	}

	if err := g.store.Create(ctx, colPaperAccounts, AccountKey(userID, accountName), acct); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return ErrAccountExists
		}
		return fmt.Errorf("storing paper account: %w", err)
	}
	return nil
}

// ListAccounts returns a user's paper accounts with key material stripped.
func (g *Gateway) ListAccounts(ctx context.Context, userID string) ([]domain.PaperAccount, error) {
	raws, err := g.store.Query(ctx, colPaperAccounts, "userId", userID)
	if err != nil {
		return nil, fmt.Errorf("querying paper accounts: %w", err)
	}
	accounts, err := docstore.DecodeAll[domain.PaperAccount](raws)
	if err != nil {
		return nil, fmt.Errorf("decoding paper accounts: %w", err)
	}

	for i := range accounts {
		accounts[i].EncryptedKey = ""
		accounts[i].EncryptedSecret = ""
	}
	return accounts, nil
}

// resolve loads and unseals the key pair for an account.
func (g *Gateway) resolve(ctx context.Context, userID, accountName string) (apiKey, apiSecret string, err error) {
	var acct domain.PaperAccount
	if err := g.store.Get(ctx, colPaperAccounts, AccountKey(userID, accountName), &acct); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", "", ErrNoAccount
		}
		return "", "", fmt.Errorf("loading paper account: %w", err)
	}

	apiKey, err = g.box.Open(acct.EncryptedKey)
	if err != nil {
		return "", "", fmt.Errorf("unsealing api key: %w", err)
	}
	apiSecret, err = g.box.Open(acct.EncryptedSecret)
	if err != nil {
		return "", "", fmt.Errorf("unsealing api secret: %w", err)
	}
	return apiKey, apiSecret, nil
}

// tradeClient builds a transient trading client for an account.
func (g *Gateway) tradeClient(ctx context.Context, userID, accountName string) (*alpaca.Client, error) {
	key, secret, err := g.resolve(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	return alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    key,
		APISecret: secret,
		BaseURL:   g.baseURL,
	}), nil
}

// dataClient builds a transient market-data client for an account.
func (g *Gateway) dataClient(ctx context.Context, userID, accountName string) (*marketdata.Client, error) {
	key, secret, err := g.resolve(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	opts := marketdata.ClientOpts{
		APIKey:    key,
		APISecret: secret,
	}
	if g.dataURL != "" {
		opts.BaseURL = g.dataURL
	}
	return marketdata.NewClient(opts), nil
}

// ---------------------------------------------------------------------------
// Trading operations
// ---------------------------------------------------------------------------

// Buy submits a market day order to buy qty shares of symbol.
func (g *Gateway) Buy(ctx context.Context, userID, accountName, symbol string, qty float64) (*alpaca.Order, error) {
	return g.submitOrder(ctx, userID, accountName, symbol, qty, alpaca.Buy)
}

// Sell submits a market day order to sell qty shares of symbol.
func (g *Gateway) Sell(ctx context.Context, userID, accountName, symbol string, qty float64) (*alpaca.Order, error) {
	return g.submitOrder(ctx, userID, accountName, symbol, qty, alpaca.Sell)
}

func (g *Gateway) submitOrder(ctx context.Context, userID, accountName, symbol string, qty float64, side alpaca.Side) (*alpaca.Order, error) {
	if symbol == "" || qty <= 0 {
		return nil, errors.New("brokerage: symbol and a positive quantity are required")
	}

	client, err := g.tradeClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}

	quantity := decimal.NewFromFloat(qty)
	order, err := client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         &quantity,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return nil, fmt.Errorf("placing %s order: %w", side, err)
	}

	g.log.Info("order submitted",
		"userId", userID, "account", accountName,
		"symbol", symbol, "side", side, "qty", qty)
	return order, nil
}

// Account returns the brokerage account snapshot.
func (g *Gateway) Account(ctx context.Context, userID, accountName string) (*alpaca.Account, error) {
	client, err := g.tradeClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	acct, err := client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return acct, nil
}

// BuyingPower returns the account's available buying power.
func (g *Gateway) BuyingPower(ctx context.Context, userID, accountName string) (decimal.Decimal, error) {
	acct, err := g.Account(ctx, userID, accountName)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return acct.BuyingPower, nil
}

// Orders returns recent orders for the account, newest first.
func (g *Gateway) Orders(ctx context.Context, userID, accountName string) ([]alpaca.Order, error) {
	client, err := g.tradeClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	orders, err := client.GetOrders(alpaca.GetOrdersRequest{
		Status: "all",
		Limit:  100,
		Nested: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}
	return orders, nil
}

// Positions returns all open positions for the account.
func (g *Gateway) Positions(ctx context.Context, userID, accountName string) ([]alpaca.Position, error) {
	client, err := g.tradeClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	positions, err := client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}
	return positions, nil
}

// Position returns the open position for one symbol, or ErrNoPosition when
// the brokerage reports none.
func (g *Gateway) Position(ctx context.Context, userID, accountName, symbol string) (*alpaca.Position, error) {
	client, err := g.tradeClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	pos, err := client.GetPosition(symbol)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrNoPosition
		}
		return nil, fmt.Errorf("fetching position: %w", err)
	}
	return pos, nil
}

// ClosePositions liquidates all open positions, cancelling open orders
// first, and returns the closing orders.
func (g *Gateway) ClosePositions(ctx context.Context, userID, accountName string) ([]alpaca.Order, error) {
	client, err := g.tradeClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	orders, err := client.CloseAllPositions(alpaca.CloseAllPositionsRequest{CancelOrders: true})
	if err != nil {
		return nil, fmt.Errorf("closing positions: %w", err)
	}
	g.log.Info("all positions closed", "userId", userID, "account", accountName, "orders", len(orders))
	return orders, nil
}

// PortfolioHistory returns one year of intraday equity history in 5-minute
// buckets.
func (g *Gateway) PortfolioHistory(ctx context.Context, userID, accountName string) (*alpaca.PortfolioHistory, error) {
	client, err := g.tradeClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	history, err := client.GetPortfolioHistory(alpaca.GetPortfolioHistoryRequest{
		Period:    "1A",
		TimeFrame: alpaca.Min5,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching portfolio history: %w", err)
	}
	return history, nil
}

// ---------------------------------------------------------------------------
// Market data operations
// ---------------------------------------------------------------------------

// History returns one year of daily bars for symbol ending yesterday, plus
// the latest available bar. Settled days are served from the Parquet cache
// when one is configured.
func (g *Gateway) History(ctx context.Context, userID, accountName, symbol string) ([]domain.Bar, error) {
	client, err := g.dataClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}

	end := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	start := end.AddDate(-1, 0, 0)

	var bars []domain.Bar
	fetchStart := start

	if g.cache != nil {
		cached, err := g.cache.Read(symbol, start, end)
		if err == nil && len(cached) > 0 {
			bars = cached
			fetchStart = cached[len(cached)-1].Timestamp.AddDate(0, 0, 1)
		}
	}

	if !fetchStart.After(end) {
		fetched, err := g.fetchDailyBars(ctx, client, symbol, fetchStart, end)
		if err != nil {
			return nil, err
		}
		if g.cache != nil && len(fetched) > 0 {
			if cerr := g.cache.Write(symbol, fetched); cerr != nil {
				g.log.Warn("writing bar cache", "symbol", symbol, "err", cerr)
			}
		}
		bars = append(bars, fetched...)
	}

	if err := g.dataRL.Wait(ctx); err != nil {
		return nil, err
	}
	latest, err := client.GetLatestBar(symbol, marketdata.GetLatestBarRequest{Feed: marketdata.IEX})
	if err != nil {
		return nil, fmt.Errorf("fetching latest bar: %w", err)
	}
	if latest != nil {
		bars = append(bars, toDomainBar(symbol, *latest))
	}

	return bars, nil
}

func (g *Gateway) fetchDailyBars(ctx context.Context, client *marketdata.Client, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := g.dataRL.Wait(ctx); err != nil {
		return nil, err
	}
	raw, err := client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      marketdata.IEX,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching bars: %w", err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, toDomainBar(symbol, b))
	}
	return bars, nil
}

// Snapshots returns current snapshots for the given symbols.
func (g *Gateway) Snapshots(ctx context.Context, userID, accountName string, symbols []string) (map[string]*marketdata.Snapshot, error) {
	if len(symbols) == 0 {
		return nil, errors.New("brokerage: at least one symbol is required")
	}
	if err := g.dataRL.Wait(ctx); err != nil {
		return nil, err
	}

	client, err := g.dataClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	snaps, err := client.GetSnapshots(symbols, marketdata.GetSnapshotRequest{Feed: marketdata.IEX})
	if err != nil {
		return nil, fmt.Errorf("fetching snapshots: %w", err)
	}
	return snaps, nil
}

// Asset returns brokerage metadata for one symbol.
func (g *Gateway) Asset(ctx context.Context, userID, accountName, symbol string) (*alpaca.Asset, error) {
	client, err := g.tradeClient(ctx, userID, accountName)
	if err != nil {
		return nil, err
	}
	asset, err := client.GetAsset(symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching asset: %w", err)
	}
	return asset, nil
}

// IsNotFound reports whether err is an Alpaca 404, such as requesting the
// position for a symbol the account does not hold.
func IsNotFound(err error) bool {
	var apiErr *alpaca.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

func toDomainBar(symbol string, b marketdata.Bar) domain.Bar {
	return domain.Bar{
		Symbol:     symbol,
		Timestamp:  b.Timestamp,
		Open:       b.Open,
		High:       b.High,
		Low:        b.Low,
		Close:      b.Close,
		Volume:     int64(b.Volume),
		TradeCount: int64(b.TradeCount),
		VWAP:       b.VWAP,
	}
}
