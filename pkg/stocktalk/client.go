// Package stocktalk provides a Go client for the stocktalk-server API.
package stocktalk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client provides a Go SDK for interacting with the stocktalk-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new stocktalk API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stocktalk: %s (status %d)", e.Message, e.StatusCode)
}

// PaperAccount is a linked brokerage account. Key material is never
// returned by the server.
type PaperAccount struct {
	UserID      string  `json:"userId"`
	AccountName string  `json:"accountName"`
	Profit      float64 `json:"profit"`
}

// Bar is one aggregated trading bar.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Comment is one comment under a post.
type Comment struct {
	CommentID string `json:"commentId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Post is a feed post hydrated with comments and vote tallies.
type Post struct {
	PostID          string    `json:"postId"`
	StockSymbol     string    `json:"stockSymbol"`
	UserID          string    `json:"userId"`
	Username        string    `json:"username"`
	Content         string    `json:"content"`
	Timestamp       int64     `json:"timestamp"`
	Comments        []Comment `json:"comments"`
	UpvotingUsers   []string  `json:"upvotingUsers"`
	UpvoteCount     int       `json:"upvoteCount"`
	DownvotingUsers []string  `json:"downvotingUsers"`
	DownvoteCount   int       `json:"downvoteCount"`
}

// PortfolioHistory is the equity curve of a paper account.
type PortfolioHistory struct {
	Timestamp []int64   `json:"timestamp"`
	Equity    []float64 `json:"equity"`
}

// SignUp registers a new user and returns its id.
func (c *Client) SignUp(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		UserID string `json:"userId"`
	}
	err := c.post(ctx, "/auth/signup", map[string]string{"email": email, "password": password}, &resp)
	return resp.UserID, err
}

// SignIn verifies credentials and returns the user id.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	q := url.Values{"email": {email}, "password": {password}}
	var resp struct {
		UserID string `json:"userId"`
	}
	err := c.get(ctx, "/auth/signin", q, &resp)
	return resp.UserID, err
}

// InitialSetup completes registration with a username and age.
func (c *Client) InitialSetup(ctx context.Context, userID, username string, age int) error {
	return c.post(ctx, "/setup/initialsetup", map[string]any{
		"userId": userID, "username": username, "age": age,
	}, nil)
}

// UpdatePassword replaces the user's password.
func (c *Client) UpdatePassword(ctx context.Context, userID, password string) error {
	return c.post(ctx, "/auth/update", map[string]string{"userId": userID, "password": password}, nil)
}

// UpdateUsername changes the user's display name.
func (c *Client) UpdateUsername(ctx context.Context, userID, username string) error {
	return c.post(ctx, "/auth/updateUsername", map[string]string{"userId": userID, "username": username}, nil)
}

// Promote grants admin rights to target. The caller must be an admin.
func (c *Client) Promote(ctx context.Context, userID, targetID string) error {
	return c.post(ctx, "/auth/admin", map[string]string{"userId": userID, "targetId": targetID}, nil)
}

// CreateAccount links an Alpaca paper account under the given name.
func (c *Client) CreateAccount(ctx context.Context, userID, accountName, alpacaKey, alpacaSecretKey string) error {
	return c.post(ctx, "/accounts/create", map[string]string{
		"userId":          userID,
		"accountName":     accountName,
		"alpacaKey":       alpacaKey,
		"alpacaSecretKey": alpacaSecretKey,
	}, nil)
}

// Accounts lists the user's linked paper accounts.
func (c *Client) Accounts(ctx context.Context, userID string) ([]PaperAccount, error) {
	var resp struct {
		Accounts []PaperAccount `json:"accounts"`
	}
	err := c.get(ctx, "/accounts/get", url.Values{"userId": {userID}}, &resp)
	return resp.Accounts, err
}

// PortfolioHistory returns the equity curve for an account.
func (c *Client) PortfolioHistory(ctx context.Context, userID, accountName string) (PortfolioHistory, error) {
	var resp PortfolioHistory
	err := c.get(ctx, "/account/portfolioHistory", accountQuery(userID, accountName), &resp)
	return resp, err
}

// BuyingPower returns the account's available buying power.
func (c *Client) BuyingPower(ctx context.Context, userID, accountName string) (string, error) {
	var resp struct {
		BuyingPower string `json:"buyingPower"`
	}
	err := c.get(ctx, "/account/buyingPower", accountQuery(userID, accountName), &resp)
	return resp.BuyingPower, err
}

// Account returns the raw brokerage account snapshot.
func (c *Client) Account(ctx context.Context, userID, accountName string) (json.RawMessage, error) {
	var resp struct {
		Account json.RawMessage `json:"account"`
	}
	err := c.get(ctx, "/account/getAccount", accountQuery(userID, accountName), &resp)
	return resp.Account, err
}

// Orders returns recent orders for the account.
func (c *Client) Orders(ctx context.Context, userID, accountName string) (json.RawMessage, error) {
	var resp struct {
		Orders json.RawMessage `json:"orders"`
	}
	err := c.get(ctx, "/account/getOrders", accountQuery(userID, accountName), &resp)
	return resp.Orders, err
}

// Positions returns all open positions for the account.
func (c *Client) Positions(ctx context.Context, userID, accountName string) (json.RawMessage, error) {
	var resp struct {
		Positions json.RawMessage `json:"positions"`
	}
	err := c.get(ctx, "/account/positions", accountQuery(userID, accountName), &resp)
	return resp.Positions, err
}

// ClosePositions liquidates every open position in the account.
func (c *Client) ClosePositions(ctx context.Context, userID, accountName string) error {
	return c.post(ctx, "/account/closePositions", map[string]string{
		"userId": userID, "accountName": accountName,
	}, nil)
}

// Buy submits a market order to buy quantity shares of symbol.
func (c *Client) Buy(ctx context.Context, userID, accountName, symbol string, quantity float64) error {
	return c.trade(ctx, "/stock/buy", userID, accountName, symbol, quantity)
}

// Sell submits a market order to sell quantity shares of symbol.
func (c *Client) Sell(ctx context.Context, userID, accountName, symbol string, quantity float64) error {
	return c.trade(ctx, "/stock/sell", userID, accountName, symbol, quantity)
}

func (c *Client) trade(ctx context.Context, path, userID, accountName, symbol string, quantity float64) error {
	return c.post(ctx, path, map[string]any{
		"userId":      userID,
		"accountName": accountName,
		"stockSymbol": symbol,
		"quantity":    quantity,
	}, nil)
}

// History returns about a year of daily bars for a symbol.
func (c *Client) History(ctx context.Context, userID, accountName, symbol string) ([]Bar, error) {
	q := accountQuery(userID, accountName)
	q.Set("stockSymbol", symbol)
	var resp struct {
		Bars []Bar `json:"bars"`
	}
	err := c.get(ctx, "/stock/history", q, &resp)
	return resp.Bars, err
}

// Position returns the held quantity for one symbol. Accounts holding no
// shares report qty "0".
func (c *Client) Position(ctx context.Context, userID, accountName, symbol string) (json.RawMessage, error) {
	q := accountQuery(userID, accountName)
	q.Set("stockSymbol", symbol)
	var resp struct {
		Position json.RawMessage `json:"position"`
	}
	err := c.get(ctx, "/stock/position", q, &resp)
	return resp.Position, err
}

// Company resolves a symbol to a company name.
func (c *Client) Company(ctx context.Context, symbol string) (string, error) {
	var resp struct {
		CompanyName string `json:"companyName"`
	}
	err := c.get(ctx, "/stock/company", url.Values{"stockSymbol": {symbol}}, &resp)
	return resp.CompanyName, err
}

// CreatePost publishes a post scoped to a stock symbol and returns its id.
func (c *Client) CreatePost(ctx context.Context, userID, symbol, content string) (string, error) {
	var resp struct {
		PostID string `json:"postId"`
	}
	err := c.post(ctx, "/social/post", map[string]string{
		"userId": userID, "stockSymbol": symbol, "content": content,
	}, &resp)
	return resp.PostID, err
}

// CreateComment adds a comment under a post and returns the comment id.
func (c *Client) CreateComment(ctx context.Context, userID, postID, content string) (string, error) {
	var resp struct {
		CommentID string `json:"commentId"`
	}
	err := c.post(ctx, "/social/comment", map[string]string{
		"userId": userID, "postId": postID, "content": content,
	}, &resp)
	return resp.CommentID, err
}

// Rate records an up- or downvote on a post.
func (c *Client) Rate(ctx context.Context, userID, postID string, upvote bool) error {
	return c.post(ctx, "/social/rating", map[string]any{
		"userId": userID, "postId": postID, "upvote": upvote,
	}, nil)
}

// Posts returns the hydrated feed for a stock symbol.
func (c *Client) Posts(ctx context.Context, symbol string) ([]Post, error) {
	var resp struct {
		Posts []Post `json:"posts"`
	}
	err := c.get(ctx, "/social/getPosts", url.Values{"stockSymbol": {symbol}}, &resp)
	return resp.Posts, err
}

func accountQuery(userID, accountName string) url.Values {
	return url.Values{"userId": {userID}, "accountName": {accountName}}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
