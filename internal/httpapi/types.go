package httpapi

import (
	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stocktalk/internal/domain"
	"stocktalk/internal/social"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type okResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- auth / setup ---

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

type signinResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

type adminRequest struct {
	UserID   string `json:"userId"`
	TargetID string `json:"targetId"`
}

type updatePasswordRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

type updateUsernameRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type initialSetupRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Age      int    `json:"age"`
}

// --- accounts ---

type createAccountRequest struct {
	UserID          string `json:"userId"`
	AccountName     string `json:"accountName"`
	AlpacaKey       string `json:"alpacaKey"`
	AlpacaSecretKey string `json:"alpacaSecretKey"`
}

type accountsResponse struct {
	Success  bool                  `json:"success"`
	Accounts []domain.PaperAccount `json:"accounts"`
}

type portfolioHistoryResponse struct {
	Success   bool      `json:"success"`
	Timestamp []int64   `json:"timestamp"`
	Equity    []float64 `json:"equity"`
}

type buyingPowerResponse struct {
	Success     bool   `json:"success"`
	BuyingPower string `json:"buyingPower"`
}

type brokerAccountResponse struct {
	Success bool            `json:"success"`
	Account *alpaca.Account `json:"account"`
}

type ordersResponse struct {
	Success bool           `json:"success"`
	Orders  []alpaca.Order `json:"orders"`
}

type positionsResponse struct {
	Success   bool              `json:"success"`
	Positions []alpaca.Position `json:"positions"`
}

// --- stock ---

type tradeRequest struct {
	UserID      string  `json:"userId"`
	AccountName string  `json:"accountName"`
	StockSymbol string  `json:"stockSymbol"`
	Quantity    float64 `json:"quantity"`
}

type orderResponse struct {
	Success bool          `json:"success"`
	Order   *alpaca.Order `json:"order"`
}

type historyResponse struct {
	Success bool         `json:"success"`
	Bars    []domain.Bar `json:"bars"`
}

type positionResponse struct {
	Success  bool `json:"success"`
	Position any  `json:"position"`
}

// zeroPosition is returned when the account holds no shares of the symbol.
type zeroPosition struct {
	Symbol string `json:"symbol"`
	Qty    string `json:"qty"`
}

type assetResponse struct {
	Success bool          `json:"success"`
	Asset   *alpaca.Asset `json:"asset"`
}

type snapshotsResponse struct {
	Success   bool                            `json:"success"`
	Snapshots map[string]*marketdata.Snapshot `json:"snapshots"`
}

type companyResponse struct {
	Success     bool   `json:"success"`
	StockSymbol string `json:"stockSymbol"`
	CompanyName string `json:"companyName"`
}

// --- social ---

type createPostRequest struct {
	UserID      string `json:"userId"`
	StockSymbol string `json:"stockSymbol"`
	Content     string `json:"content"`
}

type createPostResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PostID    string `json:"postId"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type createCommentRequest struct {
	UserID  string `json:"userId"`
	PostID  string `json:"postId"`
	Content string `json:"content"`
}

type createCommentResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PostID    string `json:"postId"`
	CommentID string `json:"commentId"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type ratingRequest struct {
	UserID string `json:"userId"`
	PostID string `json:"postId"`
	Upvote bool   `json:"upvote"`
}

type postsResponse struct {
	Success bool              `json:"success"`
	Posts   []social.PostView `json:"posts"`
}
