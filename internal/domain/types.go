// Package domain defines the shared data types for the stocktalk platform:
// users, paper accounts, posts, comments, ratings, and market bars.
package domain

import "time"

// DefaultReliability is the reputation score assigned to a user at setup.
const DefaultReliability = 75

// Reliability deltas applied to a post author's score when a vote lands.
const (
	UpvoteDelta   = 2
	DownvoteDelta = -5
)

// User is the minimal profile mirrored into the document store.
type User struct {
	UserID      string `json:"userId"`
	Username    string `json:"username,omitempty"`
	Age         int    `json:"age,omitempty"`
	Setup       bool   `json:"setup"`
	Admin       bool   `json:"admin,omitempty"`
	Reliability int    `json:"reliability"`
}

// PaperAccount links a user to a simulated brokerage account. The document
// id is "<userId>_<accountName>". Key material is stored sealed; the
// EncryptedKey/EncryptedSecret fields hold base64 ciphertext and are never
// returned by read endpoints.
type PaperAccount struct {
	UserID          string  `json:"userId"`
	AccountName     string  `json:"accountName"`
	EncryptedKey    string  `json:"encryptedKey,omitempty"`
	EncryptedSecret string  `json:"encryptedSecret,omitempty"`
	Profit          float64 `json:"profit"`
}

// Post is a symbol-scoped social post. The document id is the creation time
// in unix milliseconds rendered as a decimal string.
type Post struct {
	PostID      string `json:"postId"`
	StockSymbol string `json:"stockSymbol"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"` // unix seconds
}

// Comment lives in the Comments subcollection of its post.
type Comment struct {
	CommentID string `json:"commentId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"` // formatted UTC time
}

// Rating lives in the Ratings subcollection of its post, keyed by the
// rater's user id so each user holds at most one live rating per post.
type Rating struct {
	UserID string `json:"userId"`
	Upvote bool   `json:"upvote"`
}

// SymbolStats aggregates per-symbol activity counters. Updated
// asynchronously off the request path.
type SymbolStats struct {
	StockSymbol string `json:"stockSymbol"`
	PostCount   int64  `json:"postCount"`
}

// Bar is a daily OHLCV bar for a symbol.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"tradeCount"`
	VWAP       float64   `json:"vwap"`
}
