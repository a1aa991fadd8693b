package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}

	// Verify the reliability constants match the voting scheme.
	if DefaultReliability != 75 {
		t.Errorf("DefaultReliability = %d, want 75", DefaultReliability)
	}
	if UpvoteDelta != 2 || DownvoteDelta != -5 {
		t.Errorf("vote deltas = %d/%d, want 2/-5", UpvoteDelta, DownvoteDelta)
	}

	// Verify structs can be constructed with real values.
	post := Post{
		PostID:      "1700000000000",
		StockSymbol: "AAPL",
		UserID:      "u1",
		Username:    "alice",
		Content:     "earnings look strong",
		Timestamp:   time.Now().Unix(),
	}
	if post.StockSymbol != "AAPL" {
		t.Errorf("post.StockSymbol = %q, want %q", post.StockSymbol, "AAPL")
	}
}

func TestPaperAccountJSONOmitsEmptyKeyMaterial(t *testing.T) {
	acct := PaperAccount{UserID: "u1", AccountName: "main", Profit: 0}
	b, err := json.Marshal(acct)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["encryptedKey"]; ok {
		t.Error("encryptedKey should be omitted when empty")
	}
	if _, ok := m["encryptedSecret"]; ok {
		t.Error("encryptedSecret should be omitted when empty")
	}
}
