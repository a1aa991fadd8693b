package brokerage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"stocktalk/internal/docstore"
	"stocktalk/internal/domain"
	"stocktalk/internal/secrets"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func newGateway(t *testing.T) (*Gateway, *docstore.SQLiteStore) {
	t.Helper()
	store, err := docstore.Open(filepath.Join(t.TempDir(), "brokerage.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	box, err := secrets.NewBox(testKey)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewGateway(store, box, nil, "https://paper-api.alpaca.markets", "", log), store
}

func TestAccountKey(t *testing.T) {
	if got := AccountKey("u1", "main"); got != "u1_main" {
		t.Errorf("AccountKey = %q, want u1_main", got)
	}
}

func TestCreateAccountSealsKeyPair(t *testing.T) {
	g, store := newGateway(t)
	ctx := context.Background()

	if err := g.CreateAccount(ctx, "u1", "main", "PKTESTKEY", "supersecret"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	// The stored document must not contain the plaintext key pair.
	var acct domain.PaperAccount
	if err := store.Get(ctx, "PaperAccount", "u1_main", &acct); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acct.EncryptedKey == "" || acct.EncryptedSecret == "" {
		t.Fatal("key material missing from stored account")
	}
	if acct.EncryptedKey == "PKTESTKEY" || acct.EncryptedSecret == "supersecret" {
		t.Fatal("key material stored in plaintext")
	}

	// resolve round-trips back to plaintext.
	key, secret, err := g.resolve(ctx, "u1", "main")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if key != "PKTESTKEY" || secret != "supersecret" {
		t.Errorf("resolve = %q/%q", key, secret)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	if err := g.CreateAccount(ctx, "u1", "main", "k", "s"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := g.CreateAccount(ctx, "u1", "main", "k2", "s2"); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate CreateAccount = %v, want ErrAccountExists", err)
	}

	// Same account name under a different user is a distinct key.
	if err := g.CreateAccount(ctx, "u2", "main", "k", "s"); err != nil {
		t.Errorf("CreateAccount for second user: %v", err)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	cases := [][4]string{
		{"", "main", "k", "s"},
		{"u1", "", "k", "s"},
		{"u1", "main", "", "s"},
		{"u1", "main", "k", ""},
	}
	for _, c := range cases {
		if err := g.CreateAccount(ctx, c[0], c[1], c[2], c[3]); err == nil {
			t.Errorf("CreateAccount(%v) succeeded, want error", c)
		}
	}
}

func TestListAccountsStripsKeyMaterial(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	if err := g.CreateAccount(ctx, "u1", "main", "k1", "s1"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := g.CreateAccount(ctx, "u1", "swing", "k2", "s2"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := g.CreateAccount(ctx, "u2", "other", "k3", "s3"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	accounts, err := g.ListAccounts(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("ListAccounts returned %d accounts, want 2", len(accounts))
	}
	for _, a := range accounts {
		if a.EncryptedKey != "" || a.EncryptedSecret != "" {
			t.Errorf("account %s leaks key material", a.AccountName)
		}
		if a.UserID != "u1" {
			t.Errorf("account %s belongs to %s", a.AccountName, a.UserID)
		}
	}
}

func TestListAccountsEmpty(t *testing.T) {
	g, _ := newGateway(t)

	accounts, err := g.ListAccounts(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("ListAccounts returned %d accounts, want 0", len(accounts))
	}
}

func TestResolveMissingAccount(t *testing.T) {
	g, _ := newGateway(t)

	_, _, err := g.resolve(context.Background(), "u1", "ghost")
	if !errors.Is(err, ErrNoAccount) {
		t.Fatalf("resolve = %v, want ErrNoAccount", err)
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := &alpaca.APIError{StatusCode: 404, Message: "position does not exist"}
	if !IsNotFound(notFound) {
		t.Error("IsNotFound should match a 404 APIError")
	}
	if !IsNotFound(fmt.Errorf("fetching position: %w", notFound)) {
		t.Error("IsNotFound should match a wrapped 404 APIError")
	}

	if IsNotFound(&alpaca.APIError{StatusCode: 500, Message: "boom"}) {
		t.Error("IsNotFound should not match a 500 APIError")
	}
	if IsNotFound(errors.New("Request failed with status code 404")) {
		t.Error("IsNotFound must not rely on error text")
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) should be false")
	}
}

func TestSnapshotsHonorCancelledContext(t *testing.T) {
	g, _ := newGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Drain the shared data-request bucket so the next call has to wait,
	// at which point the cancelled context aborts before any network I/O.
	g.dataRL.Allow()

	if _, err := g.Snapshots(ctx, "u1", "main", []string{"AAPL"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Snapshots = %v, want context.Canceled", err)
	}
}

func TestSubmitOrderValidation(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	if err := g.CreateAccount(ctx, "u1", "main", "k", "s"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if _, err := g.Buy(ctx, "u1", "main", "", 1); err == nil {
		t.Error("Buy with empty symbol should fail before any API call")
	}
	if _, err := g.Sell(ctx, "u1", "main", "AAPL", 0); err == nil {
		t.Error("Sell with zero quantity should fail before any API call")
	}
	if _, err := g.Buy(ctx, "u1", "main", "AAPL", -3); err == nil {
		t.Error("Buy with negative quantity should fail before any API call")
	}

	// Unknown account fails during credential resolution.
	if _, err := g.Buy(ctx, "u1", "ghost", "AAPL", 1); !errors.Is(err, ErrNoAccount) {
		t.Errorf("Buy unknown account = %v, want ErrNoAccount", err)
	}
}
