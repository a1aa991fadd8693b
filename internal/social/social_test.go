package social

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stocktalk/internal/docstore"
	"stocktalk/internal/domain"
)

func newService(t *testing.T) (*Service, *docstore.SQLiteStore) {
	t.Helper()
	store, err := docstore.Open(filepath.Join(t.TempDir(), "social.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(store, nil, log), store
}

func seedUser(t *testing.T, store docstore.Store, id, username string, reliability int) {
	t.Helper()
	u := domain.User{UserID: id, Username: username, Setup: true, Reliability: reliability}
	if err := store.Set(context.Background(), "User", id, u); err != nil {
		t.Fatalf("seeding user %s: %v", id, err)
	}
}

func seedPost(t *testing.T, svc *Service, authorID, symbol string) domain.Post {
	t.Helper()
	post, err := svc.CreatePost(context.Background(), authorID, symbol, "content")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	return post
}

func reliabilityOf(t *testing.T, store docstore.Store, userID string) int {
	t.Helper()
	var u domain.User
	if err := store.Get(context.Background(), "User", userID, &u); err != nil {
		t.Fatalf("loading user %s: %v", userID, err)
	}
	return u.Reliability
}

func TestCreatePostDenormalizesUsername(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 75)

	post := seedPost(t, svc, "author", "AAPL")
	if post.Username != "alice" {
		t.Errorf("Username = %q, want alice", post.Username)
	}
	if post.StockSymbol != "AAPL" {
		t.Errorf("StockSymbol = %q", post.StockSymbol)
	}
	if post.PostID == "" || post.Timestamp == 0 {
		t.Errorf("post id/timestamp not set: %+v", post)
	}
}

func TestFirstUpvoteAddsTwo(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 75)
	seedUser(t, store, "voter", "bob", 75)
	post := seedPost(t, svc, "author", "AAPL")

	if err := svc.Rate(context.Background(), "voter", post.PostID, true); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if got := reliabilityOf(t, store, "author"); got != 77 {
		t.Errorf("author reliability = %d, want 77", got)
	}
}

func TestFirstDownvoteSubtractsFive(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 75)
	seedUser(t, store, "voter", "bob", 75)
	post := seedPost(t, svc, "author", "AAPL")

	if err := svc.Rate(context.Background(), "voter", post.PostID, false); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if got := reliabilityOf(t, store, "author"); got != 70 {
		t.Errorf("author reliability = %d, want 70", got)
	}
}

func TestDistinctVotersAreIndependent(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 75)
	post := seedPost(t, svc, "author", "AAPL")

	// Upvote then downvote from different users: net +2-5.
	if err := svc.Rate(context.Background(), "v1", post.PostID, true); err != nil {
		t.Fatalf("Rate v1: %v", err)
	}
	if err := svc.Rate(context.Background(), "v2", post.PostID, false); err != nil {
		t.Fatalf("Rate v2: %v", err)
	}
	if got := reliabilityOf(t, store, "author"); got != 72 {
		t.Errorf("author reliability = %d, want 72", got)
	}

	// Order-independence: a fresh post with the votes reversed lands in the
	// same place.
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	post2 := seedPost(t, svc, "author", "AAPL")
	if err := svc.Rate(context.Background(), "v2", post2.PostID, false); err != nil {
		t.Fatalf("Rate v2: %v", err)
	}
	if err := svc.Rate(context.Background(), "v1", post2.PostID, true); err != nil {
		t.Fatalf("Rate v1: %v", err)
	}
	if got := reliabilityOf(t, store, "author"); got != 69 {
		t.Errorf("author reliability after second post = %d, want 69", got)
	}
}

func TestFlipUpvoteToDownvote(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 75)
	post := seedPost(t, svc, "author", "AAPL")

	if err := svc.Rate(context.Background(), "voter", post.PostID, true); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	if got := reliabilityOf(t, store, "author"); got != 77 {
		t.Fatalf("after upvote = %d, want 77", got)
	}

	// Flip applies the -2 retraction offset plus the -5 downvote delta.
	if err := svc.Rate(context.Background(), "voter", post.PostID, false); err != nil {
		t.Fatalf("flip: %v", err)
	}
	if got := reliabilityOf(t, store, "author"); got != 70 {
		t.Errorf("after flip = %d, want 70", got)
	}
}

func TestFlipDownvoteToUpvote(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 75)
	post := seedPost(t, svc, "author", "AAPL")

	if err := svc.Rate(context.Background(), "voter", post.PostID, false); err != nil {
		t.Fatalf("downvote: %v", err)
	}
	if got := reliabilityOf(t, store, "author"); got != 70 {
		t.Fatalf("after downvote = %d, want 70", got)
	}

	// Flip applies the +5 retraction offset plus the +2 upvote delta.
	if err := svc.Rate(context.Background(), "voter", post.PostID, true); err != nil {
		t.Fatalf("flip: %v", err)
	}
	if got := reliabilityOf(t, store, "author"); got != 77 {
		t.Errorf("after flip = %d, want 77", got)
	}
}

func TestRepeatSamePolarityFails(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 75)
	post := seedPost(t, svc, "author", "AAPL")

	if err := svc.Rate(context.Background(), "voter", post.PostID, true); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := svc.Rate(context.Background(), "voter", post.PostID, true); !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("second vote error = %v, want ErrAlreadyRated", err)
	}

	// No double-counting.
	if got := reliabilityOf(t, store, "author"); got != 77 {
		t.Errorf("author reliability = %d, want 77", got)
	}
}

func TestRateMissingPost(t *testing.T) {
	svc, _ := newService(t)

	if err := svc.Rate(context.Background(), "voter", "no-such-post", true); !errors.Is(err, ErrNoPost) {
		t.Errorf("Rate error = %v, want ErrNoPost", err)
	}
}

func TestConcurrentVotersKeepIndependentRatings(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 0)
	post := seedPost(t, svc, "author", "AAPL")

	const voters = 10

	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			voter := string(rune('a'+n)) + "-voter"
			if err := svc.Rate(context.Background(), voter, post.PostID, true); err != nil {
				t.Errorf("Rate %s: %v", voter, err)
			}
		}(i)
	}
	wg.Wait()

	views, err := svc.GetPosts(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetPosts: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d posts, want 1", len(views))
	}
	if views[0].UpvoteCount != voters {
		t.Errorf("UpvoteCount = %d, want %d", views[0].UpvoteCount, voters)
	}
	if got := reliabilityOf(t, store, "author"); got != voters*domain.UpvoteDelta {
		t.Errorf("author reliability = %d, want %d", got, voters*domain.UpvoteDelta)
	}
}

func TestGetPostsHydration(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 75)
	seedUser(t, store, "carol", "carol", 75)
	post := seedPost(t, svc, "author", "TSLA")

	svc.now = func() time.Time { return time.Now().Add(time.Second) }
	if _, err := svc.CreateComment(context.Background(), post.PostID, "carol", "nice call"); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if err := svc.Rate(context.Background(), "carol", post.PostID, true); err != nil {
		t.Fatalf("Rate carol: %v", err)
	}
	if err := svc.Rate(context.Background(), "dave", post.PostID, false); err != nil {
		t.Fatalf("Rate dave: %v", err)
	}

	views, err := svc.GetPosts(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("GetPosts: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d posts, want 1", len(views))
	}

	v := views[0]
	if len(v.Comments) != 1 || v.Comments[0].Content != "nice call" {
		t.Errorf("comments = %+v", v.Comments)
	}
	if v.Comments[0].Username != "carol" {
		t.Errorf("comment username = %q, want carol", v.Comments[0].Username)
	}
	if v.UpvoteCount != 1 || len(v.UpvotingUsers) != 1 || v.UpvotingUsers[0] != "carol" {
		t.Errorf("upvotes = %d %v", v.UpvoteCount, v.UpvotingUsers)
	}
	if v.DownvoteCount != 1 || len(v.DownvotingUsers) != 1 || v.DownvotingUsers[0] != "dave" {
		t.Errorf("downvotes = %d %v", v.DownvoteCount, v.DownvotingUsers)
	}
}

func TestGetPostsEmptySymbol(t *testing.T) {
	svc, _ := newService(t)

	views, err := svc.GetPosts(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("GetPosts: %v", err)
	}
	if views == nil {
		t.Fatal("GetPosts returned nil slice, want empty")
	}
	if len(views) != 0 {
		t.Errorf("got %d posts, want 0", len(views))
	}
}

func TestCommentTimestampFormat(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "author", "alice", 75)
	post := seedPost(t, svc, "author", "AAPL")

	svc.now = func() time.Time {
		return time.Date(2024, time.March, 5, 14, 30, 9, 0, time.UTC)
	}
	c, err := svc.CreateComment(context.Background(), post.PostID, "author", "hello")
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if c.Timestamp != "March 5, 2024 at 2:30:09 PM UTC" {
		t.Errorf("Timestamp = %q", c.Timestamp)
	}
}
