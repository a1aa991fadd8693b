// Package social implements the symbol-scoped feed: posts, comments, and
// ratings, plus the per-user reliability score adjusted by voting.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"stocktalk/internal/aggregate"
	"stocktalk/internal/docstore"
	"stocktalk/internal/domain"
)

// Document-store collections owned by this package.
const (
	colPosts       = "Posts"
	colUsers       = "User"
	colSymbolStats = "SymbolStats"
	colAggregates  = "Aggregates"
)

var (
	ErrNoPost       = errors.New("social: post not found")
	ErrAlreadyRated = errors.New("social: rating already exists for this user and post")
)

// commentTimeLayout matches the human-readable UTC timestamp stored on
// comment documents.
const commentTimeLayout = "January 2, 2006 at 3:04:05 PM MST"

// PostView is a post hydrated with its comments and vote tallies.
type PostView struct {
	domain.Post
	Comments        []domain.Comment `json:"comments"`
	UpvotingUsers   []string         `json:"upvotingUsers"`
	UpvoteCount     int              `json:"upvoteCount"`
	DownvotingUsers []string         `json:"downvotingUsers"`
	DownvoteCount   int              `json:"downvoteCount"`
}

// Service implements the social feed operations.
type Service struct {
	store docstore.Store
	agg   *aggregate.Writer
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a social Service. agg may be nil in tests; aggregate
// counters are then skipped.
func NewService(store docstore.Store, agg *aggregate.Writer, log *slog.Logger) *Service {
	return &Service{
		store: store,
		agg:   agg,
		log:   log.With("component", "social"),
		now:   time.Now,
	}
}

// CreatePost writes a new post scoped to a stock symbol. The post id is the
// creation time in unix milliseconds. Symbol and global post counters are
// updated off the request path.
func (s *Service) CreatePost(ctx context.Context, userID, symbol, content string) (domain.Post, error) {
	if symbol == "" || content == "" {
		return domain.Post{}, errors.New("social: stockSymbol and content are required")
	}

	ts := s.now()
	post := domain.Post{
		PostID:      strconv.FormatInt(ts.UnixMilli(), 10),
		StockSymbol: symbol,
		UserID:      userID,
		Username:    s.usernameFor(ctx, userID),
		Content:     content,
		Timestamp:   ts.Unix(),
	}

	if err := s.store.Create(ctx, colPosts, post.PostID, post); err != nil {
		return domain.Post{}, fmt.Errorf("storing post: %w", err)
	}

	if s.agg != nil {
		s.agg.Enqueue(aggregate.Update{Collection: colSymbolStats, ID: symbol, Field: "postCount", Delta: 1})
		s.agg.Enqueue(aggregate.Update{Collection: colAggregates, ID: "posts", Field: "count", Delta: 1})
	}

	return post, nil
}

// CreateComment writes a comment under a post. The comment id is the
// creation time in unix milliseconds.
func (s *Service) CreateComment(ctx context.Context, postID, userID, content string) (domain.Comment, error) {
	if postID == "" || content == "" {
		return domain.Comment{}, errors.New("social: postId and content are required")
	}

	ts := s.now()
	comment := domain.Comment{
		CommentID: strconv.FormatInt(ts.UnixMilli(), 10),
		UserID:    userID,
		Username:  s.usernameFor(ctx, userID),
		Content:   content,
		Timestamp: ts.UTC().Format(commentTimeLayout),
	}

	col := commentsCollection(postID)
	if err := s.store.Create(ctx, col, comment.CommentID, comment); err != nil {
		return domain.Comment{}, fmt.Errorf("storing comment: %w", err)
	}
	return comment, nil
}

// Rate records an up- or downvote by userID on postID and adjusts the post
// author's reliability score.
//
// A user holds at most one live rating per post (the rating doc id is the
// rater's uid). Re-voting the same polarity fails with ErrAlreadyRated.
// Changing polarity retracts the previous vote with a fixed offset (-2
// after an upvote, +5 after a downvote) before the new vote's delta (+2 or
// -5) is applied. The prior rating is deleted before the new one is
// inserted, and the score adjustment is a single atomic increment in the
// store.
func (s *Service) Rate(ctx context.Context, userID, postID string, upvote bool) error {
	var post domain.Post
	if err := s.store.Get(ctx, colPosts, postID, &post); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNoPost
		}
		return fmt.Errorf("loading post: %w", err)
	}

	ratingsCol := ratingsCollection(postID)

	offset := 0
	var prev domain.Rating
	err := s.store.Get(ctx, ratingsCol, userID, &prev)
	switch {
	case err == nil:
		if prev.Upvote == upvote {
			return ErrAlreadyRated
		}
		if prev.Upvote {
			offset = -domain.UpvoteDelta
		} else {
			offset = -domain.DownvoteDelta
		}
		if err := s.store.Delete(ctx, ratingsCol, userID); err != nil {
			return fmt.Errorf("retracting previous rating: %w", err)
		}
	case errors.Is(err, docstore.ErrNotFound):
		// First vote by this user on this post.
	default:
		return fmt.Errorf("loading previous rating: %w", err)
	}

	rating := domain.Rating{UserID: userID, Upvote: upvote}
	if err := s.store.Create(ctx, ratingsCol, userID, rating); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return ErrAlreadyRated
		}
		return fmt.Errorf("storing rating: %w", err)
	}

	delta := domain.DownvoteDelta
	if upvote {
		delta = domain.UpvoteDelta
	}

	if err := s.store.Increment(ctx, colUsers, post.UserID, "reliability", int64(delta+offset)); err != nil {
		return fmt.Errorf("adjusting author reliability: %w", err)
	}
	return nil
}

// GetPosts returns all posts for a symbol, each hydrated with comments and
// vote tallies. A symbol with no posts yields an empty slice.
func (s *Service) GetPosts(ctx context.Context, symbol string) ([]PostView, error) {
	raws, err := s.store.Query(ctx, colPosts, "stockSymbol", symbol)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	posts, err := docstore.DecodeAll[domain.Post](raws)
	if err != nil {
		return nil, fmt.Errorf("decoding posts: %w", err)
	}

	views := make([]PostView, 0, len(posts))
	for _, post := range posts {
		view := PostView{
			Post:            post,
			Comments:        []domain.Comment{},
			UpvotingUsers:   []string{},
			DownvotingUsers: []string{},
		}

		commentRaws, err := s.store.List(ctx, commentsCollection(post.PostID))
		if err != nil {
			return nil, fmt.Errorf("listing comments for %s: %w", post.PostID, err)
		}
		comments, err := docstore.DecodeAll[domain.Comment](commentRaws)
		if err != nil {
			return nil, fmt.Errorf("decoding comments for %s: %w", post.PostID, err)
		}
		view.Comments = append(view.Comments, comments...)

		ratingRaws, err := s.store.List(ctx, ratingsCollection(post.PostID))
		if err != nil {
			return nil, fmt.Errorf("listing ratings for %s: %w", post.PostID, err)
		}
		ratings, err := docstore.DecodeAll[domain.Rating](ratingRaws)
		if err != nil {
			return nil, fmt.Errorf("decoding ratings for %s: %w", post.PostID, err)
		}
		for _, r := range ratings {
			if r.Upvote {
				view.UpvotingUsers = append(view.UpvotingUsers, r.UserID)
			} else {
				view.DownvotingUsers = append(view.DownvotingUsers, r.UserID)
			}
		}
		view.UpvoteCount = len(view.UpvotingUsers)
		view.DownvoteCount = len(view.DownvotingUsers)

		views = append(views, view)
	}
	return views, nil
}

// usernameFor denormalizes the author's username onto posts and comments.
// A missing profile is logged, not fatal, matching the store's tolerance of
// partially set-up users.
func (s *Service) usernameFor(ctx context.Context, userID string) string {
	var user domain.User
	if err := s.store.Get(ctx, colUsers, userID, &user); err != nil {
		s.log.Warn("looking up username", "userId", userID, "err", err)
		return ""
	}
	return user.Username
}

func commentsCollection(postID string) string {
	return colPosts + "/" + postID + "/Comments"
}

func ratingsCollection(postID string) string {
	return colPosts + "/" + postID + "/Ratings"
}
