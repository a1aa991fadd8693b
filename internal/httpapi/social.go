package httpapi

import (
	"net/http"
)

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeBody(w, r, &req) {
		return
	}

	post, err := s.social.CreatePost(r.Context(), req.UserID, req.StockSymbol, req.Content)
	if err != nil {
		s.log.Error("creating post failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error creating post")
		return
	}
	writeJSON(w, createPostResponse{
		Success:   true,
		Message:   "Post created",
		PostID:    post.PostID,
		Username:  post.Username,
		Content:   post.Content,
		Timestamp: post.Timestamp,
	})
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	comment, err := s.social.CreateComment(r.Context(), req.PostID, req.UserID, req.Content)
	if err != nil {
		s.log.Error("creating comment failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error creating comment")
		return
	}
	writeJSON(w, createCommentResponse{
		Success:   true,
		Message:   "Comment created",
		PostID:    req.PostID,
		CommentID: comment.CommentID,
		Username:  comment.Username,
		Content:   comment.Content,
		Timestamp: comment.Timestamp,
	})
}

func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.social.Rate(r.Context(), req.UserID, req.PostID, req.Upvote); err != nil {
		s.log.Warn("rating failed", "postId", req.PostID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error creating rating")
		return
	}
	writeJSON(w, okResponse{Success: true, Message: "Rating recorded"})
}

func (s *Server) handleGetPosts(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("stockSymbol")

	posts, err := s.social.GetPosts(r.Context(), symbol)
	if err != nil {
		s.log.Error("getting posts failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting posts")
		return
	}
	writeJSON(w, postsResponse{Success: true, Posts: posts})
}
