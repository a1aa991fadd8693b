package httpapi

import (
	"net/http"
)

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.broker.CreateAccount(r.Context(), req.UserID, req.AccountName, req.AlpacaKey, req.AlpacaSecretKey)
	if err != nil {
		s.log.Error("account creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error creating account")
		return
	}
	writeJSON(w, okResponse{Success: true, Message: "Account created"})
}

func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	accounts, err := s.broker.ListAccounts(r.Context(), userID)
	if err != nil {
		s.log.Error("listing accounts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting accounts")
		return
	}
	writeJSON(w, accountsResponse{Success: true, Accounts: accounts})
}

// accountParams pulls the account identifier pair from query parameters.
func accountParams(r *http.Request) (userID, accountName string) {
	q := r.URL.Query()
	return q.Get("userId"), q.Get("accountName")
}

func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	userID, accountName := accountParams(r)

	history, err := s.broker.PortfolioHistory(r.Context(), userID, accountName)
	if err != nil {
		s.log.Error("portfolio history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting portfolio history")
		return
	}

	equity := make([]float64, 0, len(history.Equity))
	for _, e := range history.Equity {
		f, _ := e.Float64()
		equity = append(equity, f)
	}
	writeJSON(w, portfolioHistoryResponse{
		Success:   true,
		Timestamp: history.Timestamp,
		Equity:    equity,
	})
}

func (s *Server) handleBuyingPower(w http.ResponseWriter, r *http.Request) {
	userID, accountName := accountParams(r)

	bp, err := s.broker.BuyingPower(r.Context(), userID, accountName)
	if err != nil {
		s.log.Error("buying power failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting buying power")
		return
	}
	writeJSON(w, buyingPowerResponse{Success: true, BuyingPower: bp.String()})
}

func (s *Server) handleBrokerAccount(w http.ResponseWriter, r *http.Request) {
	userID, accountName := accountParams(r)

	acct, err := s.broker.Account(r.Context(), userID, accountName)
	if err != nil {
		s.log.Error("account fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting account")
		return
	}
	writeJSON(w, brokerAccountResponse{Success: true, Account: acct})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	userID, accountName := accountParams(r)

	orders, err := s.broker.Orders(r.Context(), userID, accountName)
	if err != nil {
		s.log.Error("orders fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting orders")
		return
	}
	writeJSON(w, ordersResponse{Success: true, Orders: orders})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	userID, accountName := accountParams(r)

	positions, err := s.broker.Positions(r.Context(), userID, accountName)
	if err != nil {
		s.log.Error("positions fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting positions")
		return
	}
	writeJSON(w, positionsResponse{Success: true, Positions: positions})
}

func (s *Server) handleClosePositions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"userId"`
		AccountName string `json:"accountName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	orders, err := s.broker.ClosePositions(r.Context(), req.UserID, req.AccountName)
	if err != nil {
		s.log.Error("closing positions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error closing positions")
		return
	}
	writeJSON(w, ordersResponse{Success: true, Orders: orders})
}
