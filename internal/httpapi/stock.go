package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"stocktalk/internal/brokerage"
	"stocktalk/internal/company"
)

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := s.broker.Buy(r.Context(), req.UserID, req.AccountName, req.StockSymbol, req.Quantity)
	if err != nil {
		s.log.Error("buy failed", "symbol", req.StockSymbol, "error", err)
		writeError(w, http.StatusInternalServerError, "Error buying stock")
		return
	}
	writeJSON(w, orderResponse{Success: true, Order: order})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := s.broker.Sell(r.Context(), req.UserID, req.AccountName, req.StockSymbol, req.Quantity)
	if err != nil {
		s.log.Error("sell failed", "symbol", req.StockSymbol, "error", err)
		writeError(w, http.StatusInternalServerError, "Error selling stock")
		return
	}
	writeJSON(w, orderResponse{Success: true, Order: order})
}

func (s *Server) handleStockHistory(w http.ResponseWriter, r *http.Request) {
	userID, accountName := accountParams(r)
	symbol := r.URL.Query().Get("stockSymbol")

	bars, err := s.broker.History(r.Context(), userID, accountName, symbol)
	if err != nil {
		s.log.Error("history fetch failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting stock history")
		return
	}
	writeJSON(w, historyResponse{Success: true, Bars: bars})
}

// handleStockPosition reports the held quantity for one symbol. An account
// holding no shares is a valid answer, not an error.
func (s *Server) handleStockPosition(w http.ResponseWriter, r *http.Request) {
	userID, accountName := accountParams(r)
	symbol := r.URL.Query().Get("stockSymbol")

	pos, err := s.broker.Position(r.Context(), userID, accountName, symbol)
	if err != nil {
		if errors.Is(err, brokerage.ErrNoPosition) {
			writeJSON(w, positionResponse{Success: true, Position: zeroPosition{Symbol: symbol, Qty: "0"}})
			return
		}
		s.log.Error("position fetch failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting position")
		return
	}
	writeJSON(w, positionResponse{Success: true, Position: pos})
}

func (s *Server) handleStockGet(w http.ResponseWriter, r *http.Request) {
	userID, accountName := accountParams(r)
	symbol := r.URL.Query().Get("stockSymbol")

	asset, err := s.broker.Asset(r.Context(), userID, accountName, symbol)
	if err != nil {
		s.log.Error("asset fetch failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting stock")
		return
	}
	writeJSON(w, assetResponse{Success: true, Asset: asset})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	userID, accountName := accountParams(r)

	var symbols []string
	for _, sym := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			symbols = append(symbols, sym)
		}
	}

	snaps, err := s.broker.Snapshots(r.Context(), userID, accountName, symbols)
	if err != nil {
		s.log.Error("snapshots fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error getting snapshots")
		return
	}
	writeJSON(w, snapshotsResponse{Success: true, Snapshots: snaps})
}

// handleCompany resolves a symbol to a company name from the embedded
// table. It needs no brokerage credentials.
func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("stockSymbol")

	name, ok := company.Lookup(symbol)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Error getting company name")
		return
	}
	writeJSON(w, companyResponse{
		Success:     true,
		StockSymbol: strings.ToUpper(strings.TrimSpace(symbol)),
		CompanyName: name,
	})
}
