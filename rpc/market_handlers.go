package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"nftmarket/native/auction"
	nativecommon "nftmarket/native/common"
)

const (
	codeMarketInvalidParams = -32031
	codeMarketNotFound      = -32032
	codeMarketForbidden     = -32033
	codeMarketConflict      = -32034
	codeMarketInternal      = -32035
)

type marketCreateParams struct {
	Seller      string `json:"seller"`
	Item        string `json:"item"`
	MinPrice    string `json:"minPrice,omitempty"`
	BuyPrice    string `json:"buyPrice,omitempty"`
	EpochPeriod uint64 `json:"epochPeriod"`
}

type marketBidParams struct {
	Bidder string `json:"bidder"`
	Item   string `json:"item"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type marketItemParams struct {
	Item string `json:"item"`
}

type marketCancelParams struct {
	Badge string `json:"badge"`
}

type bidJSON struct {
	Bidder string `json:"bidder"`
	Amount string `json:"amount"`
}

type auctionJSON struct {
	Item         string   `json:"item"`
	Seller       string   `json:"seller"`
	MinPrice     *string  `json:"minPrice,omitempty"`
	BuyPrice     *string  `json:"buyPrice,omitempty"`
	HighestBid   *bidJSON `json:"highestBid,omitempty"`
	CreatedEpoch uint64   `json:"createdEpoch"`
	EndingEpoch  uint64   `json:"endingEpoch"`
	BadgeID      string   `json:"badgeId"`
	Status       string   `json:"status"`
}

type marketCreateResult struct {
	Auction auctionJSON `json:"auction"`
	Badge   string      `json:"badge"`
}

func auctionToJSON(a *auction.Auction) auctionJSON {
	out := auctionJSON{
		Item:         a.Item.String(),
		Seller:       hex.EncodeToString(a.Seller[:]),
		CreatedEpoch: a.CreatedEpoch,
		EndingEpoch:  a.EndingEpoch,
		BadgeID:      hex.EncodeToString(a.BadgeID[:]),
		Status:       a.Status.String(),
	}
	if a.MinPrice != nil {
		value := a.MinPrice.String()
		out.MinPrice = &value
	}
	if a.BuyPrice != nil {
		value := a.BuyPrice.String()
		out.BuyPrice = &value
	}
	if a.HighestBid != nil {
		out.HighestBid = &bidJSON{
			Bidder: hex.EncodeToString(a.HighestBid.Bidder[:]),
			Amount: a.HighestBid.Amount.String(),
		}
	}
	return out
}

func parseHexAddress(value string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(value, "0x")))
	if err != nil {
		return addr, fmt.Errorf("invalid address encoding: %w", err)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("invalid address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseOptionalPrice(value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return parsePositiveBigInt(value)
}

func singleParamObject(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketCreateParams
	if err := singleParamObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseHexAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	item, err := auction.ParseItemID(params.Item)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	minPrice, err := parseOptionalPrice(params.MinPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	buyPrice, err := parseOptionalPrice(params.BuyPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	created, badge, err := s.engine.CreateAuction(seller, item, minPrice, buyPrice, params.EpochPeriod)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, marketCreateResult{Auction: auctionToJSON(created), Badge: badge.String()})
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketBidParams
	if err := singleParamObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	bidder, err := parseHexAddress(params.Bidder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	item, err := auction.ParseItemID(params.Item)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	if err := s.engine.PlaceBid(bidder, item, params.Token, amount); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	stored, _, err := s.engine.GetAuction(item)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionToJSON(stored))
}

func (s *Server) handleFinishAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketItemParams
	if err := singleParamObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	item, err := auction.ParseItemID(params.Item)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	if err := s.engine.Finish(item); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	stored, _, err := s.engine.GetAuction(item)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionToJSON(stored))
}

func (s *Server) handleCancelAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketCancelParams
	if err := singleParamObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	badge, err := auction.ParseCancelBadge(params.Badge)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	if err := s.engine.Cancel(badge); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	stored, _, err := s.engine.GetAuction(badge.Item)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionToJSON(stored))
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketItemParams
	if err := singleParamObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	item, err := auction.ParseItemID(params.Item)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}

	stored, ok, err := s.engine.GetAuction(item)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMarketNotFound, "not_found", item.String())
		return
	}
	writeResult(w, req.ID, auctionToJSON(stored))
}

func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", "no parameters expected")
		return
	}
	listed, err := s.engine.Auctions()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	out := make([]auctionJSON, 0, len(listed))
	for _, a := range listed {
		out = append(out, auctionToJSON(a))
	}
	writeResult(w, req.ID, out)
}

func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeMarketInternal
	message := "internal_error"
	data := err.Error()
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound):
		status = http.StatusNotFound
		code = codeMarketNotFound
		message = "not_found"
	case errors.Is(err, auction.ErrBadgeMismatch),
		errors.Is(err, auction.ErrBadgeSpent),
		errors.Is(err, auction.ErrItemNotOwned),
		errors.Is(err, auction.ErrNotAccount):
		status = http.StatusForbidden
		code = codeMarketForbidden
		message = "forbidden"
	case errors.Is(err, auction.ErrInvalidToken),
		errors.Is(err, auction.ErrInvalidAmount),
		errors.Is(err, auction.ErrInvalidPeriod),
		errors.Is(err, auction.ErrPriceBounds):
		status = http.StatusBadRequest
		code = codeMarketInvalidParams
		message = "invalid_params"
	case errors.Is(err, auction.ErrAuctionExists),
		errors.Is(err, auction.ErrAuctionSettled),
		errors.Is(err, auction.ErrAuctionExpired),
		errors.Is(err, auction.ErrAuctionInProgress),
		errors.Is(err, auction.ErrCancelAfterExpiry),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrBelowMinPrice),
		errors.Is(err, auction.ErrAboveBuyPrice),
		errors.Is(err, auction.ErrInsufficientFunds),
		errors.Is(err, nativecommon.ErrQuotaBidsExceeded),
		errors.Is(err, nativecommon.ErrQuotaMKTCapExceeded),
		errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusConflict
		code = codeMarketConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, data)
}
