// Copyright (c) 2020 - for information on the respective copyright owner
// see the NOTICE file and/or the repository at
// https://github.com/direct-state-transfer/fundme
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpapi

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/direct-state-transfer/fundme"
	"github.com/direct-state-transfer/fundme/currency"
	"github.com/direct-state-transfer/fundme/ledger"
)

const maxBodySize = 1 << 16

type (
	// HealthResp is the response of the health check.
	HealthResp struct {
		Status string `json:"status"`
		Time   int64  `json:"time"`
	}

	// SummaryResp describes the ledger.
	SummaryResp struct {
		Owner      string `json:"owner"`
		PriceFeed  string `json:"priceFeed"`
		MinimumUSD string `json:"minimumUSD"`
		Balance    string `json:"balance"`
		BalanceWei string `json:"balanceWei"`
		Funders    int    `json:"funders"`
	}

	// FundReq is the request for adding a contribution. Amount is in ETH.
	FundReq struct {
		Contributor string `json:"contributor"`
		Amount      string `json:"amount"`
	}

	// WithdrawReq is the request for both withdraw variants.
	WithdrawReq struct {
		Caller string `json:"caller"`
	}

	// WithdrawResp holds the amount transferred to the owner.
	WithdrawResp struct {
		Amount    string `json:"amount"`
		AmountWei string `json:"amountWei"`
	}

	// FundersResp lists the funders of the current funding epoch in order.
	FundersResp struct {
		Funders []string `json:"funders"`
	}

	// FunderResp holds the funder at an index.
	FunderResp struct {
		Index  int    `json:"index"`
		Funder string `json:"funder"`
	}

	// AmountResp holds the amount funded by an address.
	AmountResp struct {
		Address   string `json:"address"`
		Amount    string `json:"amount"`
		AmountWei string `json:"amountWei"`
	}

	// PriceFeedResp holds the address and the current rate of the price feed.
	// Round is omitted if the feed does not report it.
	PriceFeedResp struct {
		Address  string `json:"address"`
		Answer   string `json:"answer"`
		Decimals uint8  `json:"decimals"`
		Round    string `json:"round,omitempty"`
	}
)

var (
	ethParser = currency.NewParser(currency.ETH)
	usdParser = currency.NewParser(currency.USD)
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResp{Status: "ok", Time: time.Now().UTC().Unix()})
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	balance := s.l.Balance()
	s.writeJSON(w, http.StatusOK, SummaryResp{
		Owner:      s.l.Owner().Hex(),
		PriceFeed:  s.l.PriceFeed().Address().Hex(),
		MinimumUSD: usdParser.Print(s.l.MinimumUSD()),
		Balance:    ethParser.Print(balance),
		BalanceWei: balance.String(),
		Funders:    len(s.l.Funders()),
	})
}

// fund transfers the amount from the contributor's account to the escrow. The key of
// the contributor is taken from the node's keystore, so any client that can reach
// the API can spend from every unlocked account in it. Serve the API only to
// trusted clients.
func (s *Server) fund(w http.ResponseWriter, r *http.Request) {
	var req FundReq
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fundme.NewAPIError(fundme.ErrInvalidRequest, err))
		return
	}
	contributor, err := parseAddr(req.Contributor)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fundme.NewAPIError(fundme.ErrInvalidAddress, err))
		return
	}
	amount, err := ethParser.Parse(req.Amount)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fundme.NewAPIError(fundme.ErrInvalidAmount, err))
		return
	}

	if err = s.l.Fund(r.Context(), contributor, amount); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	funded := s.l.AmountFunded(contributor)
	s.writeJSON(w, http.StatusOK, AmountResp{
		Address:   contributor.Hex(),
		Amount:    ethParser.Print(funded),
		AmountWei: funded.String(),
	})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.doWithdraw(w, r, s.l.Withdraw)
}

func (s *Server) cheaperWithdraw(w http.ResponseWriter, r *http.Request) {
	s.doWithdraw(w, r, s.l.CheaperWithdraw)
}

func (s *Server) doWithdraw(w http.ResponseWriter, r *http.Request,
	withdrawFn func(ctx context.Context, caller common.Address) (*big.Int, error)) {
	var req WithdrawReq
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fundme.NewAPIError(fundme.ErrInvalidRequest, err))
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fundme.NewAPIError(fundme.ErrInvalidAddress, err))
		return
	}

	amount, err := withdrawFn(r.Context(), caller)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, WithdrawResp{
		Amount:    ethParser.Print(amount),
		AmountWei: amount.String(),
	})
}

func (s *Server) funders(w http.ResponseWriter, r *http.Request) {
	funders := s.l.Funders()
	resp := FundersResp{Funders: make([]string, len(funders))}
	for i := range funders {
		resp.Funders[i] = funders[i].Hex()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) funder(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fundme.NewAPIError(fundme.ErrInvalidRequest,
			errors.Wrap(err, "parsing index")))
		return
	}
	funder, err := s.l.Funder(index)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FunderResp{Index: index, Funder: funder.Hex()})
}

func (s *Server) amountFunded(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddr(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fundme.NewAPIError(fundme.ErrInvalidAddress, err))
		return
	}
	amount := s.l.AmountFunded(addr)
	s.writeJSON(w, http.StatusOK, AmountResp{
		Address:   addr.Hex(),
		Amount:    ethParser.Print(amount),
		AmountWei: amount.String(),
	})
}

func (s *Server) priceFeed(w http.ResponseWriter, r *http.Request) {
	feed := s.l.PriceFeed()
	rate, err := feed.CurrentRate(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusBadGateway, fundme.NewAPIError(fundme.ErrPriceFeedUnavailable, err))
		return
	}
	resp := PriceFeedResp{
		Address:  feed.Address().Hex(),
		Answer:   rate.Answer.String(),
		Decimals: rate.Decimals,
	}
	if rate.RoundID != nil {
		resp.Round = rate.RoundID.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func parseAddr(str string) (common.Address, error) {
	if !common.IsHexAddress(str) {
		return common.Address{}, errors.Errorf("invalid ethereum address %q", str)
	}
	return common.HexToAddress(str), nil
}

// ledgerAPIError maps the errors returned by the ledger to an http status code and
// an api error.
func ledgerAPIError(err error) (int, error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientContribution):
		return http.StatusBadRequest, fundme.NewAPIError(fundme.ErrInsufficientContribution, err)
	case errors.Is(err, ledger.ErrInvalidContributor):
		return http.StatusBadRequest, fundme.NewAPIError(fundme.ErrInvalidAddress, err)
	case errors.Is(err, ledger.ErrNotOwner):
		return http.StatusForbidden, fundme.NewAPIError(fundme.ErrNotOwner, err)
	case errors.Is(err, ledger.ErrFunderNotFound):
		return http.StatusNotFound, fundme.NewAPIError(fundme.ErrUnknownFunder, err)
	case errors.Is(err, ledger.ErrTransferUnconfirmed):
		return http.StatusGatewayTimeout, fundme.NewAPIError(fundme.ErrTransferPending, err)
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusBadGateway, fundme.NewAPIError(fundme.ErrTransferFailed, err)
	case errors.Is(err, ledger.ErrInvalidRate):
		return http.StatusBadGateway, fundme.NewAPIError(fundme.ErrPriceFeedUnavailable, err)
	default:
		return http.StatusInternalServerError, fundme.NewAPIError(fundme.ErrInternalServer, err)
	}
}

func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := ledgerAPIError(err)
	s.writeError(w, r, status, apiErr)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.WithField("request-id", RequestIDFromContext(r.Context())).Error(err)

	var apiErr fundme.APIError
	if !errors.As(err, &apiErr) {
		apiErr = fundme.APIError{Type: fundme.ErrInternalServer, Info: err.Error()}
	}
	s.writeJSON(w, status, apiErr)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Error("Encoding response: ", err)
	}
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return errors.Wrap(dec.Decode(v), "decoding request body")
}
