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

// Package httpapi serves the ledger over a JSON API on HTTP, along with the
// prometheus metrics of the node.
package httpapi

import (
	"context"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/direct-state-transfer/fundme"
	"github.com/direct-state-transfer/fundme/ledger"
	"github.com/direct-state-transfer/fundme/log"
)

const readHeaderTimeout = 10 * time.Second

// Ledger is the set of ledger operations served by the API.
type Ledger interface {
	Fund(ctx context.Context, contributor common.Address, amount *big.Int) error
	Withdraw(ctx context.Context, caller common.Address) (*big.Int, error)
	CheaperWithdraw(ctx context.Context, caller common.Address) (*big.Int, error)

	PriceFeed() fundme.PriceFeed
	Owner() common.Address
	MinimumUSD() *big.Int
	AmountFunded(funder common.Address) *big.Int
	Funder(index int) (common.Address, error)
	Funders() []common.Address
	Balance() *big.Int
}

var _ Ledger = (*ledger.Ledger)(nil)

// Server serves the ledger API.
type Server struct {
	log.Logger

	l        Ledger
	registry *prometheus.Registry

	mu  sync.Mutex
	srv *http.Server
}

// NewServer returns a server for the ledger. Metrics of the ledger package are
// registered with a registry owned by the server.
func NewServer(l Ledger) (*Server, error) {
	registry := prometheus.NewRegistry()
	for _, c := range ledger.PromCollectors {
		if err := registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering metrics")
		}
	}
	return &Server{
		Logger:   log.NewLoggerWithField("api", "http"),
		l:        l,
		registry: registry,
	}, nil
}

// Router returns the handler for all the routes of the API.
//
// The API has no authentication. POST /v1/fund signs with keys held by the node,
// so the listen address must not be exposed to untrusted clients.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		s.requestLogger,
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", s.health)
		r.Get("/ledger", s.summary)
		r.Post("/fund", s.fund)
		r.Post("/withdraw", s.withdraw)
		r.Post("/cheaper-withdraw", s.cheaperWithdraw)
		r.Get("/funders", s.funders)
		r.Get("/funders/{index}", s.funder)
		r.Get("/amounts/{address}", s.amountFunded)
		r.Get("/price-feed", s.priceFeed)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// ListenAndServe serves the API at addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv := s.srv
	s.mu.Unlock()

	s.Infof("Serving ledger API at %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving ledger API")
	}
	return nil
}

// Shutdown gracefully stops the server started by ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
