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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
)

// defines prometheus metrics
var (
	promFunds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fundme_ledger_funds_total",
		Help: "total number of accepted contributions",
	})

	promRejectedFunds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fundme_ledger_funds_rejected_total",
		Help: "total number of rejected contributions by reason",
	}, []string{"reason"})

	promWithdrawals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fundme_ledger_withdrawals_total",
		Help: "total number of withdrawals by variant and result",
	}, []string{"variant", "result"})

	promFunders = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fundme_ledger_funders",
		Help: "number of funders in the current funding epoch",
	})

	promBalance = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fundme_ledger_balance_ether",
		Help: "balance held by the ledger in ether",
	})
)

// PromCollectors lists the collectors of this package. They are registered by
// the component serving the metrics.
var PromCollectors = []prometheus.Collector{
	promFunds,
	promRejectedFunds,
	promWithdrawals,
	promFunders,
	promBalance,
}
