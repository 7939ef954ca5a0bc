// Package currency implements conversion backends for the currencies handled
// by the ledger: ETH for contributions and USD for the minimum threshold.
//
// Use IsSupported to check if the currency is supported and
// NewParser to obtain a parser for that currency.
package currency
