// Package pricefeed provides the price feeds used by the ledger to convert
// contributions to USD: an on-chain reader for Chainlink AggregatorV3 contracts
// and an in-process mock for development chains.
package pricefeed
