// Package service owns the live market state of one trading pair.
//
// StateStore guards the order book replica, the book ticker cache and
// the trade window. Ingestor feeds it from the websocket feeds, and the
// gRPC and REST servers read from it concurrently.
package service
