// Package rpc implements transport.Transport over HTTP: each peer runs a
// server (via gorilla/mux) exposing its Info/Rows/Cache regions as one-sided
// remote-memory endpoints, and a client that calls into other peers' servers
// to perform remote reads, writes, atomics and barriers.
//
// The one-sided communication substrate itself is treated as an external
// collaborator by the core cache logic — only the transport.Transport
// interface is core; this package is the ambient glue that implements it
// over plain HTTP (timeouts, mux routing on the server side, JSON
// request/response structs on the client side). Starting and shutting down
// the HTTP server that serves Server.Handler is left to the caller.
package rpc
