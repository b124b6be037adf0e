// Package bootstrap resolves a peer's identity (rank, peer address table,
// listen and public addresses) from flags and environment variables before
// pkg/ssp.New is called; table geometry is not resolved here. pflag
// overrides take precedence, with the environment as fallback for anything
// left unset.
package bootstrap
