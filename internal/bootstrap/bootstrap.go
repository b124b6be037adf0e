package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Identity is the minimal bootstrap result: just enough for pkg/ssp.New to
// know who this peer is and how to reach the rest of the cluster.
type Identity struct {
	Rank      int
	Addrs     []string
	Listen    string
	PublicURL string
}

// FromEnv resolves an Identity from PEER_ID/PEER_ADDRS/PEER_LISTEN/PEER_ADDR.
// PEER_ADDRS is a comma-separated list of peer base URLs, ordered by rank.
func FromEnv() (Identity, error) {
	rankStr, err := mustGetenv("PEER_ID")
	if err != nil {
		return Identity{}, err
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil {
		return Identity{}, fmt.Errorf("bootstrap: PEER_ID %q is not an integer: %w", rankStr, err)
	}

	addrsStr, err := mustGetenv("PEER_ADDRS")
	if err != nil {
		return Identity{}, err
	}
	addrs := splitAddrs(addrsStr)
	if rank < 0 || rank >= len(addrs) {
		return Identity{}, fmt.Errorf("bootstrap: PEER_ID %d out of range [0,%d)", rank, len(addrs))
	}

	listen := getenv("PEER_LISTEN", ":8081")
	public := getenv("PEER_ADDR", addrs[rank])

	return Identity{Rank: rank, Addrs: addrs, Listen: listen, PublicURL: public}, nil
}

// FromFlags builds an Identity directly from already-parsed values, for
// cmd/peer's pflag path: flags take precedence, env vars are the fallback
// for anything left unset (a negative rank, no addrs, an empty string).
func FromFlags(rank int, addrs []string, listen, public string) (Identity, error) {
	if len(addrs) == 0 {
		if v := os.Getenv("PEER_ADDRS"); v != "" {
			addrs = splitAddrs(v)
		}
	}
	if rank < 0 {
		if v := os.Getenv("PEER_ID"); v != "" {
			r, err := strconv.Atoi(v)
			if err != nil {
				return Identity{}, fmt.Errorf("bootstrap: PEER_ID %q is not an integer: %w", v, err)
			}
			rank = r
		}
	}
	if rank < 0 || rank >= len(addrs) {
		return Identity{}, fmt.Errorf("bootstrap: rank %d out of range [0,%d)", rank, len(addrs))
	}
	if listen == "" {
		listen = getenv("PEER_LISTEN", ":8081")
	}
	if public == "" {
		public = getenv("PEER_ADDR", addrs[rank])
	}
	return Identity{Rank: rank, Addrs: addrs, Listen: listen, PublicURL: public}, nil
}

func splitAddrs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getenv retrieves an environment variable with a default fallback value.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// mustGetenv retrieves a required environment variable, returning an error
// (rather than terminating the process, since this package is a library) if
// it is unset or empty.
func mustGetenv(k string) (string, error) {
	if v := os.Getenv(k); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("bootstrap: missing required env %s", k)
}
