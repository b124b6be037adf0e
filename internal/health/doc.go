// Package health checks peer reachability before a collective operation
// commits to it: instead of a central process periodically polling
// registered nodes, each peer runs one sweep over the rest of the cluster
// immediately before Initialise's and Terminate's barriers. pkg/ssp logs an
// unreachable peer found by that sweep as a warning naming it and still
// enters the barrier; the sweep does not fail Initialise or Terminate.
package health
