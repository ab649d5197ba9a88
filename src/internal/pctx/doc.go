// Package pctx builds the contexts used throughout swh-dedup.
//
// A context from this package always carries a logger.  Entry points get their root with
// Background; long-running pieces of work are spun off with Child, which names the logger:
//
//	go r.worker(pctx.Child(ctx, "worker", pctx.WithFields(zap.Int("id", i))))
//
// The convention is for parents to name their children, using oneCamelCaseWord names.
package pctx
