// Package testutil provides testing utilities for docluster.
//
// This package is intended for use in tests only. It provides a seeded,
// thread-safe RNG, generators for clustered vectors and topic corpora, and
// helpers to check purity and coverage of a partition.
//
//	rng := testutil.NewRNG(seed)
//	vectors, labels := rng.ClusteredVectors(100, 16, 3, 0.05)
//	docs, topics := rng.Corpus(60, 8, "clustering", "ledger", "cooking")
//	purity := testutil.Purity(testutil.Members(clusters), topics)
package testutil
