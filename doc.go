// Package docluster groups text documents into clusters, choosing the
// clustering algorithm from the shape of the data.
//
// A run vectorizes the documents against a shared embedding table,
// measures the corpus (size, dimensionality, sparsity, noise, pairwise
// similarity structure), selects a primary algorithm with ranked
// fallbacks, predicts its cost, executes it and reports how it went.
//
// # Quick Start
//
//	ctx := context.Background()
//	engine, _ := docluster.New(docluster.WithSeed(42))
//	res, _ := engine.Run(ctx, []docluster.Document{
//	    {ID: "a", Text: "rust borrow checker lifetimes"},
//	    {ID: "b", Text: "go goroutines channels"},
//	})
//	for _, c := range res.Clusters {
//	    fmt.Println(c.ID, c.Members, c.Keywords)
//	}
//
// # Algorithms
//
// Four concrete algorithms are available: k-means, DBSCAN, hierarchical
// agglomerative clustering and a Gaussian mixture. The Hybrid strategy
// runs two of them and fuses the partitions (see package fusion). Force an
// algorithm with WithAlgorithm or WithAlgorithmName:
//
//	res, err := engine.Run(ctx, docs, docluster.WithAlgorithmName("dbscan"))
//
// A failing algorithm is replaced by the next fallback. When every
// candidate fails the run still succeeds with one cluster holding every
// document and Performance.Actual.Degraded set.
//
// # Large Corpora
//
// RunBatched clusters in parallel chunks bounded by WithBatchSize,
// WithMaxWorkers and WithMemoryLimit, then merges clusters whose keywords
// agree.
//
// # Caching
//
// WithResultCache plugs in a persistence collaborator keyed by the corpus
// fingerprint and the requested k (see package resultcache).
package docluster
