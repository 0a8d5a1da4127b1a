// Package model defines the core types shared by every docluster component.
//
// # Input Types
//
//   - Document: an immutable {ID, Text} pair supplied by the caller
//   - FeatureVector: the fixed-dimension, L2-normalized vector of a document
//
// # Analysis Types
//
//   - DataCharacteristics: corpus statistics used for strategy selection
//   - Strategy: the selected primary algorithm, fallbacks and parameters
//   - Params: typed hyperparameters shared by all algorithms
//
// # Output Types
//
//   - Cluster: one group produced by a single algorithm run
//   - AlgorithmResult: the clusters and quality signals of one algorithm
//   - HybridCluster: one group of a fused (consensus) result
//   - Result: the bundle returned by the orchestrator
//
// # Errors
//
// Invalid configuration (unknown algorithm keys, parameters out of range)
// is reported as *ConfigurationError and matches ErrConfiguration:
//
//	if errors.Is(err, model.ErrConfiguration) {
//	    // reject the request
//	}
package model
