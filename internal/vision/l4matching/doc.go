// Package l4matching owns Layer 4 (Matching) of the benchmark data model.
//
// Responsibilities: descriptor distance metrics, the native nearest-neighbour
// searchers (exhaustive and LSH), and the NN / KNN match selection policies
// with the distance-ratio test. Key types: Selector, Result, BruteForce, LSH.
//
// Dependency rule: L4 may depend on the vision root package and L3, but
// never on the sweep or pipeline packages.
package l4matching
