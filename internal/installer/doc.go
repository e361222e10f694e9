// Package installer drives the external Python installer into a hidden
// staging prefix inside the destination, then hands the staged tree to the
// merge engine.
//
// Each package is tried with pip first. Packages pip cannot install are
// queued and retried after the primary pass by downloading the source
// distribution from the package index and running its setup.py. A package
// that fails both paths is counted and reported; it never aborts the batch.
package installer
