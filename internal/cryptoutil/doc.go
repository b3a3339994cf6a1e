// Package cryptoutil holds the hashing helpers used for package
// fingerprints and validator comparison.
package cryptoutil
