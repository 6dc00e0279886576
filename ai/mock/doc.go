// Package mock provides test doubles for the ai package interfaces.
//
// The mocks default to deterministic behavior (hash-derived unit
// vectors, canned completions) and expose function fields for
// injecting custom behavior plus call counters for assertions.
package mock
