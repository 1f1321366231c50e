// Package transform reshapes catalog data into display values.
//
// Every function here is pure: no I/O, no shared state, the same input
// always yields the same output.
package transform
