// Package merge applies a caller-approved subset of a diff to a collection.
//
// ApplySelectedChanges is a pure function: it never mutates its input and
// never fails. Changes aimed at items that no longer exist are skipped.
package merge
