// Package review is the terminal side of a restore. It renders a restore
// preview, walks the user through the changes and conflicts it contains,
// and writes machine-readable reports of what was reviewed and applied.
package review
