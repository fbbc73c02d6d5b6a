// Package diag defines the diagnostic model shared by the extractor, the
// scheduler plumbing and the output formatters.
package diag
