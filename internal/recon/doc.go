// Package recon defines the shared error contract and context carriers for
// the reconstruction pipeline. Every fatal condition in the core maps to a
// Kind so the orchestration layer can branch without string matching, and
// every surfaced error carries both a short user-facing message and a longer
// developer message with the underlying cause.
package recon
