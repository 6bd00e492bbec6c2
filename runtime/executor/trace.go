package executor

import "github.com/opal-lang/pseudo/core/tracefmt"

// Trace returns the deterministic part of r for encoding and digests.
// sourceDigest may be empty.
func (r *ExecutionResult) Trace(sourceDigest string) *tracefmt.Trace {
	entries := make([]tracefmt.Entry, len(r.Events))
	for i, e := range r.Events {
		entries[i] = tracefmt.Entry{Kind: e.Kind.String(), Text: e.Text, Line: e.Line}
	}
	return &tracefmt.Trace{
		Version:      tracefmt.FormatVersion,
		SourceDigest: sourceDigest,
		Success:      r.Success,
		Steps:        r.Steps,
		Entries:      entries,
	}
}
