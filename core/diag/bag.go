package diag

// Bag collects diagnostics in discovery order. The zero value is ready to use.
type Bag struct {
	items      []Diagnostic
	errorCount int
	warnCount  int
}

// Add appends d to the bag.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
	switch d.Severity {
	case SeverityError:
		b.errorCount++
	case SeverityWarning:
		b.warnCount++
	}
}

// AddAll appends every diagnostic in ds.
func (b *Bag) AddAll(ds []Diagnostic) {
	for _, d := range ds {
		b.Add(d)
	}
}

// HasErrors reports whether any error-severity diagnostic was added.
func (b *Bag) HasErrors() bool {
	return b.errorCount > 0
}

// ErrorCount returns the number of errors added.
func (b *Bag) ErrorCount() int {
	return b.errorCount
}

// WarningCount returns the number of warnings added.
func (b *Bag) WarningCount() int {
	return b.warnCount
}

// Len returns the number of diagnostics of any severity.
func (b *Bag) Len() int {
	return len(b.items)
}

// All returns a copy of every diagnostic in discovery order.
func (b *Bag) All() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// Errors returns the error diagnostics in discovery order.
func (b *Bag) Errors() []Diagnostic {
	return b.filter(SeverityError)
}

// Warnings returns the warning diagnostics in discovery order.
func (b *Bag) Warnings() []Diagnostic {
	return b.filter(SeverityWarning)
}

func (b *Bag) filter(sev Severity) []Diagnostic {
	out := make([]Diagnostic, 0, len(b.items))
	for _, d := range b.items {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}
