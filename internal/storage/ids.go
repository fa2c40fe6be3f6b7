package storage

// Kind selects an identifier sequence.
type Kind int

const (
	KindUser Kind = iota
	KindFolder
	KindFile
	KindQuota
	numKinds
)

// Allocator issues identifiers that increase strictly per kind, start at 1
// and are never reused. It is not safe for concurrent use; Store serializes
// access.
type Allocator struct {
	last [numKinds]int64
}

// Next advances the counter for kind and returns the new identifier.
func (a *Allocator) Next(kind Kind) int64 {
	a.last[kind]++
	return a.last[kind]
}

// Peek returns the most recently issued identifier for kind, or 0.
func (a *Allocator) Peek(kind Kind) int64 {
	return a.last[kind]
}
