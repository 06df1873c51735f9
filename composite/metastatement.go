package composite

import (
	"sort"
)

// WitnessRef addresses one witness inside a proof: the statement's index and
// the witness position within that statement (the message index for
// signature statements, the opening position for commitments, 0 for
// single-value witnesses).
type WitnessRef struct {
	Statement int `cbor:"1,keyasint" json:"statement"`
	Witness   int `cbor:"2,keyasint" json:"witness"`
}

// MetaStatement asserts that all referenced witnesses are the same field
// element. The refs form a set; they are kept sorted so equal sets serialize
// to equal bytes.
type MetaStatement struct {
	WitnessEquality []WitnessRef `cbor:"1,keyasint"`
}

// NewWitnessEquality builds an equality set over the given refs, sorted and
// deduplicated.
func NewWitnessEquality(refs ...WitnessRef) MetaStatement {
	sorted := make([]WitnessRef, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Statement != sorted[j].Statement {
			return sorted[i].Statement < sorted[j].Statement
		}
		return sorted[i].Witness < sorted[j].Witness
	})
	out := sorted[:0]
	for i, r := range sorted {
		if i == 0 || r != sorted[i-1] {
			out = append(out, r)
		}
	}
	return MetaStatement{WitnessEquality: out}
}

// MetaStatements is the ordered meta-statement collection of one proof.
type MetaStatements []MetaStatement

// Add appends a meta-statement and returns its index.
func (m *MetaStatements) Add(ms MetaStatement) int {
	*m = append(*m, ms)
	return len(*m) - 1
}
