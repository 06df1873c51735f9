package composite

import (
	"github.com/zkcred/zkcred/cbor"
)

// ProofRequest is the complete public input of one composite proof: what an
// engine proves against witnesses and what a verifier checks a proof
// against. Context binds the surrounding protocol (version, presentation
// specification, caller context) so a proof cannot be replayed under a
// different specification.
type ProofRequest struct {
	Statements     Statements     `cbor:"1,keyasint"`
	MetaStatements MetaStatements `cbor:"2,keyasint"`
	SetupParams    []SetupParam   `cbor:"3,keyasint"`
	Context        []byte         `cbor:"4,keyasint"`
	Nonce          []byte         `cbor:"5,keyasint"`
}

// Canonical returns the deterministic serialization of the request. Both
// sides of the protocol hash this into the proof transcript, which is what
// makes statement-order identity between builder and verifier load-bearing.
func (r *ProofRequest) Canonical() ([]byte, error) {
	return cbor.Marshal(r)
}

// Kinds returns the ordered statement kind tags, used by tests asserting
// that builder and verifier assemble structurally identical requests.
func (r *ProofRequest) Kinds() []StatementKind {
	kinds := make([]StatementKind, len(r.Statements))
	for i, st := range r.Statements {
		kinds[i] = st.Kind
	}
	return kinds
}
