package composite

import (
	"github.com/zkcred/zkcred/cbor"
)

// Witness is the serialized private counterpart of the statement at the same
// index. Witnesses never leave the prover; they exist only between builder
// and engine.
type Witness struct {
	Kind StatementKind `cbor:"1,keyasint"`
	Body []byte        `cbor:"2,keyasint"`
}

// Witnesses is the ordered witness collection of one proof.
type Witnesses []Witness

// Add appends a witness and returns its index.
func (w *Witnesses) Add(wit Witness) int {
	*w = append(*w, wit)
	return len(*w) - 1
}

// PoKSignatureWitness holds the raw signature and the encoded values of the
// unrevealed messages.
type PoKSignatureWitness struct {
	Signature  []byte         `cbor:"1,keyasint"`
	Unrevealed map[int][]byte `cbor:"2,keyasint"`
}

// AccumulatorWitness holds the hidden element and the registry-issued
// (non-)membership witness for it.
type AccumulatorWitness struct {
	Element []byte `cbor:"1,keyasint"`
	Witness []byte `cbor:"2,keyasint"`
}

// BoundCheckWitness holds the encoded value whose bound is proven.
type BoundCheckWitness struct {
	Value []byte `cbor:"1,keyasint"`
}

// EncryptionWitness holds the encoded message being verifiably encrypted.
type EncryptionWitness struct {
	Message []byte `cbor:"1,keyasint"`
}

// CircuitWitness holds the private circuit inputs in declaration order.
type CircuitWitness struct {
	Private [][]byte `cbor:"1,keyasint"`
}

// PedersenWitness holds the committed exponents in base order.
type PedersenWitness struct {
	Exponents [][]byte `cbor:"1,keyasint"`
}

func newWitness(kind StatementKind, body interface{}) (Witness, error) {
	bts, err := cbor.Marshal(body)
	if err != nil {
		return Witness{}, err
	}
	return Witness{Kind: kind, Body: bts}, nil
}

// NewPoKSignatureWitness serializes a signature-possession witness.
func NewPoKSignatureWitness(w *PoKSignatureWitness) (Witness, error) {
	return newWitness(KindPoKSignature, w)
}

// NewAccumulatorWitness serializes a (non-)membership witness; kind must
// match the accompanying statement.
func NewAccumulatorWitness(kind StatementKind, w *AccumulatorWitness) (Witness, error) {
	return newWitness(kind, w)
}

// NewBoundCheckWitness serializes a bound-check witness.
func NewBoundCheckWitness(w *BoundCheckWitness) (Witness, error) {
	return newWitness(KindBoundCheck, w)
}

// NewEncryptionWitness serializes a verifiable-encryption witness.
func NewEncryptionWitness(w *EncryptionWitness) (Witness, error) {
	return newWitness(KindVerifiableEncryption, w)
}

// NewCircuitWitness serializes a circuit witness.
func NewCircuitWitness(w *CircuitWitness) (Witness, error) {
	return newWitness(KindR1CSCircuit, w)
}

// NewPedersenWitness serializes a commitment-opening witness.
func NewPedersenWitness(w *PedersenWitness) (Witness, error) {
	return newWitness(KindPedersenCommitment, w)
}
