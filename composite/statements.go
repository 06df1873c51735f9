// Package composite holds the building blocks of a composite zero-knowledge
// proof: ordered collections of statements (public relations), witnesses
// (private data satisfying them), meta-statements (equality constraints
// linking witnesses across statements) and a tracker for shared setup
// parameters.
//
// The collections are append-only and order-preserving. A statement's index
// is its position in the collection, witnesses live at the same index as the
// statement they satisfy, and meta-statements refer to both by index. Prover
// and verifier must assemble identical collections for a proof to verify, so
// every Add returns the assigned index and callers thread that index into
// whatever refers to it instead of recounting.
package composite

import (
	"math/big"

	"github.com/zkcred/zkcred/cbor"
)

// StatementKind discriminates the relation a statement describes.
type StatementKind string

const (
	KindPoKSignature             StatementKind = "pok-signature"
	KindAccumulatorMembership    StatementKind = "accumulator-membership"
	KindAccumulatorNonMembership StatementKind = "accumulator-non-membership"
	KindBoundCheck               StatementKind = "bound-check"
	KindVerifiableEncryption     StatementKind = "verifiable-encryption"
	KindR1CSCircuit              StatementKind = "r1cs-circuit"
	KindPedersenCommitment       StatementKind = "pedersen-commitment"
)

// NoParamsRef marks a statement field that does not reference the setup
// parameter array.
const NoParamsRef = -1

// Statement is a serialized public relation. The body is deterministic CBOR
// of one of the *Statement structs below; the core treats it as opaque bytes
// and only an engine decodes it.
type Statement struct {
	Kind StatementKind `cbor:"1,keyasint"`
	Body []byte        `cbor:"2,keyasint"`
}

// Statements is the append-only, order-preserving statement collection of
// one proof.
type Statements []Statement

// Add appends a statement and returns its index.
func (s *Statements) Add(st Statement) int {
	*s = append(*s, st)
	return len(*s) - 1
}

// PoKSignatureStatement describes "prover knows a valid signature under
// PublicKey over MessageCount messages of which the ones in Revealed are
// public".
type PoKSignatureStatement struct {
	Scheme       string          `cbor:"1,keyasint"`
	PublicKey    []byte          `cbor:"2,keyasint"`
	ParamsLabel  []byte          `cbor:"3,keyasint"`
	MessageCount int             `cbor:"4,keyasint"`
	Revealed     map[int][]byte  `cbor:"5,keyasint"`
}

// AccumulatorStatement describes (non-)membership of a hidden element in the
// accumulator with the given public value. ParamsRef points at the proving
// or verifying key in the setup parameter array.
type AccumulatorStatement struct {
	Accumulated []byte `cbor:"1,keyasint"`
	PublicKey   []byte `cbor:"2,keyasint"`
	ParamsRef   int    `cbor:"3,keyasint"`
}

// BoundCheckStatement describes min <= hidden value < max in the encoded
// domain. ParamsRef points at the shared SNARK key material.
type BoundCheckStatement struct {
	Min       []byte `cbor:"1,keyasint"`
	Max       []byte `cbor:"2,keyasint"`
	ParamsRef int    `cbor:"3,keyasint"`
}

// VerifiableEncryptionStatement describes a ciphertext of a hidden message
// decryptable by the holder of the key material at ParamsRef.
type VerifiableEncryptionStatement struct {
	ChunkBitSize int `cbor:"1,keyasint"`
	ParamsRef    int `cbor:"2,keyasint"`
}

// R1CSCircuitStatement describes satisfaction of a compiled circuit. R1CSRef
// and WasmRef point at the circuit artifacts in the setup parameter array;
// public inputs are bound by name.
type R1CSCircuitStatement struct {
	CircuitID    string            `cbor:"1,keyasint"`
	R1CSRef      int               `cbor:"2,keyasint"`
	WasmRef      int               `cbor:"3,keyasint"`
	PrivateCount int               `cbor:"4,keyasint"`
	PublicInputs map[string][]byte `cbor:"5,keyasint"`
}

// PedersenCommitmentStatement describes knowledge of an opening of
// Commitment under the given commitment key. Pseudonyms are proven with
// this statement.
type PedersenCommitmentStatement struct {
	Key        []byte `cbor:"1,keyasint"`
	Commitment []byte `cbor:"2,keyasint"`
	Openings   int    `cbor:"3,keyasint"`
}

func newStatement(kind StatementKind, body interface{}) (Statement, error) {
	bts, err := cbor.Marshal(body)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Kind: kind, Body: bts}, nil
}

// NewPoKSignatureStatement serializes a signature-possession statement.
func NewPoKSignatureStatement(st *PoKSignatureStatement) (Statement, error) {
	return newStatement(KindPoKSignature, st)
}

// NewAccumulatorStatement serializes a membership or non-membership
// statement depending on the kind argument.
func NewAccumulatorStatement(kind StatementKind, st *AccumulatorStatement) (Statement, error) {
	return newStatement(kind, st)
}

// NewBoundCheckStatement serializes a bound-check statement.
func NewBoundCheckStatement(st *BoundCheckStatement) (Statement, error) {
	return newStatement(KindBoundCheck, st)
}

// NewVerifiableEncryptionStatement serializes a verifiable-encryption
// statement.
func NewVerifiableEncryptionStatement(st *VerifiableEncryptionStatement) (Statement, error) {
	return newStatement(KindVerifiableEncryption, st)
}

// NewR1CSCircuitStatement serializes a circuit-predicate statement.
func NewR1CSCircuitStatement(st *R1CSCircuitStatement) (Statement, error) {
	return newStatement(KindR1CSCircuit, st)
}

// NewPedersenCommitmentStatement serializes a commitment statement.
func NewPedersenCommitmentStatement(st *PedersenCommitmentStatement) (Statement, error) {
	return newStatement(KindPedersenCommitment, st)
}

// FieldBytes converts a field element into its big-endian wire form. The
// deterministic CBOR profile forbids bignum tags, so elements always travel
// as byte strings.
func FieldBytes(el *big.Int) []byte {
	return el.Bytes()
}

// FieldFromBytes inverts FieldBytes.
func FieldFromBytes(bts []byte) *big.Int {
	return new(big.Int).SetBytes(bts)
}

// FieldMap converts an index-to-element map to wire form.
func FieldMap(m map[int]*big.Int) map[int][]byte {
	out := make(map[int][]byte, len(m))
	for i, el := range m {
		out[i] = FieldBytes(el)
	}
	return out
}
