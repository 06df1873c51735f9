// Package engine defines the contract of the underlying cryptographic
// engine: the component that actually signs, builds and checks composite
// proofs. The rest of the module treats the engine as a black box: it
// assembles statement and witness collections, hands them over, and never
// interprets signature or proof bytes itself.
//
// Implementations are expected to be stateless and safe for concurrent use;
// all mutable state of a proof lives in the request and witness values
// passed per call.
package engine

import (
	"math/big"
	"sort"

	"github.com/zkcred/zkcred/composite"
)

// BlindCommitmentKey is the fixed Pedersen key under which attribute
// commitments for blind issuance are formed. Sharing the key with the
// general commitment machinery lets a presentation attach a commitment
// statement whose openings are exactly the blinding factor followed by the
// hidden attribute values.
var BlindCommitmentKey = []byte("zkcred/blind-commitment/v1")

// CommitmentOpenings lays out the opening vector of a blind-issuance
// commitment: blinding factor first, then the hidden values in ascending
// message-index order. Engines and provers must agree on this layout for a
// commitment statement over the blinded request to open.
func CommitmentOpenings(blinding []byte, hidden map[int]*big.Int) []*big.Int {
	idx := make([]int, 0, len(hidden))
	for i := range hidden {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]*big.Int, 0, len(hidden)+1)
	out = append(out, new(big.Int).SetBytes(blinding))
	for _, i := range idx {
		out = append(out, hidden[i])
	}
	return out
}

// SignatureParams sizes a signature scheme instance to a message count. The
// label ties the parameters to a context (usually the schema) so signatures
// over differently-shaped credentials are domain-separated.
type SignatureParams struct {
	Label        []byte
	MessageCount int
}

// ProofOutput is the result of proof generation: the composite proof bytes
// and, when the request contained verifiable-encryption statements, the
// produced ciphertexts keyed by statement index.
type ProofOutput struct {
	Proof       []byte
	Ciphertexts map[int][]byte
}

// Engine is the opaque cryptographic engine.
type Engine interface {
	// KeyGen creates a keypair for the named signature scheme.
	KeyGen(scheme string) (secretKey, publicKey []byte, err error)

	// Sign signs encoded messages; Verify checks a signature. Message
	// slices are indexed by the flattened-schema attribute index.
	Sign(scheme string, secretKey []byte, params SignatureParams, messages []*big.Int) ([]byte, error)
	Verify(scheme string, publicKey []byte, params SignatureParams, messages []*big.Int, signature []byte) error

	// CommitAttributes commits to hidden messages for blind issuance,
	// returning the commitment and the holder-kept blinding factor.
	CommitAttributes(params SignatureParams, hidden map[int]*big.Int) (commitment, blinding []byte, err error)

	// BlindSign signs a commitment together with the messages known to the
	// issuer; Unblind completes the signature with the holder's blinding.
	BlindSign(scheme string, secretKey []byte, params SignatureParams, commitment []byte, known map[int]*big.Int) ([]byte, error)
	Unblind(scheme string, blindSignature, blinding []byte) ([]byte, error)

	// PedersenCommit computes the commitment value for a pseudonym over the
	// given exponents under the verifier-specific key.
	PedersenCommit(key []byte, exponents []*big.Int) ([]byte, error)

	// GenerateProof builds the composite proof for the request. Witness
	// validity (signature possession, accumulator consistency, bound
	// satisfaction, equality sets) is enforced here; an unsatisfiable
	// request is an error, never a silently unsound proof.
	GenerateProof(req *composite.ProofRequest, witnesses composite.Witnesses) (*ProofOutput, error)

	// VerifyProof checks a proof against a request. A nil return means
	// verified; ErrProofInvalid wraps all "proof does not verify" outcomes
	// so callers can distinguish them from structural faults.
	VerifyProof(proof []byte, req *composite.ProofRequest) error
}
