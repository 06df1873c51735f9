// Package plain is the reference implementation of the engine contract.
//
// It is a development and test engine, in the tradition of the mock crypto
// services SSI frameworks ship for exercising protocol plumbing: it enforces
// every semantic relation the statements describe (signature possession,
// accumulator consistency, bound satisfaction, witness-equality sets,
// commitment openings) at proof-generation time, and binds the resulting
// proof to the exact statement collection, context and nonce so that any
// mutation on either side fails verification.
//
// It provides NO zero-knowledge: proofs are transparent attestations, not
// SNARKs, and hidden attributes are protected only from the verifier's
// inputs, not cryptographically. Do not deploy it where anonymity matters;
// swap in an engine backed by a production proof system instead. Its value
// is that the whole credential and presentation protocol above it runs for
// real, deterministically, with no native or WASM dependencies.
package plain

import (
	"crypto/ed25519"
	"math/big"
	"sort"

	"github.com/go-errors/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/zkcred/zkcred/cbor"
	"github.com/zkcred/zkcred/composite"
	"github.com/zkcred/zkcred/engine"
	"github.com/zkcred/zkcred/internal/common"
)

// Signature scheme names the engine accepts. They all share the ed25519
// backing here; a production engine dispatches to the real primitives.
const (
	SchemeBBS     = "bbs"
	SchemeBBSPlus = "bbs+"
	SchemePS      = "ps"
	SchemeBDDT16  = "bddt16-mac"
)

// Setup parameter kinds the engine understands.
const (
	ParamEncryptionKey = composite.ParamKindEncryptionKey
	ParamSnarkKey      = composite.ParamKindSnarkKey
	ParamAccumulator   = composite.ParamKindAccumulator
	ParamR1CS          = composite.ParamKindR1CS
	ParamWasm          = composite.ParamKindWasm
)

// signature wire forms
const (
	formDirect = 1
	formBlind  = 2
)

type plainEngine struct{}

var defaultEngine engine.Engine = plainEngine{}

// Default returns the shared engine value, suitable for engine.Initialize.
// A single shared value keeps repeated initialization idempotent.
func Default() engine.Engine {
	return defaultEngine
}

func validScheme(scheme string) error {
	switch scheme {
	case SchemeBBS, SchemeBBSPlus, SchemePS, SchemeBDDT16:
		return nil
	}
	return errors.Errorf("unknown signature scheme %q", scheme)
}

// KeyGen derives an ed25519 keypair from fresh randomness. The secret key is
// the 32-byte seed.
func (plainEngine) KeyGen(scheme string) ([]byte, []byte, error) {
	if err := validScheme(scheme); err != nil {
		return nil, nil, err
	}
	seed := common.RandomBytes(ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return seed, []byte(pub), nil
}

// signPayload is the byte string actually signed: scheme, parameter label,
// message count and all encoded messages, deterministically serialized.
type signPayload struct {
	Scheme   string   `cbor:"1,keyasint"`
	Label    []byte   `cbor:"2,keyasint"`
	Count    int      `cbor:"3,keyasint"`
	Messages [][]byte `cbor:"4,keyasint"`
}

// blindPayload replaces the hidden messages with their commitment.
type blindPayload struct {
	Scheme     string         `cbor:"1,keyasint"`
	Label      []byte         `cbor:"2,keyasint"`
	Count      int            `cbor:"3,keyasint"`
	Commitment []byte         `cbor:"4,keyasint"`
	Known      map[int][]byte `cbor:"5,keyasint"`
}

// sigWire is the self-describing signature envelope.
type sigWire struct {
	Form     int    `cbor:"1,keyasint"`
	Sig      []byte `cbor:"2,keyasint"`
	KnownIdx []int  `cbor:"3,keyasint,omitempty"`
	Blinding []byte `cbor:"4,keyasint,omitempty"`
}

func fieldSlices(messages []*big.Int) [][]byte {
	out := make([][]byte, len(messages))
	for i, m := range messages {
		out[i] = composite.FieldBytes(m)
	}
	return out
}

func (plainEngine) Sign(scheme string, secretKey []byte, params engine.SignatureParams, messages []*big.Int) ([]byte, error) {
	if err := validScheme(scheme); err != nil {
		return nil, err
	}
	if len(secretKey) != ed25519.SeedSize {
		return nil, errors.New("malformed secret key")
	}
	if len(messages) != params.MessageCount {
		return nil, errors.Errorf("have %d messages, params sized for %d", len(messages), params.MessageCount)
	}
	payload, err := cbor.Marshal(&signPayload{
		Scheme:   scheme,
		Label:    params.Label,
		Count:    params.MessageCount,
		Messages: fieldSlices(messages),
	})
	if err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(secretKey)
	return cbor.Marshal(&sigWire{Form: formDirect, Sig: ed25519.Sign(priv, payload)})
}

func (e plainEngine) Verify(scheme string, publicKey []byte, params engine.SignatureParams, messages []*big.Int, signature []byte) error {
	if err := validScheme(scheme); err != nil {
		return err
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return errors.New("malformed public key")
	}
	if len(messages) != params.MessageCount {
		return errors.Errorf("have %d messages, params sized for %d", len(messages), params.MessageCount)
	}
	var wire sigWire
	if err := cbor.Unmarshal(signature, &wire); err != nil {
		return errors.WrapPrefix(err, "malformed signature", 0)
	}

	var payload []byte
	var err error
	switch wire.Form {
	case formDirect:
		payload, err = cbor.Marshal(&signPayload{
			Scheme:   scheme,
			Label:    params.Label,
			Count:    params.MessageCount,
			Messages: fieldSlices(messages),
		})
	case formBlind:
		payload, err = e.blindPayloadFromMessages(scheme, params, messages, &wire)
	default:
		return errors.Errorf("unknown signature form %d", wire.Form)
	}
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), payload, wire.Sig) {
		return errors.New("signature does not verify")
	}
	return nil
}

// blindPayloadFromMessages reconstructs the issuer-signed payload of a blind
// signature from the complete message list: messages at the recorded known
// indices go in as-is, the rest are recommitted with the unblinded factor.
func (plainEngine) blindPayloadFromMessages(scheme string, params engine.SignatureParams, messages []*big.Int, wire *sigWire) ([]byte, error) {
	if wire.Blinding == nil {
		return nil, errors.New("blind signature was never unblinded")
	}
	knownSet := make(map[int]bool, len(wire.KnownIdx))
	known := make(map[int][]byte, len(wire.KnownIdx))
	for _, i := range wire.KnownIdx {
		if i < 0 || i >= len(messages) {
			return nil, errors.Errorf("known index %d out of range", i)
		}
		knownSet[i] = true
		known[i] = composite.FieldBytes(messages[i])
	}
	hidden := make(map[int]*big.Int)
	for i, m := range messages {
		if !knownSet[i] {
			hidden[i] = m
		}
	}
	commitment := commitHidden(wire.Blinding, hidden)
	return cbor.Marshal(&blindPayload{
		Scheme:     scheme,
		Label:      params.Label,
		Count:      params.MessageCount,
		Commitment: commitment,
		Known:      known,
	})
}

func commitHidden(blinding []byte, hidden map[int]*big.Int) []byte {
	commitment, err := plainEngine{}.PedersenCommit(engine.BlindCommitmentKey, engine.CommitmentOpenings(blinding, hidden))
	if err != nil {
		panic(err) // opening vector is never empty, marshal cannot fail
	}
	return commitment
}

func (plainEngine) CommitAttributes(params engine.SignatureParams, hidden map[int]*big.Int) ([]byte, []byte, error) {
	for i := range hidden {
		if i < 0 || i >= params.MessageCount {
			return nil, nil, errors.Errorf("hidden index %d out of range", i)
		}
	}
	blinding := common.RandomBytes(32)
	return commitHidden(blinding, hidden), blinding, nil
}

func (plainEngine) BlindSign(scheme string, secretKey []byte, params engine.SignatureParams, commitment []byte, known map[int]*big.Int) ([]byte, error) {
	if err := validScheme(scheme); err != nil {
		return nil, err
	}
	if len(secretKey) != ed25519.SeedSize {
		return nil, errors.New("malformed secret key")
	}
	knownIdx := make([]int, 0, len(known))
	knownWire := make(map[int][]byte, len(known))
	for i, m := range known {
		if i < 0 || i >= params.MessageCount {
			return nil, errors.Errorf("known index %d out of range", i)
		}
		knownIdx = append(knownIdx, i)
		knownWire[i] = composite.FieldBytes(m)
	}
	sort.Ints(knownIdx)
	payload, err := cbor.Marshal(&blindPayload{
		Scheme:     scheme,
		Label:      params.Label,
		Count:      params.MessageCount,
		Commitment: commitment,
		Known:      knownWire,
	})
	if err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(secretKey)
	return cbor.Marshal(&sigWire{Form: formBlind, Sig: ed25519.Sign(priv, payload), KnownIdx: knownIdx})
}

func (plainEngine) Unblind(scheme string, blindSignature, blinding []byte) ([]byte, error) {
	if err := validScheme(scheme); err != nil {
		return nil, err
	}
	var wire sigWire
	if err := cbor.Unmarshal(blindSignature, &wire); err != nil {
		return nil, errors.WrapPrefix(err, "malformed blind signature", 0)
	}
	if wire.Form != formBlind {
		return nil, errors.New("not a blind signature")
	}
	wire.Blinding = blinding
	return cbor.Marshal(&wire)
}

// PedersenCommit derives the commitment value for a pseudonym. Deterministic
// on purpose: a pseudonym must resolve to the same value on every
// presentation to the same verifier.
func (plainEngine) PedersenCommit(key []byte, exponents []*big.Int) ([]byte, error) {
	if len(exponents) == 0 {
		return nil, errors.New("commitment needs at least one exponent")
	}
	bts, err := cbor.Marshal(struct {
		Key       []byte   `cbor:"1,keyasint"`
		Exponents [][]byte `cbor:"2,keyasint"`
	}{key, fieldSlices(exponents)})
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(bts)
	return sum[:], nil
}
