package plain

import (
	"bytes"
	"crypto/ed25519"
	"math/big"
	"sync"

	"github.com/go-errors/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/zkcred/zkcred/cbor"
	"github.com/zkcred/zkcred/composite"
	"github.com/zkcred/zkcred/internal/common"
)

// Registry is the reference accumulator: the revocation authority's state
// for one credential registry. Adding a member leaves the accumulated value
// untouched; revoking bumps the epoch, which changes the value and
// invalidates every previously issued witness, so holders must fetch fresh
// witnesses after a revocation event. That mirrors how the real accumulator
// behaves from the protocol's point of view, which is all the plain engine
// cares about.
type Registry struct {
	mu      sync.Mutex
	seed    []byte
	pub     ed25519.PublicKey
	members map[string]bool
	epoch   uint64
}

// witnessWire is a registry-issued witness: a signature over the accumulated
// value and the member element, tagged by check kind.
type witnessWire struct {
	Value []byte `cbor:"1,keyasint"`
	Sig   []byte `cbor:"2,keyasint"`
}

const (
	tagMembership    = "memb"
	tagNonMembership = "nonmemb"
)

// NewRegistry creates a registry with a fresh authority keypair.
func NewRegistry() *Registry {
	seed := common.RandomBytes(ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	return &Registry{
		seed:    seed,
		pub:     priv.Public().(ed25519.PublicKey),
		members: make(map[string]bool),
	}
}

// PublicKey returns the registry authority's public key, needed by both
// prover and verifier to build accumulator statements.
func (r *Registry) PublicKey() []byte {
	return []byte(r.pub)
}

// Value returns the current accumulated value.
func (r *Registry) Value() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value()
}

func (r *Registry) value() []byte {
	bts, err := cbor.Marshal(struct {
		Pub   []byte `cbor:"1,keyasint"`
		Epoch uint64 `cbor:"2,keyasint"`
	}{[]byte(r.pub), r.epoch})
	if err != nil {
		panic(err)
	}
	sum := blake2b.Sum256(bts)
	return sum[:]
}

// Add accumulates a member. As with the RSA-B accumulator, adding costs
// nothing and does not change the accumulated value.
func (r *Registry) Add(element *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[string(composite.FieldBytes(element))] = true
}

// Revoke removes a member and advances the epoch; all outstanding witnesses
// stop matching the new accumulated value.
func (r *Registry) Revoke(element *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := string(composite.FieldBytes(element))
	if !r.members[key] {
		return errors.New("element is not a member")
	}
	delete(r.members, key)
	r.epoch++
	return nil
}

// MembershipWitness issues a witness for a current member.
func (r *Registry) MembershipWitness(element *big.Int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.members[string(composite.FieldBytes(element))] {
		return nil, errors.New("element is not a member")
	}
	return r.witness(tagMembership, element)
}

// NonMembershipWitness issues a witness that the element is not accumulated.
func (r *Registry) NonMembershipWitness(element *big.Int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[string(composite.FieldBytes(element))] {
		return nil, errors.New("element is a member")
	}
	return r.witness(tagNonMembership, element)
}

func (r *Registry) witness(tag string, element *big.Int) ([]byte, error) {
	value := r.value()
	payload, err := witnessPayload(tag, value, element)
	if err != nil {
		return nil, err
	}
	priv := ed25519.NewKeyFromSeed(r.seed)
	return cbor.Marshal(&witnessWire{Value: value, Sig: ed25519.Sign(priv, payload)})
}

func witnessPayload(tag string, value []byte, element *big.Int) ([]byte, error) {
	return cbor.Marshal(struct {
		Tag     string `cbor:"1,keyasint"`
		Value   []byte `cbor:"2,keyasint"`
		Element []byte `cbor:"3,keyasint"`
	}{tag, value, composite.FieldBytes(element)})
}

// checkAccumulator enforces a (non-)membership statement against a
// registry-issued witness during proof generation.
func checkAccumulator(req *composite.ProofRequest, st *composite.Statement, wit *composite.Witness) (*checked, []byte, error) {
	var s composite.AccumulatorStatement
	if err := cbor.Unmarshal(st.Body, &s); err != nil {
		return nil, nil, err
	}
	var w composite.AccumulatorWitness
	if err := cbor.Unmarshal(wit.Body, &w); err != nil {
		return nil, nil, err
	}
	if err := paramRef(req, s.ParamsRef, ParamAccumulator); err != nil {
		return nil, nil, err
	}

	var wire witnessWire
	if err := cbor.Unmarshal(w.Witness, &wire); err != nil {
		return nil, nil, errors.WrapPrefix(err, "malformed accumulator witness", 0)
	}
	if !bytes.Equal(wire.Value, s.Accumulated) {
		return nil, nil, errors.New("witness is for a different accumulator value, update it")
	}

	tag := tagMembership
	if st.Kind == composite.KindAccumulatorNonMembership {
		tag = tagNonMembership
	}
	element := composite.FieldFromBytes(w.Element)
	payload, err := witnessPayload(tag, wire.Value, element)
	if err != nil {
		return nil, nil, err
	}
	if len(s.PublicKey) != ed25519.PublicKeySize ||
		!ed25519.Verify(ed25519.PublicKey(s.PublicKey), payload, wire.Sig) {
		return nil, nil, errors.New("accumulator witness does not verify")
	}

	return &checked{resolve: singleValue(element)}, nil, nil
}
