package zkcred

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/go-errors/errors"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/zkcred/zkcred/engine"
	"github.com/zkcred/zkcred/schema"
)

// builderCredential accumulates one credential's disclosure and predicate
// declarations before Build turns them into the public specification.
type builderCredential struct {
	cred     *Credential
	revealed map[string]bool

	accumulated  []byte
	accumWitness []byte

	bounds      map[string]*BoundCheck
	encryptions map[string]*VerifiableEncryption
	circuits    []*CircuitPredicate
}

// PresentationBuilder assembles a presentation from credentials, disclosure
// choices and predicates. Declarations are collected in any order; Build
// freezes them into a specification, assembles the statement collections
// and asks the engine for the proof.
type PresentationBuilder struct {
	eng   engine.Engine
	creds []*builderCredential

	equalities [][]AttributeRef
	bounded    []*BoundedPseudonym
	unbounded  []*UnboundedPseudonym
	secret     *big.Int
	blind      *BlindedCredentialRequest

	context []byte
	nonce   []byte
}

// NewPresentationBuilder returns an empty builder using the process-wide
// engine.
func NewPresentationBuilder() *PresentationBuilder {
	return &PresentationBuilder{}
}

// WithEngine overrides the engine, for tests running several engines side
// by side.
func (b *PresentationBuilder) WithEngine(e engine.Engine) *PresentationBuilder {
	b.eng = e
	return b
}

func (b *PresentationBuilder) engine() (engine.Engine, error) {
	if b.eng != nil {
		return b.eng, nil
	}
	return engine.Current()
}

// AddCredential adds a credential to the presentation and returns its
// index, the handle every later declaration refers to.
func (b *PresentationBuilder) AddCredential(c *Credential) (int, error) {
	if c == nil || c.Schema == nil || len(c.Signature) == 0 {
		return 0, errors.New("credential is incomplete")
	}
	b.creds = append(b.creds, &builderCredential{
		cred:        c,
		revealed:    make(map[string]bool),
		bounds:      make(map[string]*BoundCheck),
		encryptions: make(map[string]*VerifiableEncryption),
	})
	return len(b.creds) - 1, nil
}

func (b *PresentationBuilder) credential(idx int) (*builderCredential, error) {
	if idx < 0 || idx >= len(b.creds) {
		return nil, errors.Errorf("credential index %d out of range", idx)
	}
	return b.creds[idx], nil
}

// MarkRevealed reveals attributes by flattened name. A name matching no
// leaf is treated as a subtree prefix and reveals every leaf beneath it.
func (b *PresentationBuilder) MarkRevealed(credential int, names ...string) error {
	bc, err := b.credential(credential)
	if err != nil {
		return err
	}
	flat := bc.cred.Schema.Flatten()
	for _, name := range names {
		if name == AttrRevocationIndex {
			return errors.New("status revocationIndex must stay hidden")
		}
		if _, err := flat.IndexOf(name); err == nil {
			bc.revealed[name] = true
			continue
		}
		matched := false
		for _, attr := range flat {
			if len(attr.Name) > len(name) && attr.Name[:len(name)+1] == name+"." {
				if attr.Name == AttrRevocationIndex {
					continue
				}
				bc.revealed[attr.Name] = true
				matched = true
			}
		}
		if !matched {
			return errors.Errorf("attribute %q not found in schema", name)
		}
	}
	return nil
}

// AddAccumulatorWitness supplies the registry-issued revocation witness and
// the accumulator value it was issued against. Required for every
// credential carrying a status.
func (b *PresentationBuilder) AddAccumulatorWitness(credential int, accumulated, witness []byte) error {
	bc, err := b.credential(credential)
	if err != nil {
		return err
	}
	if bc.cred.Status == nil {
		return errors.New("credential has no status to prove")
	}
	bc.accumulated = accumulated
	bc.accumWitness = witness
	return nil
}

// EnforceEquality declares that the referenced hidden attributes hold the
// same value across credentials.
func (b *PresentationBuilder) EnforceEquality(refs ...AttributeRef) error {
	if len(refs) < 2 {
		return errors.New("equality needs at least two attribute refs")
	}
	for _, ar := range refs {
		if _, err := b.credential(ar.Credential); err != nil {
			return err
		}
	}
	b.equalities = append(b.equalities, refs)
	return nil
}

// AddBound declares min <= attribute < max over the attribute's original
// value domain. One bound per attribute per credential.
func (b *PresentationBuilder) AddBound(credential int, attribute, paramID string, min, max interface{}) error {
	bc, err := b.credential(credential)
	if err != nil {
		return err
	}
	if _, ok := bc.bounds[attribute]; ok {
		return errors.Errorf("attribute %q already has a bound", attribute)
	}
	lo, err := numberValue(min)
	if err != nil {
		return errors.WrapPrefix(err, "bad lower bound", 0)
	}
	hi, err := numberValue(max)
	if err != nil {
		return errors.WrapPrefix(err, "bad upper bound", 0)
	}
	rlo, ok := new(big.Rat).SetString(lo.String())
	if !ok {
		return errors.Errorf("bad lower bound %q", lo)
	}
	rhi, ok := new(big.Rat).SetString(hi.String())
	if !ok {
		return errors.Errorf("bad upper bound %q", hi)
	}
	if rlo.Cmp(rhi) >= 0 {
		return errors.Errorf("bound [%s, %s) is empty", lo, hi)
	}
	bc.bounds[attribute] = &BoundCheck{Min: lo, Max: hi, ParamID: paramID}
	return nil
}

// AddVerifiableEncryption declares that the attribute's encoded value is
// encrypted for the holder of the key registered under keyID. One
// encryption per attribute per credential.
func (b *PresentationBuilder) AddVerifiableEncryption(credential int, attribute, keyID string, chunkBitSize int) error {
	bc, err := b.credential(credential)
	if err != nil {
		return err
	}
	if chunkBitSize != 8 && chunkBitSize != 16 {
		return errors.Errorf("unsupported chunk bit size %d", chunkBitSize)
	}
	flat := bc.cred.Schema.Flatten()
	idx, err := flat.IndexOf(attribute)
	if err != nil {
		return err
	}
	if !flat[idx].Node.Reversible() {
		return errors.Errorf("attribute %q uses a one-way encoding, verifiable encryption needs %s", attribute, schema.TypeReversibleString)
	}
	if _, ok := bc.encryptions[attribute]; ok {
		return errors.Errorf("attribute %q is already verifiably encrypted", attribute)
	}
	bc.encryptions[attribute] = &VerifiableEncryption{ChunkBitSize: chunkBitSize, EncryptionKeyID: keyID}
	return nil
}

// AddCircuitPredicate declares satisfaction of a compiled circuit over the
// credential's hidden attributes. Predicates keep declaration order.
func (b *PresentationBuilder) AddCircuitPredicate(credential int, cp *CircuitPredicate) error {
	bc, err := b.credential(credential)
	if err != nil {
		return err
	}
	if cp.CircuitID == "" || len(cp.PrivateVars) == 0 {
		return errors.New("circuit predicate needs an id and private variables")
	}
	bc.circuits = append(bc.circuits, cp)
	return nil
}

// SetHolderSecret supplies the holder secret pseudonyms commit to.
func (b *PresentationBuilder) SetHolderSecret(secret []byte) {
	b.secret = new(big.Int).SetBytes(secret)
}

// AddBoundedPseudonym declares a pseudonym committed to the given hidden
// attributes under a verifier-chosen base key, optionally also to the
// holder secret. The commitment itself is computed at Build.
func (b *PresentationBuilder) AddBoundedPseudonym(baseKey []byte, attributes []AttributeRef, includeSecretKey bool) error {
	if len(attributes) == 0 {
		return errors.New("bounded pseudonym commits to no attributes")
	}
	for _, ar := range attributes {
		if _, err := b.credential(ar.Credential); err != nil {
			return err
		}
	}
	b.bounded = append(b.bounded, &BoundedPseudonym{
		Key:               base58.Encode(baseKey),
		Attributes:        attributes,
		IncludesSecretKey: includeSecretKey,
	})
	return nil
}

// AddUnboundedPseudonym declares a pseudonym committed to the holder secret
// only.
func (b *PresentationBuilder) AddUnboundedPseudonym(baseKey []byte) {
	b.unbounded = append(b.unbounded, &UnboundedPseudonym{Key: base58.Encode(baseKey)})
}

// AttachBlindedRequest carries a blinded credential request inside the
// presentation, binding its commitment under the proof context.
func (b *PresentationBuilder) AttachBlindedRequest(req *BlindedCredentialRequest) error {
	if b.blind != nil {
		return errors.New("a blinded request is already attached")
	}
	b.blind = req
	return nil
}

// SetContext binds caller context bytes (a challenge, a domain string) into
// the proof.
func (b *PresentationBuilder) SetContext(context []byte) {
	b.context = context
}

// SetNonce binds a verifier nonce into the proof.
func (b *PresentationBuilder) SetNonce(nonce []byte) {
	b.nonce = nonce
}

// Build freezes the declarations into a public specification, assembles
// statements and witnesses and generates the proof.
func (b *PresentationBuilder) Build(params *PresentationParams) (*Presentation, error) {
	eng, err := b.engine()
	if err != nil {
		return nil, err
	}
	if len(b.creds) == 0 {
		return nil, errors.New("presentation has no credentials")
	}

	spec := &PresentationSpecification{
		Credentials:         make([]*PresentedCredential, len(b.creds)),
		AttributeEqualities: b.equalities,
	}
	secrets := &proverSecrets{
		creds:  make([]*credentialSecrets, len(b.creds)),
		secret: b.secret,
	}

	for i, bc := range b.creds {
		enc, err := bc.cred.encode()
		if err != nil {
			return nil, errors.WrapPrefix(err, errors.Errorf("credential %d", i).Error(), 0)
		}
		secrets.creds[i] = &credentialSecrets{cred: bc.cred, enc: enc, accumWitness: bc.accumWitness}
		if spec.Credentials[i], err = presentedCredential(bc, enc); err != nil {
			return nil, errors.WrapPrefix(err, errors.Errorf("credential %d", i).Error(), 0)
		}
	}

	if err := b.buildPseudonyms(eng, spec, secrets); err != nil {
		return nil, err
	}
	if b.blind != nil {
		spec.BlindedRequest = b.blind.specBlock()
		secrets.blind = b.blind.secrets()
	}

	req, witnesses, encAttrs, err := assemble(spec, params, b.context, b.nonce, secrets)
	if err != nil {
		return nil, err
	}
	Logger.Debugf("zkcred: proving %d statements over %d credentials", len(req.Statements), len(b.creds))
	out, err := eng.GenerateProof(req, witnesses)
	if err != nil {
		return nil, err
	}

	p := &Presentation{
		Version: CryptoVersion,
		Spec:    spec,
		Proof:   out.Proof,
		Context: b.context,
		Nonce:   b.nonce,
	}
	if len(out.Ciphertexts) > 0 {
		p.Ciphertexts = make(map[string][]byte, len(out.Ciphertexts))
		for stIdx, ct := range out.Ciphertexts {
			ar, ok := encAttrs[stIdx]
			if !ok {
				return nil, errors.Errorf("engine produced a ciphertext for statement %d which is not an encryption", stIdx)
			}
			p.Ciphertexts[CiphertextKey(ar.Credential, ar.Attribute)] = ct
		}
	}
	return p, nil
}

// presentedCredential derives one credential's public block: the revealed
// document (mandatory disclosures plus the holder's choices) and the
// declared predicates.
func presentedCredential(bc *builderCredential, enc *encodedCredential) (*PresentedCredential, error) {
	c := bc.cred
	names := map[string]bool{AttrVersion: true, AttrSchema: true}
	if c.Status != nil {
		names[AttrRegistryID] = true
		names[AttrRevocationCheck] = true
	}
	for name := range bc.revealed {
		names[name] = true
	}

	flatValues := make(map[string]interface{}, len(names))
	for name := range names {
		value, ok := enc.values[name]
		if !ok {
			return nil, errors.Errorf("attribute %q not found in schema", name)
		}
		flatValues[name] = value
	}

	pc := &PresentedCredential{
		Version:    c.Version,
		SchemaJSON: c.SchemaJSON,
		SigType:    proofTypes[c.Scheme],
		Revealed:   nestDoc(flatValues),
	}
	if len(bc.bounds) > 0 {
		pc.Bounds = bc.bounds
	}
	if len(bc.encryptions) > 0 {
		pc.Encryptions = bc.encryptions
	}
	pc.Circuits = bc.circuits

	if c.Status != nil {
		if bc.accumWitness == nil {
			return nil, errors.New("credential has a status but no accumulator witness was supplied")
		}
		pc.Status = &PresentedStatus{
			RegistryID:      c.Status.RegistryID,
			RevocationCheck: c.Status.RevocationCheck,
			Accumulated:     base58.Encode(bc.accumulated),
		}
	}
	return pc, nil
}

// buildPseudonyms computes the commitment of every declared pseudonym and
// fills in the specification blocks.
func (b *PresentationBuilder) buildPseudonyms(eng engine.Engine, spec *PresentationSpecification, secrets *proverSecrets) error {
	if (len(b.unbounded) > 0 || anyIncludesSecret(b.bounded)) && b.secret == nil {
		return errors.New("pseudonyms require a holder secret")
	}
	for _, ps := range b.bounded {
		key, err := decodeBase58Field("key", ps.Key)
		if err != nil {
			return err
		}
		exponents := make([]*big.Int, 0, len(ps.Attributes)+1)
		for _, ar := range ps.Attributes {
			_, el, err := secrets.creds[ar.Credential].enc.element(ar.Attribute)
			if err != nil {
				return err
			}
			exponents = append(exponents, el)
		}
		if ps.IncludesSecretKey {
			exponents = append(exponents, b.secret)
		}
		commitment, err := eng.PedersenCommit(key, exponents)
		if err != nil {
			return err
		}
		ps.Commitment = base58.Encode(commitment)
		spec.BoundedPseudonyms = append(spec.BoundedPseudonyms, ps)
	}
	for _, ps := range b.unbounded {
		key, err := decodeBase58Field("key", ps.Key)
		if err != nil {
			return err
		}
		commitment, err := eng.PedersenCommit(key, []*big.Int{b.secret})
		if err != nil {
			return err
		}
		ps.Commitment = base58.Encode(commitment)
		spec.UnboundedPseudonyms = append(spec.UnboundedPseudonyms, ps)
	}
	return nil
}

func anyIncludesSecret(bounded []*BoundedPseudonym) bool {
	for _, ps := range bounded {
		if ps.IncludesSecretKey {
			return true
		}
	}
	return false
}

// numberValue normalizes a caller-supplied bound to its decimal string
// form. Floats convert through their shortest exact representation.
func numberValue(v interface{}) (json.Number, error) {
	switch n := v.(type) {
	case json.Number:
		return n, nil
	case string:
		return json.Number(n), nil
	case int:
		return json.Number(strconv.FormatInt(int64(n), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(n, 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(n, 10)), nil
	case float64:
		return json.Number(strconv.FormatFloat(n, 'f', -1, 64)), nil
	case *big.Int:
		return json.Number(n.String()), nil
	default:
		return "", errors.Errorf("unsupported bound type %T", v)
	}
}

// NewPseudonymBaseKey derives a deterministic pseudonym base key from a
// verifier identifier, so holder and verifier agree on the base without
// exchanging key material.
func NewPseudonymBaseKey(scope string) []byte {
	sum := blake2b.Sum256([]byte("zkcred/pseudonym-base/" + scope))
	return sum[:]
}
