package zkcred

import (
	"math/big"
	"sort"

	"github.com/go-errors/errors"

	"github.com/zkcred/zkcred/cbor"
	"github.com/zkcred/zkcred/composite"
	"github.com/zkcred/zkcred/engine"
	"github.com/zkcred/zkcred/schema"
)

// PresentationParams carries the public key material both sides of a
// presentation need: issuer keys per credential position, accumulator keys
// per registry, and the shared setup parameters that bound checks,
// verifiable encryptions and circuit predicates reference by id.
type PresentationParams struct {
	PublicKeys      [][]byte
	AccumulatorKeys map[string][]byte
	SnarkKeys       map[string][]byte
	EncryptionKeys  map[string][]byte
	R1CS            map[string][]byte
	Wasm            map[string][]byte
}

func (p *PresentationParams) lookup(kind, id string) ([]byte, bool) {
	var table map[string][]byte
	switch kind {
	case composite.ParamKindSnarkKey:
		table = p.SnarkKeys
	case composite.ParamKindEncryptionKey:
		table = p.EncryptionKeys
	case composite.ParamKindAccumulator:
		table = p.AccumulatorKeys
	case composite.ParamKindR1CS:
		table = p.R1CS
	case composite.ParamKindWasm:
		table = p.Wasm
	}
	bts, ok := table[id]
	return bts, ok
}

// credentialSecrets is the prover-side material for one presented
// credential: the signed credential, its full encoded attribute set and, if
// a revocation check is presented, the registry-issued witness.
type credentialSecrets struct {
	cred         *Credential
	enc          *encodedCredential
	accumWitness []byte
}

// proverSecrets is everything the assembler needs beyond the public
// specification to emit witnesses alongside statements. A nil proverSecrets
// assembles the verifier's view: statements only.
type proverSecrets struct {
	creds  []*credentialSecrets
	secret *big.Int // holder secret for pseudonyms
	blind  *blindSecrets
}

type blindSecrets struct {
	blinding []byte
	hidden   map[int]*big.Int
}

// assembledCredential is the per-credential digest the assembler works
// from: flattened schema, revealed elements by attribute index, and the
// signature statement's index.
type assembledCredential struct {
	flat     schema.Flattened
	revealed map[int]*big.Int
	sigIdx   int
}

type assembler struct {
	spec    *PresentationSpecification
	params  *PresentationParams
	secrets *proverSecrets

	statements composite.Statements
	meta       composite.MetaStatements
	tracker    *composite.SetupParamsTracker
	witnesses  composite.Witnesses

	creds []*assembledCredential

	// encAttrs records which (credential, attribute) each
	// verifiable-encryption statement covers, keyed by statement index.
	encAttrs map[int]AttributeRef
}

func (a *assembler) proving() bool {
	return a.secrets != nil
}

// addPair appends a statement and, when proving, its witness at the same
// index.
func (a *assembler) addPair(st composite.Statement, stErr error, mkWit func() (composite.Witness, error)) (int, error) {
	if stErr != nil {
		return 0, stErr
	}
	idx := a.statements.Add(st)
	if a.proving() {
		wit, err := mkWit()
		if err != nil {
			return 0, err
		}
		if widx := a.witnesses.Add(wit); widx != idx {
			return 0, errors.Errorf("witness index %d diverged from statement index %d", widx, idx)
		}
	}
	return idx, nil
}

func (a *assembler) ensureParam(kind, id string) (int, error) {
	key := kind + "\x00" + id
	if a.tracker.IsTracking(key) {
		return a.tracker.IndexOf(key)
	}
	bts, ok := a.params.lookup(kind, id)
	if !ok {
		return 0, errors.Errorf("no %s parameter supplied for id %q", kind, id)
	}
	return a.tracker.AddForParamID(key, composite.SetupParam{Kind: kind, Bytes: bts})
}

// hiddenIndex resolves an attribute name to its index and enforces that it
// is not revealed; predicates and equalities are only meaningful over
// hidden attributes.
func (a *assembler) hiddenIndex(cred int, attribute string) (int, error) {
	if cred < 0 || cred >= len(a.creds) {
		return 0, errors.Errorf("credential index %d out of range", cred)
	}
	ac := a.creds[cred]
	idx, err := ac.flat.IndexOf(attribute)
	if err != nil {
		return 0, err
	}
	if _, ok := ac.revealed[idx]; ok {
		return 0, errors.Errorf("attribute %q is revealed", attribute)
	}
	return idx, nil
}

// hiddenElement is the prover-side value of a hidden attribute.
func (a *assembler) hiddenElement(cred, attrIdx int) *big.Int {
	return a.secrets.creds[cred].enc.elements[attrIdx]
}

// specContext binds the protocol version, the full public specification and
// the caller's context bytes into the proof transcript.
func specContext(spec *PresentationSpecification, callerContext []byte) ([]byte, error) {
	specJSON, err := spec.canonicalJSON()
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(struct {
		Version string `cbor:"1,keyasint"`
		Spec    []byte `cbor:"2,keyasint"`
		Context []byte `cbor:"3,keyasint"`
	}{CryptoVersion, specJSON, callerContext})
}

// assemble derives the composite proof request from the public
// specification, in an order fixed by construction: signature statements
// per credential, then accumulator checks, then cross-credential
// equalities, then per-credential predicates (bounds, encryptions,
// circuits), then pseudonyms, then the blinded request. Prover and verifier
// run this same function, which is what guarantees they agree on every
// statement index and therefore on the proof transcript.
func assemble(spec *PresentationSpecification, params *PresentationParams, callerContext, nonce []byte, secrets *proverSecrets) (*composite.ProofRequest, composite.Witnesses, map[int]AttributeRef, error) {
	if params == nil {
		return nil, nil, nil, errors.New("no presentation params supplied")
	}
	if len(spec.Credentials) == 0 {
		return nil, nil, nil, errors.New("presentation has no credentials")
	}
	if len(params.PublicKeys) != len(spec.Credentials) {
		return nil, nil, nil, errors.Errorf("have %d public keys for %d credentials", len(params.PublicKeys), len(spec.Credentials))
	}
	if secrets != nil && len(secrets.creds) != len(spec.Credentials) {
		return nil, nil, nil, errors.Errorf("have secrets for %d of %d credentials", len(secrets.creds), len(spec.Credentials))
	}

	a := &assembler{
		spec:     spec,
		params:   params,
		secrets:  secrets,
		tracker:  composite.NewSetupParamsTracker(),
		creds:    make([]*assembledCredential, len(spec.Credentials)),
		encAttrs: make(map[int]AttributeRef),
	}

	for i, pc := range spec.Credentials {
		if err := a.signatureStatement(i, pc); err != nil {
			return nil, nil, nil, errors.WrapPrefix(err, errors.Errorf("credential %d", i).Error(), 0)
		}
	}
	for i, pc := range spec.Credentials {
		if err := a.statusStatement(i, pc); err != nil {
			return nil, nil, nil, errors.WrapPrefix(err, errors.Errorf("credential %d status", i).Error(), 0)
		}
	}
	if err := a.attributeEqualities(); err != nil {
		return nil, nil, nil, err
	}
	for i, pc := range spec.Credentials {
		if err := a.predicates(i, pc); err != nil {
			return nil, nil, nil, errors.WrapPrefix(err, errors.Errorf("credential %d", i).Error(), 0)
		}
	}
	if err := a.pseudonyms(); err != nil {
		return nil, nil, nil, err
	}
	if err := a.blindedRequest(); err != nil {
		return nil, nil, nil, err
	}

	ctx, err := specContext(spec, callerContext)
	if err != nil {
		return nil, nil, nil, err
	}
	req := &composite.ProofRequest{
		Statements:     a.statements,
		MetaStatements: a.meta,
		SetupParams:    a.tracker.Params(),
		Context:        ctx,
		Nonce:          nonce,
	}
	return req, a.witnesses, a.encAttrs, nil
}

// signatureStatement emits the possession statement for one credential.
func (a *assembler) signatureStatement(i int, pc *PresentedCredential) error {
	scheme, err := schemeFromProofType(pc.SigType)
	if err != nil {
		return err
	}
	sch, err := schema.ParseSchema([]byte(pc.SchemaJSON))
	if err != nil {
		return err
	}
	flat := sch.Flatten()

	revealed, values, err := encodeRevealed(flat, pc.Revealed)
	if err != nil {
		return err
	}
	if err := checkAlwaysRevealed(pc, values); err != nil {
		return err
	}

	ac := &assembledCredential{flat: flat, revealed: revealed}
	a.creds[i] = ac

	st, stErr := composite.NewPoKSignatureStatement(&composite.PoKSignatureStatement{
		Scheme:       string(scheme),
		PublicKey:    a.params.PublicKeys[i],
		ParamsLabel:  signatureParamsLabel(pc.SchemaJSON),
		MessageCount: len(flat),
		Revealed:     composite.FieldMap(revealed),
	})
	ac.sigIdx, err = a.addPair(st, stErr, func() (composite.Witness, error) {
		cs := a.secrets.creds[i]
		if len(cs.enc.elements) != len(flat) {
			return composite.Witness{}, errors.Errorf("credential has %d attributes, specification schema has %d", len(cs.enc.elements), len(flat))
		}
		unrevealed := make(map[int][]byte, len(flat)-len(revealed))
		for idx := range flat {
			if _, ok := revealed[idx]; !ok {
				unrevealed[idx] = composite.FieldBytes(cs.enc.elements[idx])
			}
		}
		return composite.NewPoKSignatureWitness(&composite.PoKSignatureWitness{
			Signature:  cs.cred.Signature,
			Unrevealed: unrevealed,
		})
	})
	return err
}

// encodeRevealed flattens the revealed document and encodes each leaf
// against the schema, returning elements by attribute index and the raw
// flattened values.
func encodeRevealed(flat schema.Flattened, doc map[string]interface{}) (map[int]*big.Int, map[string]interface{}, error) {
	values, err := flattenDoc(doc)
	if err != nil {
		return nil, nil, err
	}
	revealed := make(map[int]*big.Int, len(values))
	for _, name := range sortedKeys(values) {
		idx, err := flat.IndexOf(name)
		if err != nil {
			return nil, nil, errors.Errorf("revealed attribute %q not in schema", name)
		}
		enc, err := flat[idx].Node.Encoder()
		if err != nil {
			return nil, nil, err
		}
		if revealed[idx], err = enc(values[name]); err != nil {
			return nil, nil, errors.WrapPrefix(err, errors.Errorf("revealed attribute %q", name).Error(), 0)
		}
	}
	return revealed, values, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// checkAlwaysRevealed enforces the protocol's mandatory disclosures: the
// crypto version and schema are always revealed and must match the
// specification's own fields, and a presented status reveals the registry
// id and check kind but never the revocation index.
func checkAlwaysRevealed(pc *PresentedCredential, values map[string]interface{}) error {
	if v, ok := values[AttrVersion].(string); !ok || v != pc.Version {
		return errors.New("cryptoVersion must be revealed and match the specification")
	}
	if v, ok := values[AttrSchema].(string); !ok || v != pc.SchemaJSON {
		return errors.New("credentialSchema must be revealed and match the specification")
	}
	if pc.Status == nil {
		return nil
	}
	if v, ok := values[AttrRegistryID].(string); !ok || v != pc.Status.RegistryID {
		return errors.New("status registryId must be revealed and match the specification")
	}
	if v, ok := values[AttrRevocationCheck].(string); !ok || v != pc.Status.RevocationCheck {
		return errors.New("status revocationCheck must be revealed and match the specification")
	}
	if _, ok := values[AttrRevocationIndex]; ok {
		return errors.New("status revocationIndex must stay hidden")
	}
	return nil
}

// statusStatement emits the accumulator check for a credential with a
// presented status and ties the hidden revocation index into it.
func (a *assembler) statusStatement(i int, pc *PresentedCredential) error {
	if pc.Status == nil {
		return nil
	}
	var kind composite.StatementKind
	switch pc.Status.RevocationCheck {
	case RevocationCheckMembership:
		kind = composite.KindAccumulatorMembership
	case RevocationCheckNonMembership:
		kind = composite.KindAccumulatorNonMembership
	default:
		return errors.Errorf("unrecognized revocation check %q", pc.Status.RevocationCheck)
	}

	ac := a.creds[i]
	attrIdx, err := a.hiddenIndex(i, AttrRevocationIndex)
	if err != nil {
		return err
	}
	accumulated, err := decodeBase58Field("accumulated", pc.Status.Accumulated)
	if err != nil {
		return err
	}
	ref, err := a.ensureParam(composite.ParamKindAccumulator, pc.Status.RegistryID)
	if err != nil {
		return err
	}
	publicKey, _ := a.params.lookup(composite.ParamKindAccumulator, pc.Status.RegistryID)

	st, stErr := composite.NewAccumulatorStatement(kind, &composite.AccumulatorStatement{
		Accumulated: accumulated,
		PublicKey:   publicKey,
		ParamsRef:   ref,
	})
	accIdx, err := a.addPair(st, stErr, func() (composite.Witness, error) {
		cs := a.secrets.creds[i]
		if cs.accumWitness == nil {
			return composite.Witness{}, errors.New("no accumulator witness supplied")
		}
		return composite.NewAccumulatorWitness(kind, &composite.AccumulatorWitness{
			Element: composite.FieldBytes(a.hiddenElement(i, attrIdx)),
			Witness: cs.accumWitness,
		})
	})
	if err != nil {
		return err
	}
	a.meta.Add(composite.NewWitnessEquality(
		composite.WitnessRef{Statement: ac.sigIdx, Witness: attrIdx},
		composite.WitnessRef{Statement: accIdx, Witness: 0},
	))
	return nil
}

// attributeEqualities emits one equality set per declared cross-credential
// equality, in declaration order.
func (a *assembler) attributeEqualities() error {
	for n, set := range a.spec.AttributeEqualities {
		if len(set) < 2 {
			return errors.Errorf("equality %d needs at least two attribute refs", n)
		}
		refs := make([]composite.WitnessRef, len(set))
		for j, ar := range set {
			attrIdx, err := a.hiddenIndex(ar.Credential, ar.Attribute)
			if err != nil {
				return errors.WrapPrefix(err, errors.Errorf("equality %d", n).Error(), 0)
			}
			refs[j] = composite.WitnessRef{Statement: a.creds[ar.Credential].sigIdx, Witness: attrIdx}
		}
		a.meta.Add(composite.NewWitnessEquality(refs...))
	}
	return nil
}

// predicates emits one credential's bound checks, verifiable encryptions
// and circuit predicates. Map-keyed predicates are ordered by attribute
// index so both sides enumerate them identically.
func (a *assembler) predicates(i int, pc *PresentedCredential) error {
	ac := a.creds[i]

	for _, name := range orderedAttrs(ac, pc.Bounds) {
		if err := a.boundCheck(i, name, pc.Bounds[name]); err != nil {
			return errors.WrapPrefix(err, errors.Errorf("bound on %q", name).Error(), 0)
		}
	}
	for _, name := range orderedAttrs(ac, pc.Encryptions) {
		if err := a.verifiableEncryption(i, name, pc.Encryptions[name]); err != nil {
			return errors.WrapPrefix(err, errors.Errorf("encryption of %q", name).Error(), 0)
		}
	}
	for n, cp := range pc.Circuits {
		if err := a.circuitPredicate(i, cp); err != nil {
			return errors.WrapPrefix(err, errors.Errorf("circuit predicate %d", n).Error(), 0)
		}
	}
	return nil
}

// orderedAttrs returns the map's attribute names sorted by their flattened
// schema index. Unknown names sort last and fail later with a proper error.
func orderedAttrs[V any](ac *assembledCredential, m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, aerr := ac.flat.IndexOf(names[i])
		b, berr := ac.flat.IndexOf(names[j])
		if (aerr != nil) != (berr != nil) {
			return berr != nil
		}
		if aerr != nil {
			return names[i] < names[j]
		}
		return a < b
	})
	return names
}

func (a *assembler) boundCheck(i int, name string, bc *BoundCheck) error {
	attrIdx, err := a.hiddenIndex(i, name)
	if err != nil {
		return err
	}
	ac := a.creds[i]
	tmin, tmax, err := ac.flat[attrIdx].Node.TransformBound(bc.Min, bc.Max)
	if err != nil {
		return err
	}
	ref, err := a.ensureParam(composite.ParamKindSnarkKey, bc.ParamID)
	if err != nil {
		return err
	}
	st, stErr := composite.NewBoundCheckStatement(&composite.BoundCheckStatement{
		Min:       composite.FieldBytes(tmin),
		Max:       composite.FieldBytes(tmax),
		ParamsRef: ref,
	})
	idx, err := a.addPair(st, stErr, func() (composite.Witness, error) {
		return composite.NewBoundCheckWitness(&composite.BoundCheckWitness{
			Value: composite.FieldBytes(a.hiddenElement(i, attrIdx)),
		})
	})
	if err != nil {
		return err
	}
	a.meta.Add(composite.NewWitnessEquality(
		composite.WitnessRef{Statement: ac.sigIdx, Witness: attrIdx},
		composite.WitnessRef{Statement: idx, Witness: 0},
	))
	return nil
}

func (a *assembler) verifiableEncryption(i int, name string, ve *VerifiableEncryption) error {
	if ve.ChunkBitSize != 8 && ve.ChunkBitSize != 16 {
		return errors.Errorf("unsupported chunk bit size %d", ve.ChunkBitSize)
	}
	attrIdx, err := a.hiddenIndex(i, name)
	if err != nil {
		return err
	}
	ac := a.creds[i]
	if !ac.flat[attrIdx].Node.Reversible() {
		return errors.Errorf("attribute %q uses a one-way encoding, verifiable encryption needs %s", name, schema.TypeReversibleString)
	}
	ref, err := a.ensureParam(composite.ParamKindEncryptionKey, ve.EncryptionKeyID)
	if err != nil {
		return err
	}
	st, stErr := composite.NewVerifiableEncryptionStatement(&composite.VerifiableEncryptionStatement{
		ChunkBitSize: ve.ChunkBitSize,
		ParamsRef:    ref,
	})
	idx, err := a.addPair(st, stErr, func() (composite.Witness, error) {
		return composite.NewEncryptionWitness(&composite.EncryptionWitness{
			Message: composite.FieldBytes(a.hiddenElement(i, attrIdx)),
		})
	})
	if err != nil {
		return err
	}
	a.encAttrs[idx] = AttributeRef{Credential: i, Attribute: name}
	a.meta.Add(composite.NewWitnessEquality(
		composite.WitnessRef{Statement: ac.sigIdx, Witness: attrIdx},
		composite.WitnessRef{Statement: idx, Witness: 0},
	))
	return nil
}

func (a *assembler) circuitPredicate(i int, cp *CircuitPredicate) error {
	ac := a.creds[i]
	attrIdxs := make([]int, len(cp.PrivateVars))
	for p, pv := range cp.PrivateVars {
		idx, err := a.hiddenIndex(i, pv.Attribute)
		if err != nil {
			return err
		}
		attrIdxs[p] = idx
	}
	public := make(map[string][]byte, len(cp.PublicVars))
	for _, pub := range cp.PublicVars {
		v, ok := new(big.Int).SetString(pub.Value, 10)
		if !ok {
			return errors.Errorf("public input %q is not a decimal integer", pub.VarName)
		}
		public[pub.VarName] = composite.FieldBytes(v)
	}
	r1csRef, err := a.ensureParam(composite.ParamKindR1CS, cp.R1CSID)
	if err != nil {
		return err
	}
	wasmRef, err := a.ensureParam(composite.ParamKindWasm, cp.WasmID)
	if err != nil {
		return err
	}
	st, stErr := composite.NewR1CSCircuitStatement(&composite.R1CSCircuitStatement{
		CircuitID:    cp.CircuitID,
		R1CSRef:      r1csRef,
		WasmRef:      wasmRef,
		PrivateCount: len(cp.PrivateVars),
		PublicInputs: public,
	})
	idx, err := a.addPair(st, stErr, func() (composite.Witness, error) {
		private := make([][]byte, len(attrIdxs))
		for p, attrIdx := range attrIdxs {
			private[p] = composite.FieldBytes(a.hiddenElement(i, attrIdx))
		}
		return composite.NewCircuitWitness(&composite.CircuitWitness{Private: private})
	})
	if err != nil {
		return err
	}
	for p, attrIdx := range attrIdxs {
		a.meta.Add(composite.NewWitnessEquality(
			composite.WitnessRef{Statement: ac.sigIdx, Witness: attrIdx},
			composite.WitnessRef{Statement: idx, Witness: p},
		))
	}
	return nil
}

// pseudonyms emits bounded pseudonyms in declaration order, then unbounded
// ones.
func (a *assembler) pseudonyms() error {
	for n, ps := range a.spec.BoundedPseudonyms {
		if err := a.boundedPseudonym(ps); err != nil {
			return errors.WrapPrefix(err, errors.Errorf("bounded pseudonym %d", n).Error(), 0)
		}
	}
	for n, ps := range a.spec.UnboundedPseudonyms {
		if err := a.unboundedPseudonym(ps); err != nil {
			return errors.WrapPrefix(err, errors.Errorf("unbounded pseudonym %d", n).Error(), 0)
		}
	}
	return nil
}

func (a *assembler) boundedPseudonym(ps *BoundedPseudonym) error {
	if len(ps.Attributes) == 0 {
		return errors.New("bounded pseudonym commits to no attributes")
	}
	key, err := decodeBase58Field("key", ps.Key)
	if err != nil {
		return err
	}
	commitment, err := decodeBase58Field("commitment", ps.Commitment)
	if err != nil {
		return err
	}
	attrIdxs := make([]int, len(ps.Attributes))
	for p, ar := range ps.Attributes {
		if attrIdxs[p], err = a.hiddenIndex(ar.Credential, ar.Attribute); err != nil {
			return err
		}
	}
	openings := len(ps.Attributes)
	if ps.IncludesSecretKey {
		openings++
	}
	st, stErr := composite.NewPedersenCommitmentStatement(&composite.PedersenCommitmentStatement{
		Key:        key,
		Commitment: commitment,
		Openings:   openings,
	})
	idx, err := a.addPair(st, stErr, func() (composite.Witness, error) {
		exponents := make([][]byte, 0, openings)
		for p, ar := range ps.Attributes {
			exponents = append(exponents, composite.FieldBytes(a.hiddenElement(ar.Credential, attrIdxs[p])))
		}
		if ps.IncludesSecretKey {
			if a.secrets.secret == nil {
				return composite.Witness{}, errors.New("pseudonym includes the holder secret but none was supplied")
			}
			exponents = append(exponents, composite.FieldBytes(a.secrets.secret))
		}
		return composite.NewPedersenWitness(&composite.PedersenWitness{Exponents: exponents})
	})
	if err != nil {
		return err
	}
	for p, ar := range ps.Attributes {
		a.meta.Add(composite.NewWitnessEquality(
			composite.WitnessRef{Statement: a.creds[ar.Credential].sigIdx, Witness: attrIdxs[p]},
			composite.WitnessRef{Statement: idx, Witness: p},
		))
	}
	return nil
}

func (a *assembler) unboundedPseudonym(ps *UnboundedPseudonym) error {
	key, err := decodeBase58Field("key", ps.Key)
	if err != nil {
		return err
	}
	commitment, err := decodeBase58Field("commitment", ps.Commitment)
	if err != nil {
		return err
	}
	st, stErr := composite.NewPedersenCommitmentStatement(&composite.PedersenCommitmentStatement{
		Key:        key,
		Commitment: commitment,
		Openings:   1,
	})
	_, err = a.addPair(st, stErr, func() (composite.Witness, error) {
		if a.secrets.secret == nil {
			return composite.Witness{}, errors.New("pseudonym requires the holder secret but none was supplied")
		}
		return composite.NewPedersenWitness(&composite.PedersenWitness{
			Exponents: [][]byte{composite.FieldBytes(a.secrets.secret)},
		})
	})
	return err
}

// blindedRequest emits the commitment statement for an attached blinded
// credential request. The request's hidden attributes belong to a
// credential that does not exist yet, so no equality links them to the
// presented credentials.
func (a *assembler) blindedRequest() error {
	br := a.spec.BlindedRequest
	if br == nil {
		return nil
	}
	if _, err := schemeFromProofType(br.SigType); err != nil {
		return err
	}
	sch, err := schema.ParseSchema([]byte(br.SchemaJSON))
	if err != nil {
		return err
	}
	flat := sch.Flatten()
	for _, name := range br.BlindedNames {
		if _, err := flat.IndexOf(name); err != nil {
			return err
		}
	}
	commitment, err := decodeBase58Field("commitment", br.Commitment)
	if err != nil {
		return err
	}
	st, stErr := composite.NewPedersenCommitmentStatement(&composite.PedersenCommitmentStatement{
		Key:        engine.BlindCommitmentKey,
		Commitment: commitment,
		Openings:   len(br.BlindedNames) + 1,
	})
	_, err = a.addPair(st, stErr, func() (composite.Witness, error) {
		if a.secrets.blind == nil {
			return composite.Witness{}, errors.New("no blinded request secrets supplied")
		}
		if len(a.secrets.blind.hidden) != len(br.BlindedNames) {
			return composite.Witness{}, errors.Errorf("blinded request hides %d attributes, specification names %d", len(a.secrets.blind.hidden), len(br.BlindedNames))
		}
		openings := engine.CommitmentOpenings(a.secrets.blind.blinding, a.secrets.blind.hidden)
		exponents := make([][]byte, len(openings))
		for p, v := range openings {
			exponents[p] = composite.FieldBytes(v)
		}
		return composite.NewPedersenWitness(&composite.PedersenWitness{Exponents: exponents})
	})
	return err
}
