package plain

import (
	"bytes"
	"math/big"

	"github.com/go-errors/errors"

	"github.com/zkcred/zkcred/cbor"
	"github.com/zkcred/zkcred/composite"
	"github.com/zkcred/zkcred/engine"
	"github.com/zkcred/zkcred/internal/common"
)

// proofWire is the serialized proof. Binding is a multihash over the
// canonical request bytes plus the embedded ciphertexts, so the proof stands
// or falls with every statement, meta-statement, setup parameter, context
// byte and nonce byte the verifier reassembles.
type proofWire struct {
	Version     int            `cbor:"1,keyasint"`
	Binding     []byte         `cbor:"2,keyasint"`
	Ciphertexts map[int][]byte `cbor:"3,keyasint,omitempty"`
}

const proofVersion = 1

// checked is one decoded statement/witness pair with a resolver from witness
// position to field element, used for the equality checks.
type checked struct {
	resolve func(pos int) (*big.Int, error)
}

func (e plainEngine) GenerateProof(req *composite.ProofRequest, witnesses composite.Witnesses) (*engine.ProofOutput, error) {
	if len(witnesses) != len(req.Statements) {
		return nil, errors.Errorf("%d statements but %d witnesses", len(req.Statements), len(witnesses))
	}

	pairs := make([]*checked, len(req.Statements))
	ciphertexts := make(map[int][]byte)
	for i := range req.Statements {
		st, wit := req.Statements[i], witnesses[i]
		if st.Kind != wit.Kind {
			return nil, errors.Errorf("statement %d is %s but witness is %s", i, st.Kind, wit.Kind)
		}
		pair, ct, err := e.checkPair(req, &st, &wit)
		if err != nil {
			return nil, errors.WrapPrefix(err, errors.Errorf("statement %d (%s)", i, st.Kind).Error(), 0)
		}
		pairs[i] = pair
		if ct != nil {
			ciphertexts[i] = ct
		}
	}

	for i, ms := range req.MetaStatements {
		if err := checkEquality(pairs, ms); err != nil {
			return nil, errors.WrapPrefix(err, errors.Errorf("meta-statement %d", i).Error(), 0)
		}
	}

	proof, err := sealProof(req, ciphertexts)
	if err != nil {
		return nil, err
	}
	out := &engine.ProofOutput{Proof: proof}
	if len(ciphertexts) > 0 {
		out.Ciphertexts = ciphertexts
	}
	return out, nil
}

func (e plainEngine) VerifyProof(proof []byte, req *composite.ProofRequest) error {
	var wire proofWire
	if err := cbor.Unmarshal(proof, &wire); err != nil {
		return errors.WrapPrefix(err, "malformed proof", 0)
	}
	if wire.Version != proofVersion {
		return errors.Errorf("unsupported proof version %d", wire.Version)
	}

	// Replay the structural decoding the prover performed; a request whose
	// statements do not even decode can never have produced this proof.
	for i := range req.Statements {
		if err := decodeStatementOnly(req, &req.Statements[i]); err != nil {
			return errors.WrapPrefix(err, errors.Errorf("statement %d", i).Error(), 0)
		}
	}

	expected, err := binding(req, wire.Ciphertexts)
	if err != nil {
		return err
	}
	if !bytes.Equal(expected, wire.Binding) {
		return errors.WrapPrefix(engine.ErrProofInvalid, "binding mismatch", 0)
	}
	return nil
}

func sealProof(req *composite.ProofRequest, ciphertexts map[int][]byte) ([]byte, error) {
	bind, err := binding(req, ciphertexts)
	if err != nil {
		return nil, err
	}
	wire := &proofWire{Version: proofVersion, Binding: bind}
	if len(ciphertexts) > 0 {
		wire.Ciphertexts = ciphertexts
	}
	return cbor.Marshal(wire)
}

func binding(req *composite.ProofRequest, ciphertexts map[int][]byte) ([]byte, error) {
	canonical, err := req.Canonical()
	if err != nil {
		return nil, err
	}
	// An empty map and an absent one must bind identically; the wire format
	// omits the map when there are no ciphertexts.
	if len(ciphertexts) == 0 {
		ciphertexts = nil
	}
	ctBytes, err := cbor.Marshal(ciphertexts)
	if err != nil {
		return nil, err
	}
	return common.Multihash(append(canonical, ctBytes...)), nil
}

// checkPair decodes one statement/witness pair, enforces the relation it
// describes, and returns the witness resolver plus a ciphertext for
// encryption statements.
func (e plainEngine) checkPair(req *composite.ProofRequest, st *composite.Statement, wit *composite.Witness) (*checked, []byte, error) {
	switch st.Kind {
	case composite.KindPoKSignature:
		return e.checkPoKSignature(st, wit)
	case composite.KindAccumulatorMembership, composite.KindAccumulatorNonMembership:
		return checkAccumulator(req, st, wit)
	case composite.KindBoundCheck:
		return checkBound(req, st, wit)
	case composite.KindVerifiableEncryption:
		return checkEncryption(req, st, wit)
	case composite.KindR1CSCircuit:
		return checkCircuit(req, st, wit)
	case composite.KindPedersenCommitment:
		return e.checkPedersen(st, wit)
	default:
		return nil, nil, errors.Errorf("unknown statement kind %q", st.Kind)
	}
}

func (e plainEngine) checkPoKSignature(st *composite.Statement, wit *composite.Witness) (*checked, []byte, error) {
	var s composite.PoKSignatureStatement
	if err := cbor.Unmarshal(st.Body, &s); err != nil {
		return nil, nil, err
	}
	var w composite.PoKSignatureWitness
	if err := cbor.Unmarshal(wit.Body, &w); err != nil {
		return nil, nil, err
	}

	messages := make([]*big.Int, s.MessageCount)
	for i := 0; i < s.MessageCount; i++ {
		rev, isRevealed := s.Revealed[i]
		hid, isHidden := w.Unrevealed[i]
		switch {
		case isRevealed == isHidden:
			return nil, nil, errors.Errorf("message %d must be exactly one of revealed or unrevealed", i)
		case isRevealed:
			messages[i] = composite.FieldFromBytes(rev)
		default:
			messages[i] = composite.FieldFromBytes(hid)
		}
	}

	params := engine.SignatureParams{Label: s.ParamsLabel, MessageCount: s.MessageCount}
	if err := e.Verify(s.Scheme, s.PublicKey, params, messages, w.Signature); err != nil {
		return nil, nil, errors.WrapPrefix(err, "signature possession", 0)
	}

	return &checked{resolve: func(pos int) (*big.Int, error) {
		if pos < 0 || pos >= len(messages) {
			return nil, errors.Errorf("message index %d out of range", pos)
		}
		return messages[pos], nil
	}}, nil, nil
}

func checkBound(req *composite.ProofRequest, st *composite.Statement, wit *composite.Witness) (*checked, []byte, error) {
	var s composite.BoundCheckStatement
	if err := cbor.Unmarshal(st.Body, &s); err != nil {
		return nil, nil, err
	}
	var w composite.BoundCheckWitness
	if err := cbor.Unmarshal(wit.Body, &w); err != nil {
		return nil, nil, err
	}
	if err := paramRef(req, s.ParamsRef, ParamSnarkKey); err != nil {
		return nil, nil, err
	}
	value := composite.FieldFromBytes(w.Value)
	min := composite.FieldFromBytes(s.Min)
	max := composite.FieldFromBytes(s.Max)
	// The witness is rejected outright for an out-of-bound value, mirroring
	// how range-proof witness generation fails in a real proof system.
	if value.Cmp(min) < 0 || value.Cmp(max) >= 0 {
		return nil, nil, errors.Errorf("value outside [%s, %s)", min, max)
	}
	return &checked{resolve: singleValue(value)}, nil, nil
}

func checkCircuit(req *composite.ProofRequest, st *composite.Statement, wit *composite.Witness) (*checked, []byte, error) {
	var s composite.R1CSCircuitStatement
	if err := cbor.Unmarshal(st.Body, &s); err != nil {
		return nil, nil, err
	}
	var w composite.CircuitWitness
	if err := cbor.Unmarshal(wit.Body, &w); err != nil {
		return nil, nil, err
	}
	if err := paramRef(req, s.R1CSRef, ParamR1CS); err != nil {
		return nil, nil, err
	}
	if err := paramRef(req, s.WasmRef, ParamWasm); err != nil {
		return nil, nil, err
	}
	if len(w.Private) != s.PrivateCount {
		return nil, nil, errors.Errorf("circuit expects %d private inputs, witness has %d", s.PrivateCount, len(w.Private))
	}
	private := make([]*big.Int, len(w.Private))
	for i, bts := range w.Private {
		private[i] = composite.FieldFromBytes(bts)
	}
	if err := evalCircuit(s.CircuitID, private, s.PublicInputs); err != nil {
		return nil, nil, err
	}
	return &checked{resolve: func(pos int) (*big.Int, error) {
		if pos < 0 || pos >= len(private) {
			return nil, errors.Errorf("private input index %d out of range", pos)
		}
		return private[pos], nil
	}}, nil, nil
}

func (e plainEngine) checkPedersen(st *composite.Statement, wit *composite.Witness) (*checked, []byte, error) {
	var s composite.PedersenCommitmentStatement
	if err := cbor.Unmarshal(st.Body, &s); err != nil {
		return nil, nil, err
	}
	var w composite.PedersenWitness
	if err := cbor.Unmarshal(wit.Body, &w); err != nil {
		return nil, nil, err
	}
	if len(w.Exponents) != s.Openings {
		return nil, nil, errors.Errorf("commitment has %d openings, witness has %d", s.Openings, len(w.Exponents))
	}
	exponents := make([]*big.Int, len(w.Exponents))
	for i, bts := range w.Exponents {
		exponents[i] = composite.FieldFromBytes(bts)
	}
	commitment, err := e.PedersenCommit(s.Key, exponents)
	if err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(commitment, s.Commitment) {
		return nil, nil, errors.New("commitment does not open to witness")
	}
	return &checked{resolve: func(pos int) (*big.Int, error) {
		if pos < 0 || pos >= len(exponents) {
			return nil, errors.Errorf("opening index %d out of range", pos)
		}
		return exponents[pos], nil
	}}, nil, nil
}

func singleValue(v *big.Int) func(int) (*big.Int, error) {
	return func(pos int) (*big.Int, error) {
		if pos != 0 {
			return nil, errors.Errorf("witness has a single value, index %d requested", pos)
		}
		return v, nil
	}
}

func paramRef(req *composite.ProofRequest, ref int, kind string) error {
	if ref == composite.NoParamsRef {
		return errors.Errorf("missing %s setup param reference", kind)
	}
	if ref < 0 || ref >= len(req.SetupParams) {
		return errors.Errorf("setup param reference %d out of range", ref)
	}
	if req.SetupParams[ref].Kind != kind {
		return errors.Errorf("setup param %d is %q, expected %q", ref, req.SetupParams[ref].Kind, kind)
	}
	return nil
}

func checkEquality(pairs []*checked, ms composite.MetaStatement) error {
	if len(ms.WitnessEquality) < 2 {
		return errors.New("equality set needs at least two refs")
	}
	var first *big.Int
	for _, ref := range ms.WitnessEquality {
		if ref.Statement < 0 || ref.Statement >= len(pairs) {
			return errors.Errorf("statement index %d out of range", ref.Statement)
		}
		v, err := pairs[ref.Statement].resolve(ref.Witness)
		if err != nil {
			return err
		}
		if first == nil {
			first = v
			continue
		}
		if first.Cmp(v) != 0 {
			return errors.Errorf("witnesses differ at statement %d index %d", ref.Statement, ref.Witness)
		}
	}
	return nil
}

// decodeStatementOnly checks a statement body decodes and its setup
// references resolve; the verifier-side counterpart of checkPair.
func decodeStatementOnly(req *composite.ProofRequest, st *composite.Statement) error {
	switch st.Kind {
	case composite.KindPoKSignature:
		var s composite.PoKSignatureStatement
		return cbor.Unmarshal(st.Body, &s)
	case composite.KindAccumulatorMembership, composite.KindAccumulatorNonMembership:
		var s composite.AccumulatorStatement
		if err := cbor.Unmarshal(st.Body, &s); err != nil {
			return err
		}
		return paramRef(req, s.ParamsRef, ParamAccumulator)
	case composite.KindBoundCheck:
		var s composite.BoundCheckStatement
		if err := cbor.Unmarshal(st.Body, &s); err != nil {
			return err
		}
		return paramRef(req, s.ParamsRef, ParamSnarkKey)
	case composite.KindVerifiableEncryption:
		var s composite.VerifiableEncryptionStatement
		if err := cbor.Unmarshal(st.Body, &s); err != nil {
			return err
		}
		return paramRef(req, s.ParamsRef, ParamEncryptionKey)
	case composite.KindR1CSCircuit:
		var s composite.R1CSCircuitStatement
		if err := cbor.Unmarshal(st.Body, &s); err != nil {
			return err
		}
		if err := paramRef(req, s.R1CSRef, ParamR1CS); err != nil {
			return err
		}
		return paramRef(req, s.WasmRef, ParamWasm)
	case composite.KindPedersenCommitment:
		var s composite.PedersenCommitmentStatement
		return cbor.Unmarshal(st.Body, &s)
	default:
		return errors.Errorf("unknown statement kind %q", st.Kind)
	}
}
