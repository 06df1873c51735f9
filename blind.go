package zkcred

import (
	"math/big"
	"sort"

	"github.com/go-errors/errors"
	"github.com/mr-tron/base58"

	"github.com/zkcred/zkcred/engine"
	"github.com/zkcred/zkcred/schema"
)

// BlindedCredentialRequestBuilder prepares a credential request in which
// some attributes stay hidden from the issuer. The holder commits to the
// hidden values, sends the public request to the issuer, and completes the
// returned blind signature locally.
type BlindedCredentialRequestBuilder struct {
	eng     engine.Engine
	sch     *schema.Schema
	scheme  SignatureScheme
	blinded map[string]interface{}
}

// NewBlindedCredentialRequestBuilder returns an empty builder using the
// process-wide engine.
func NewBlindedCredentialRequestBuilder(scheme SignatureScheme) *BlindedCredentialRequestBuilder {
	return &BlindedCredentialRequestBuilder{scheme: scheme, blinded: make(map[string]interface{})}
}

// WithEngine overrides the engine.
func (b *BlindedCredentialRequestBuilder) WithEngine(e engine.Engine) *BlindedCredentialRequestBuilder {
	b.eng = e
	return b
}

// SetSchema sets the full schema of the credential being requested,
// reserved attributes included. Issuer and holder must agree on it up
// front; it determines the attribute indices the commitment covers.
func (b *BlindedCredentialRequestBuilder) SetSchema(s *schema.Schema) *BlindedCredentialRequestBuilder {
	b.sch = s
	return b
}

// SetBlindedAttribute hides one attribute, by flattened name, from the
// issuer.
func (b *BlindedCredentialRequestBuilder) SetBlindedAttribute(name string, value interface{}) {
	b.blinded[name] = value
}

// Build encodes the hidden attributes and commits to them.
func (b *BlindedCredentialRequestBuilder) Build() (*BlindedCredentialRequest, error) {
	eng := b.eng
	if eng == nil {
		var err error
		if eng, err = engine.Current(); err != nil {
			return nil, err
		}
	}
	if b.sch == nil {
		return nil, errors.New("no schema set")
	}
	if len(b.blinded) == 0 {
		return nil, errors.New("no attributes to blind")
	}
	schemaJSON, err := b.sch.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	flat := b.sch.Flatten()

	hidden := make(map[int]*big.Int, len(b.blinded))
	for name, value := range b.blinded {
		idx, err := flat.IndexOf(name)
		if err != nil {
			return nil, err
		}
		if flat[idx].Node.Type == schema.TypeString {
			return nil, errors.Errorf("attribute %q uses a one-way encoding, declare it %s to blind it", name, schema.TypeReversibleString)
		}
		enc, err := flat[idx].Node.Encoder()
		if err != nil {
			return nil, err
		}
		if hidden[idx], err = enc(value); err != nil {
			return nil, errors.WrapPrefix(err, errors.Errorf("attribute %q", name).Error(), 0)
		}
	}

	params := engine.SignatureParams{
		Label:        signatureParamsLabel(schemaJSON),
		MessageCount: len(flat),
	}
	commitment, blinding, err := eng.CommitAttributes(params, hidden)
	if err != nil {
		return nil, err
	}

	// Names ascending by attribute index, matching the commitment's
	// opening order.
	idxs := make([]int, 0, len(hidden))
	for idx := range hidden {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	names := make([]string, len(idxs))
	for n, idx := range idxs {
		names[n] = flat[idx].Name
	}

	return &BlindedCredentialRequest{
		eng:        eng,
		scheme:     b.scheme,
		schemaJSON: schemaJSON,
		names:      names,
		commitment: commitment,
		blinding:   blinding,
		hidden:     hidden,
	}, nil
}

// BlindedCredentialRequest is a built request: the public block for the
// issuer plus the holder-kept blinding factor and hidden values.
type BlindedCredentialRequest struct {
	eng        engine.Engine
	scheme     SignatureScheme
	schemaJSON string
	names      []string
	commitment []byte
	blinding   []byte
	hidden     map[int]*big.Int
}

// Request returns the public block to send to the issuer.
func (r *BlindedCredentialRequest) Request() *BlindedRequest {
	return r.specBlock()
}

func (r *BlindedCredentialRequest) specBlock() *BlindedRequest {
	return &BlindedRequest{
		SigType:      proofTypes[r.scheme],
		SchemaJSON:   r.schemaJSON,
		Commitment:   base58.Encode(r.commitment),
		BlindedNames: r.names,
	}
}

func (r *BlindedCredentialRequest) secrets() *blindSecrets {
	return &blindSecrets{blinding: r.blinding, hidden: r.hidden}
}

// Complete unblinds the issuer's blind signature and assembles the full
// credential from the issuer-known attributes plus the holder's hidden
// ones.
func (r *BlindedCredentialRequest) Complete(blindSignature []byte, known map[string]interface{}) (*Credential, error) {
	signature, err := r.eng.Unblind(string(r.scheme), blindSignature, r.blinding)
	if err != nil {
		return nil, err
	}

	sch, err := schema.ParseSchema([]byte(r.schemaJSON))
	if err != nil {
		return nil, err
	}
	flat := sch.Flatten()

	values, err := flattenDoc(known)
	if err != nil {
		return nil, err
	}
	for _, name := range r.names {
		if _, ok := values[name]; ok {
			return nil, errors.Errorf("attribute %q was blinded but the issuer supplied it", name)
		}
	}
	blinded, err := r.blindedValues(flat)
	if err != nil {
		return nil, err
	}
	for name, value := range blinded {
		values[name] = value
	}

	cred, err := credentialFromDocument(sch, r.schemaJSON, r.scheme, signature, nestDoc(values))
	if err != nil {
		return nil, err
	}
	if enc, err := cred.encode(); err != nil {
		return nil, err
	} else if len(enc.elements) != len(flat) {
		return nil, errors.New("completed credential does not cover the schema")
	}
	return cred, nil
}

// blindedValues recovers the original values of the hidden attributes from
// their encoded elements; the schema restricts blinded attributes to
// decodable types, so every hidden element maps back.
func (r *BlindedCredentialRequest) blindedValues(flat schema.Flattened) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(r.hidden))
	for idx, el := range r.hidden {
		value, err := flat[idx].Node.Decode(el)
		if err != nil {
			return nil, errors.WrapPrefix(err, errors.Errorf("attribute %q", flat[idx].Name).Error(), 0)
		}
		out[flat[idx].Name] = value
	}
	return out, nil
}

// BlindSign is the issuer side: it encodes the attributes it knows, checks
// they exactly complement the blinded set, and blind-signs commitment plus
// known messages.
func BlindSign(req *BlindedRequest, secretKey []byte, known map[string]interface{}) ([]byte, error) {
	eng, err := engine.Current()
	if err != nil {
		return nil, err
	}
	return blindSign(eng, req, secretKey, known)
}

func blindSign(eng engine.Engine, req *BlindedRequest, secretKey []byte, known map[string]interface{}) ([]byte, error) {
	scheme, err := schemeFromProofType(req.SigType)
	if err != nil {
		return nil, err
	}
	sch, err := schema.ParseSchema([]byte(req.SchemaJSON))
	if err != nil {
		return nil, err
	}
	flat := sch.Flatten()

	blinded := make(map[string]bool, len(req.BlindedNames))
	for _, name := range req.BlindedNames {
		if _, err := flat.IndexOf(name); err != nil {
			return nil, err
		}
		blinded[name] = true
	}

	values, err := flattenDoc(known)
	if err != nil {
		return nil, err
	}
	knownEls := make(map[int]*big.Int, len(values))
	for _, attr := range flat {
		if blinded[attr.Name] {
			if _, ok := values[attr.Name]; ok {
				return nil, errors.Errorf("attribute %q is blinded, issuer cannot supply it", attr.Name)
			}
			continue
		}
		value, ok := values[attr.Name]
		if !ok {
			return nil, errors.Errorf("attribute %q required by schema is missing", attr.Name)
		}
		enc, err := attr.Node.Encoder()
		if err != nil {
			return nil, err
		}
		idx, _ := flat.IndexOf(attr.Name)
		if knownEls[idx], err = enc(value); err != nil {
			return nil, errors.WrapPrefix(err, errors.Errorf("attribute %q", attr.Name).Error(), 0)
		}
	}
	if len(knownEls)+len(blinded) != len(flat) {
		return nil, errors.New("known and blinded attributes do not cover the schema")
	}

	commitment, err := decodeBase58Field("commitment", req.Commitment)
	if err != nil {
		return nil, err
	}
	params := engine.SignatureParams{
		Label:        signatureParamsLabel(req.SchemaJSON),
		MessageCount: len(flat),
	}
	return eng.BlindSign(string(scheme), secretKey, params, commitment, knownEls)
}

// credentialFromDocument splits a complete nested document into the
// credential's fixed fields.
func credentialFromDocument(sch *schema.Schema, schemaJSON string, scheme SignatureScheme, signature []byte, doc map[string]interface{}) (*Credential, error) {
	c := &Credential{
		Schema:     sch,
		SchemaJSON: schemaJSON,
		Scheme:     scheme,
		Signature:  signature,
		TopLevel:   make(map[string]interface{}),
	}
	var ok bool
	if c.Version, ok = doc[AttrVersion].(string); !ok {
		return nil, errors.New("document missing cryptoVersion")
	}
	if declared, ok := doc[AttrSchema].(string); !ok || declared != schemaJSON {
		return nil, errors.New("document credentialSchema does not match")
	}
	if c.Subject, ok = doc[AttrSubject].(map[string]interface{}); !ok {
		return nil, errors.New("document missing credentialSubject")
	}
	if rawStatus, present := doc[AttrStatus]; present {
		status, err := statusFromDocument(rawStatus)
		if err != nil {
			return nil, err
		}
		c.Status = status
	}
	for name, value := range doc {
		switch name {
		case AttrVersion, AttrSchema, AttrSubject, AttrStatus:
		default:
			c.TopLevel[name] = value
		}
	}
	return c, nil
}

func statusFromDocument(raw interface{}) (*CredentialStatus, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New("malformed credentialStatus")
	}
	status := &CredentialStatus{}
	status.RegistryID, _ = m[StatusFieldRegistryID].(string)
	status.RevocationCheck, _ = m[StatusFieldRevocationCheck].(string)
	idx, err := statusIndexValue(m[StatusFieldRevocationIndex])
	if err != nil {
		return nil, err
	}
	status.RevocationIndex = idx
	if err := status.validate(); err != nil {
		return nil, err
	}
	return status, nil
}

func statusIndexValue(raw interface{}) (uint64, error) {
	switch v := raw.(type) {
	case uint64:
		return v, nil
	case int:
		if v < 0 {
			return 0, errors.New("malformed revocationIndex")
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, errors.New("malformed revocationIndex")
		}
		return uint64(v), nil
	default:
		return 0, errors.New("malformed revocationIndex")
	}
}
