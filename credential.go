package zkcred

import (
	"bytes"
	"encoding/json"

	"github.com/go-errors/errors"
	"github.com/mr-tron/base58"

	"github.com/zkcred/zkcred/engine"
	"github.com/zkcred/zkcred/schema"
)

// CryptoVersion is the protocol version stamped into credentials and
// presentations and bound into every proof context.
const CryptoVersion = "0.1.0"

// Revocation check kinds a credential status may declare.
const (
	RevocationCheckMembership    = "membership"
	RevocationCheckNonMembership = "non-membership"
)

// CredentialStatus points a credential at a revocation registry: which
// registry, which kind of accumulator check proves non-revocation, and the
// credential's member index in the accumulator. The registry id and check
// kind are always revealed in presentations; the index never is.
type CredentialStatus struct {
	RegistryID      string `json:"registryId"`
	RevocationCheck string `json:"revocationCheck"`
	RevocationIndex uint64 `json:"revocationIndex"`
}

func (s *CredentialStatus) validate() error {
	if s.RegistryID == "" {
		return errors.New("status requires a registry id")
	}
	switch s.RevocationCheck {
	case RevocationCheckMembership, RevocationCheckNonMembership:
		return nil
	default:
		return errors.Errorf("unrecognized revocation check %q", s.RevocationCheck)
	}
}

// Credential is a signed, immutable attribute set. Build one with
// CredentialBuilder; deserialize with CredentialFromJSON.
type Credential struct {
	Version    string
	Schema     *schema.Schema
	SchemaJSON string
	Subject    map[string]interface{}
	Status     *CredentialStatus
	TopLevel   map[string]interface{}
	Scheme     SignatureScheme
	Signature  []byte
}

// VerifyResult is the outcome of a signature or proof check. Invalidity is
// reported here, not as a Go error; errors are reserved for malformed input
// and misconfiguration.
type VerifyResult struct {
	Verified bool
	Err      string
}

// document assembles the full credential document whose flattened leaves are
// the signed attribute set, with the fixed top-level key layout.
func (c *Credential) document() map[string]interface{} {
	doc := map[string]interface{}{
		AttrVersion: c.Version,
		AttrSchema:  c.SchemaJSON,
		AttrSubject: c.Subject,
	}
	for name, value := range c.TopLevel {
		doc[name] = value
	}
	if c.Status != nil {
		doc[AttrStatus] = map[string]interface{}{
			StatusFieldRegistryID:      c.Status.RegistryID,
			StatusFieldRevocationCheck: c.Status.RevocationCheck,
			StatusFieldRevocationIndex: c.Status.RevocationIndex,
		}
	}
	return doc
}

// encode re-derives the flattened, encoded view of the credential.
func (c *Credential) encode() (*encodedCredential, error) {
	return encodeDoc(c.Schema.Flatten(), c.document())
}

// Verify re-serializes and re-encodes the credential and checks the
// signature against the issuer's public key.
func (c *Credential) Verify(publicKey []byte) (VerifyResult, error) {
	eng, err := engine.Current()
	if err != nil {
		return VerifyResult{}, err
	}
	enc, err := c.encode()
	if err != nil {
		return VerifyResult{}, err
	}
	params := engine.SignatureParams{
		Label:        signatureParamsLabel(c.SchemaJSON),
		MessageCount: len(enc.elements),
	}
	if err := c.Scheme.verify(eng, publicKey, params, enc.elements, c.Signature); err != nil {
		return VerifyResult{Err: err.Error()}, nil
	}
	return VerifyResult{Verified: true}, nil
}

// proofType is the JSON "proof.type" value per scheme.
var proofTypes = map[SignatureScheme]string{
	SchemeBBS:     "Bls12381BBSSignatureDock2023",
	SchemeBBSPlus: "Bls12381BBS+SignatureDock2022",
	SchemePS:      "Bls12381PSSignatureDock2023",
	SchemeBDDT16:  "Bddt16MacDock2024",
}

func schemeFromProofType(t string) (SignatureScheme, error) {
	for scheme, pt := range proofTypes {
		if pt == t {
			return scheme, nil
		}
	}
	return "", errors.Errorf("unknown proof type %q", t)
}

// MarshalJSON emits the transport form: reserved fields, top-level extras
// and a base58 proof value.
func (c *Credential) MarshalJSON() ([]byte, error) {
	doc := map[string]interface{}{
		AttrVersion: c.Version,
		AttrSchema:  c.SchemaJSON,
		AttrSubject: c.Subject,
	}
	for name, value := range c.TopLevel {
		doc[name] = value
	}
	if c.Status != nil {
		doc[AttrStatus] = c.Status
	}
	doc["proof"] = map[string]string{
		"type":       proofTypes[c.Scheme],
		"proofValue": base58.Encode(c.Signature),
	}
	return json.Marshal(doc)
}

// CredentialFromJSON parses the transport form produced by MarshalJSON.
// Numbers are kept as json.Number so decimal attributes never pass through
// a float.
func CredentialFromJSON(bts []byte) (*Credential, error) {
	dec := json.NewDecoder(bytes.NewReader(bts))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	c := &Credential{TopLevel: make(map[string]interface{})}
	var ok bool
	if c.Version, ok = doc[AttrVersion].(string); !ok {
		return nil, errors.New("credential missing cryptoVersion")
	}
	if c.SchemaJSON, ok = doc[AttrSchema].(string); !ok {
		return nil, errors.New("credential missing credentialSchema")
	}
	var err error
	if c.Schema, err = schema.ParseSchema([]byte(c.SchemaJSON)); err != nil {
		return nil, err
	}
	if c.Subject, ok = doc[AttrSubject].(map[string]interface{}); !ok {
		return nil, errors.New("credential missing credentialSubject")
	}

	if rawStatus, present := doc[AttrStatus]; present {
		status, err := statusFromJSON(rawStatus)
		if err != nil {
			return nil, err
		}
		c.Status = status
	}

	rawProof, ok := doc["proof"].(map[string]interface{})
	if !ok {
		return nil, errors.New("credential missing proof")
	}
	proofType, _ := rawProof["type"].(string)
	if c.Scheme, err = schemeFromProofType(proofType); err != nil {
		return nil, err
	}
	proofValue, _ := rawProof["proofValue"].(string)
	if c.Signature, err = base58.Decode(proofValue); err != nil {
		return nil, errors.WrapPrefix(err, "bad proofValue", 0)
	}

	for name, value := range doc {
		switch name {
		case AttrVersion, AttrSchema, AttrSubject, AttrStatus, "proof":
		default:
			c.TopLevel[name] = value
		}
	}
	return c, nil
}

func statusFromJSON(raw interface{}) (*CredentialStatus, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New("malformed credentialStatus")
	}
	status := &CredentialStatus{}
	status.RegistryID, _ = m[StatusFieldRegistryID].(string)
	status.RevocationCheck, _ = m[StatusFieldRevocationCheck].(string)
	if idx, ok := m[StatusFieldRevocationIndex].(json.Number); ok {
		v, err := idx.Int64()
		if err != nil || v < 0 {
			return nil, errors.New("malformed revocationIndex")
		}
		status.RevocationIndex = uint64(v)
	}
	if err := status.validate(); err != nil {
		return nil, err
	}
	return status, nil
}
