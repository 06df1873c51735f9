package zkcred

import (
	"encoding/json"

	"github.com/go-errors/errors"
	"github.com/mr-tron/base58"
)

// PresentationSpecification is the fully public description of what a
// presentation proves. It travels alongside the proof, and the verifier
// derives the exact same ordered statement and meta-statement collections
// from it that the builder produced. That replay identity is the central
// correctness property of the protocol, so every collection in here is
// either explicitly ordered or iterated in a canonically sorted order.
type PresentationSpecification struct {
	Credentials         []*PresentedCredential `json:"credentials"`
	AttributeEqualities [][]AttributeRef       `json:"attributeEqualities,omitempty"`
	BoundedPseudonyms   []*BoundedPseudonym    `json:"boundedPseudonyms,omitempty"`
	UnboundedPseudonyms []*UnboundedPseudonym  `json:"unboundedPseudonyms,omitempty"`
	BlindedRequest      *BlindedRequest        `json:"blindedRequest,omitempty"`
}

// AttributeRef names one attribute of one presented credential: the
// credential's position in the presentation and the flattened attribute
// name.
type AttributeRef struct {
	Credential int    `json:"credential"`
	Attribute  string `json:"attribute"`
}

// PresentedCredential is the public face of one credential in a
// presentation.
type PresentedCredential struct {
	Version    string `json:"version"`
	SchemaJSON string `json:"schema"`
	SigType    string `json:"sigType"`

	// Revealed is the nested document of revealed attribute values,
	// including the always-revealed protocol fields.
	Revealed map[string]interface{} `json:"revealedAttributes"`

	Status      *PresentedStatus                 `json:"status,omitempty"`
	Bounds      map[string]*BoundCheck           `json:"bounds,omitempty"`
	Encryptions map[string]*VerifiableEncryption `json:"verifiableEncryptions,omitempty"`
	Circuits    []*CircuitPredicate              `json:"circomPredicates,omitempty"`
}

// PresentedStatus is the public revocation-check descriptor: which registry,
// which check, and the accumulated value the check was proven against.
type PresentedStatus struct {
	RegistryID      string `json:"registryId"`
	RevocationCheck string `json:"revocationCheck"`
	Accumulated     string `json:"accumulated"` // base58
}

// BoundCheck declares min <= attribute < max over the attribute's original
// value domain. Min and max stay in the public spec as the caller wrote
// them; both sides apply the schema's domain transform independently.
type BoundCheck struct {
	Min     json.Number `json:"min"`
	Max     json.Number `json:"max"`
	ParamID string      `json:"paramId"`
}

// VerifiableEncryption declares that the attribute's encoded value is
// encrypted for the holder of the key registered under EncryptionKeyID.
type VerifiableEncryption struct {
	ChunkBitSize    int    `json:"chunkBitSize"`
	EncryptionKeyID string `json:"encryptionKeyId"`
}

// CircuitPredicate declares satisfaction of a compiled circuit over a mix
// of hidden attributes (private variables, in declaration order) and public
// values.
type CircuitPredicate struct {
	CircuitID   string             `json:"circuitId"`
	R1CSID      string             `json:"r1csId"`
	WasmID      string             `json:"wasmId"`
	PrivateVars []CircuitPrivate   `json:"privateVars"`
	PublicVars  []CircuitPublic    `json:"publicVars,omitempty"`
}

// CircuitPrivate binds a circuit variable to a hidden attribute of the
// enclosing credential.
type CircuitPrivate struct {
	VarName   string `json:"varName"`
	Attribute string `json:"attribute"`
}

// CircuitPublic binds a circuit variable to a public field element, given
// as a decimal string.
type CircuitPublic struct {
	VarName string `json:"varName"`
	Value   string `json:"value"`
}

// BoundedPseudonym is a verifier-scoped identifier committed to one or more
// credential attributes, optionally including the holder's secret key as
// the final opening.
type BoundedPseudonym struct {
	Key               string         `json:"key"`        // base58 commitment key
	Commitment        string         `json:"commitment"` // base58
	Attributes        []AttributeRef `json:"attributes"`
	IncludesSecretKey bool           `json:"includesSecretKey,omitempty"`
}

// UnboundedPseudonym is committed to the holder's secret key only.
type UnboundedPseudonym struct {
	Key        string `json:"key"`
	Commitment string `json:"commitment"`
}

// BlindedRequest is the public block of a blinded-credential request
// attached to a presentation: the commitment to the hidden attributes and
// which attributes are hidden. Binding it into the spec puts it under the
// proof's context hash.
type BlindedRequest struct {
	SigType      string   `json:"sigType"`
	SchemaJSON   string   `json:"schema"`
	Commitment   string   `json:"commitment"` // base58
	BlindedNames []string `json:"blindedAttributeNames"`
}

// canonicalJSON serializes the spec deterministically; map keys sort and
// slices keep declaration order.
func (s *PresentationSpecification) canonicalJSON() ([]byte, error) {
	return json.Marshal(s)
}

func decodeBase58Field(field, value string) ([]byte, error) {
	bts, err := base58.Decode(value)
	if err != nil {
		return nil, errors.WrapPrefix(err, "bad base58 in "+field, 0)
	}
	return bts, nil
}
