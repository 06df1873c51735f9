package zkcred

import (
	"bytes"
	"encoding/json"

	"github.com/go-errors/errors"

	"github.com/zkcred/zkcred/engine"
	"github.com/zkcred/zkcred/schema"
)

// CredentialBuilder accumulates the parts of a credential and signs them
// into an immutable Credential. Validation happens in the mutation methods
// where possible so Sign fails for as few reasons as necessary.
type CredentialBuilder struct {
	version    string
	sch        *schema.Schema
	subject    map[string]interface{}
	status     *CredentialStatus
	topLevel   map[string]interface{}
	regenerate bool
	eng        engine.Engine
}

// NewCredentialBuilder returns an empty builder at the current protocol
// version.
func NewCredentialBuilder() *CredentialBuilder {
	return &CredentialBuilder{
		version:  CryptoVersion,
		topLevel: make(map[string]interface{}),
	}
}

// WithEngine overrides the process-wide engine, mainly for tests running
// multiple configurations.
func (b *CredentialBuilder) WithEngine(e engine.Engine) *CredentialBuilder {
	b.eng = e
	return b
}

// SetSchema sets the schema governing the credential subject.
func (b *CredentialBuilder) SetSchema(s *schema.Schema) *CredentialBuilder {
	b.sch = s
	return b
}

// SetSubject sets the (possibly nested) attribute values.
func (b *CredentialBuilder) SetSubject(subject map[string]interface{}) *CredentialBuilder {
	b.subject = subject
	return b
}

// SetStatus declares the credential revocable against a registry. The check
// kind must be one of the recognized revocation checks.
func (b *CredentialBuilder) SetStatus(registryID, revocationCheck string, revocationIndex uint64) error {
	status := &CredentialStatus{
		RegistryID:      registryID,
		RevocationCheck: revocationCheck,
		RevocationIndex: revocationIndex,
	}
	if err := status.validate(); err != nil {
		return err
	}
	b.status = status
	return nil
}

// SetTopLevelField adds an additional signed top-level string field, e.g.
// issuer metadata.
func (b *CredentialBuilder) SetTopLevelField(name, value string) error {
	switch name {
	case AttrVersion, AttrSchema, AttrSubject, AttrStatus, "proof":
		return errors.Errorf("top-level field name %q is reserved", name)
	}
	b.topLevel[name] = value
	return nil
}

// AllowSchemaRegeneration switches the subject/schema mismatch policy from
// "error" to "regenerate the subject schema from the subject document". The
// regenerated leaves get inferred types (strings and non-negative
// integers), which forfeits the richer numeric encodings, so prefer fixing
// the schema; the escape hatch exists for issuers whose subject shape is
// dynamic.
func (b *CredentialBuilder) AllowSchemaRegeneration() *CredentialBuilder {
	b.regenerate = true
	return b
}

func (b *CredentialBuilder) engine() (engine.Engine, error) {
	if b.eng != nil {
		return b.eng, nil
	}
	return engine.Current()
}

// Sign validates the builder state, encodes all attributes per the schema,
// signs them and returns the finished credential.
func (b *CredentialBuilder) Sign(scheme SignatureScheme, secretKey []byte) (*Credential, error) {
	eng, err := b.engine()
	if err != nil {
		return nil, err
	}
	if b.subject == nil {
		return nil, errors.New("credential has no subject")
	}
	if b.sch == nil && !b.regenerate {
		return nil, errors.New("credential has no schema; set one or allow regeneration")
	}

	full, err := b.fullSchema()
	if err != nil {
		return nil, err
	}
	schemaJSON, err := full.MarshalCanonical()
	if err != nil {
		return nil, err
	}

	cred := &Credential{
		Version:    b.version,
		Schema:     full,
		SchemaJSON: schemaJSON,
		Subject:    b.subject,
		Status:     b.status,
		TopLevel:   b.topLevel,
		Scheme:     scheme,
	}

	doc, err := jsonRoundTrip(cred.document())
	if err != nil {
		return nil, err
	}
	if err := full.ValidateSubject(doc); err != nil {
		return nil, err
	}

	enc, err := cred.encode()
	if err != nil {
		return nil, err
	}
	params := engine.SignatureParams{
		Label:        signatureParamsLabel(schemaJSON),
		MessageCount: len(enc.elements),
	}
	if cred.Signature, err = scheme.sign(eng, secretKey, params, enc.elements); err != nil {
		return nil, err
	}
	return cred, nil
}

// fullSchema extends the caller's schema with the reserved attributes so
// the flattened name set matches the credential document exactly: protocol
// fields, declared top-level fields and the status subtree. When the
// subject disagrees with the schema and regeneration is allowed, the
// subject subtree is rebuilt from the document instead.
func (b *CredentialBuilder) fullSchema() (*schema.Schema, error) {
	var full *schema.Schema
	if b.sch != nil {
		full = b.sch.Clone()
	} else {
		full = &schema.Schema{Version: schema.SchemaVersion, Properties: make(map[string]*schema.Node)}
	}

	stringLeaf := func() *schema.Node { return &schema.Node{Type: schema.TypeString} }
	if full.Properties == nil {
		full.Properties = make(map[string]*schema.Node)
	}
	full.Properties[AttrVersion] = stringLeaf()
	full.Properties[AttrSchema] = stringLeaf()
	for name := range b.topLevel {
		if _, declared := full.Properties[name]; !declared {
			full.Properties[name] = stringLeaf()
		}
	}
	if b.status != nil {
		full.Properties[AttrStatus] = &schema.Node{Properties: map[string]*schema.Node{
			StatusFieldRegistryID:      stringLeaf(),
			StatusFieldRevocationCheck: stringLeaf(),
			StatusFieldRevocationIndex: {Type: schema.TypePositiveInteger},
		}}
	}

	subjectNode, err := b.subjectSchema(full.Properties[AttrSubject])
	if err != nil {
		return nil, err
	}
	full.Properties[AttrSubject] = subjectNode
	return full, nil
}

// subjectSchema verifies the subject document's leaf set equals the
// schema's subject subtree, regenerating the subtree when allowed.
func (b *CredentialBuilder) subjectSchema(declared *schema.Node) (*schema.Node, error) {
	if declared == nil && !b.regenerate {
		return nil, errors.New("schema does not declare credentialSubject")
	}

	flat, err := flattenDoc(map[string]interface{}{AttrSubject: b.subject})
	if err != nil {
		return nil, err
	}
	if declared != nil && subjectMatches(declared, flat) {
		return declared, nil
	}
	if !b.regenerate {
		return nil, errors.New("subject does not match the schema's credentialSubject attributes")
	}
	return inferNode(b.subject)
}

func subjectMatches(declared *schema.Node, flat map[string]interface{}) bool {
	attrs := (&schema.Schema{Properties: map[string]*schema.Node{AttrSubject: declared}}).Flatten()
	if len(attrs) != len(flat) {
		return false
	}
	for _, attr := range attrs {
		if _, ok := flat[attr.Name]; !ok {
			return false
		}
	}
	return true
}

// inferNode regenerates a schema subtree from a document fragment.
func inferNode(value interface{}) (*schema.Node, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		node := &schema.Node{Properties: make(map[string]*schema.Node, len(v))}
		for name, child := range v {
			cn, err := inferNode(child)
			if err != nil {
				return nil, err
			}
			node.Properties[name] = cn
		}
		return node, nil
	case []interface{}:
		node := &schema.Node{}
		for _, child := range v {
			cn, err := inferNode(child)
			if err != nil {
				return nil, err
			}
			node.Items = append(node.Items, cn)
		}
		return node, nil
	case string:
		return &schema.Node{Type: schema.TypeString}, nil
	case int, int64, uint64:
		return &schema.Node{Type: schema.TypePositiveInteger}, nil
	case json.Number:
		return &schema.Node{Type: schema.TypePositiveInteger}, nil
	default:
		return nil, errors.Errorf("cannot infer schema type for value of type %T", value)
	}
}

// jsonRoundTrip normalizes a document to pure JSON value types with numbers
// as json.Number.
func jsonRoundTrip(doc map[string]interface{}) (map[string]interface{}, error) {
	bts, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(bts))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
