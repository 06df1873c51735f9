// Package schema implements the attribute schema governing a credential: a
// nested description of attribute names and types that flattens to a sorted
// list of (name, type) pairs, and the deterministic field-element encoders
// derived from the declared types.
//
// The flattened order and the encodings are the contract between issuer,
// holder and verifier: all three must derive bit-identical field elements for
// the same logical attribute value, or signatures and proofs stop verifying.
// All numeric handling is fixed-point over decimal strings; no float
// arithmetic takes place anywhere in this package.
package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-errors/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Type tags an attribute with its encoding rule.
type Type string

const (
	// TypeString encodes via a hash; lossy, not recoverable from the element.
	TypeString Type = "string"
	// TypeReversibleString encodes byte-preserving; required for attributes
	// that are verifiably encrypted or fed to a circuit as recoverable text.
	TypeReversibleString Type = "reversibleString"
	// TypePositiveInteger is the identity encoding; negative input is an error.
	TypePositiveInteger Type = "positiveInteger"
	// TypeInteger shifts by the declared minimum so the element stays positive.
	TypeInteger Type = "integer"
	// TypePositiveDecimal scales by 10^decimalPlaces.
	TypePositiveDecimal Type = "positiveDecimal"
	// TypeDecimal scales by 10^decimalPlaces and shifts by the minimum.
	TypeDecimal Type = "decimal"
)

// DefaultMaxReversibleLength bounds reversible-string attributes so their
// byte-preserving encoding fits one field element of the underlying engine.
const DefaultMaxReversibleLength = 64

// Node is one vertex of a schema document: a typed leaf, a nested object
// (Properties set) or a fixed-length array (Items set).
type Node struct {
	Type          Type             `json:"type,omitempty"`
	Minimum       json.Number      `json:"minimum,omitempty"`
	DecimalPlaces int              `json:"decimalPlaces,omitempty"`
	MaxLength     int              `json:"maxLength,omitempty"`
	Properties    map[string]*Node `json:"properties,omitempty"`
	Items         []*Node          `json:"items,omitempty"`
}

// Schema is a parsed schema document. It is immutable after parsing; the
// credential builder derives extended copies rather than mutating one in
// place.
type Schema struct {
	Version    string           `json:"$version"`
	Properties map[string]*Node `json:"properties"`
}

// SchemaVersion is emitted into newly constructed schema documents.
const SchemaVersion = "0.4.0"

// metaSchema validates schema documents themselves before they are trusted.
// A node either declares a type or nests properties/items, never both.
const metaSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["$version", "properties"],
	"properties": {
		"$version": {"type": "string"},
		"properties": {
			"type": "object",
			"additionalProperties": {"$ref": "#/definitions/node"}
		}
	},
	"additionalProperties": false,
	"definitions": {
		"node": {
			"type": "object",
			"properties": {
				"type": {"enum": ["string", "reversibleString", "positiveInteger", "integer", "positiveDecimal", "decimal"]},
				"minimum": {"type": "number"},
				"decimalPlaces": {"type": "integer", "minimum": 1, "maximum": 18},
				"maxLength": {"type": "integer", "minimum": 1},
				"properties": {
					"type": "object",
					"additionalProperties": {"$ref": "#/definitions/node"}
				},
				"items": {
					"type": "array",
					"items": {"$ref": "#/definitions/node"},
					"minItems": 1
				}
			},
			"additionalProperties": false
		}
	}
}`

var metaValidator = jsonschema.MustCompileString("zkcred-meta.json", metaSchema)

// ParseSchema validates and parses a schema document.
func ParseSchema(doc []byte) (*Schema, error) {
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, errors.WrapPrefix(err, "schema is not valid JSON", 0)
	}
	if err := metaValidator.Validate(generic); err != nil {
		return nil, errors.WrapPrefix(err, "schema document rejected", 0)
	}

	s := &Schema{}
	if err := json.Unmarshal(doc, s); err != nil {
		return nil, err
	}
	for name, node := range s.Properties {
		if err := checkNode(name, node); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// checkNode enforces the structural rules the meta schema cannot express.
func checkNode(name string, n *Node) error {
	if strings.Contains(name, ".") {
		return errors.Errorf("attribute name %q may not contain '.'", name)
	}
	leaf := n.Type != ""
	nested := len(n.Properties) > 0 || len(n.Items) > 0
	switch {
	case leaf && nested:
		return errors.Errorf("attribute %q declares both a type and children", name)
	case !leaf && !nested:
		return errors.Errorf("attribute %q declares neither a type nor children", name)
	case len(n.Properties) > 0 && len(n.Items) > 0:
		return errors.Errorf("attribute %q mixes object and array form", name)
	}
	if leaf {
		return checkLeaf(name, n)
	}
	for child, cn := range n.Properties {
		if err := checkNode(child, cn); err != nil {
			return err
		}
	}
	for _, cn := range n.Items {
		if err := checkNode(name, cn); err != nil {
			return err
		}
	}
	return nil
}

func checkLeaf(name string, n *Node) error {
	switch n.Type {
	case TypeString, TypeReversibleString, TypePositiveInteger:
		if n.Minimum != "" || n.DecimalPlaces != 0 {
			return errors.Errorf("attribute %q: minimum/decimalPlaces not valid for type %s", name, n.Type)
		}
	case TypeInteger:
		if n.Minimum == "" {
			return errors.Errorf("attribute %q: type integer requires a minimum", name)
		}
		if n.DecimalPlaces != 0 {
			return errors.Errorf("attribute %q: decimalPlaces not valid for type integer", name)
		}
	case TypePositiveDecimal:
		if n.DecimalPlaces == 0 {
			return errors.Errorf("attribute %q: type positiveDecimal requires decimalPlaces", name)
		}
	case TypeDecimal:
		if n.Minimum == "" || n.DecimalPlaces == 0 {
			return errors.Errorf("attribute %q: type decimal requires minimum and decimalPlaces", name)
		}
	default:
		return errors.Errorf("attribute %q: unknown type %q", name, n.Type)
	}
	if n.MaxLength != 0 && n.Type != TypeReversibleString {
		return errors.Errorf("attribute %q: maxLength only valid for reversibleString", name)
	}
	return nil
}

// MarshalCanonical serializes the schema to its canonical string form, the
// form embedded inside credentials and hashed into proofs. encoding/json
// sorts map keys, so two equal schemas always serialize identically.
func (s *Schema) MarshalCanonical() (string, error) {
	bts, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(bts), nil
}

// Clone returns a deep copy that may be extended without aliasing.
func (s *Schema) Clone() *Schema {
	out := &Schema{Version: s.Version, Properties: make(map[string]*Node, len(s.Properties))}
	for k, v := range s.Properties {
		out.Properties[k] = v.clone()
	}
	return out
}

func (n *Node) clone() *Node {
	out := &Node{
		Type:          n.Type,
		Minimum:       n.Minimum,
		DecimalPlaces: n.DecimalPlaces,
		MaxLength:     n.MaxLength,
	}
	if n.Properties != nil {
		out.Properties = make(map[string]*Node, len(n.Properties))
		for k, v := range n.Properties {
			out.Properties[k] = v.clone()
		}
	}
	for _, item := range n.Items {
		out.Items = append(out.Items, item.clone())
	}
	return out
}

// SubjectValidator compiles a JSON schema for documents governed by this
// schema, used to validate a credential subject before signing. Numeric
// leaves accept both JSON numbers and decimal strings, since callers are
// encouraged to pass decimals as strings to avoid float round-tripping.
func (s *Schema) SubjectValidator() (*jsonschema.Schema, error) {
	doc := map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
	}
	root := nodeToJSONSchema(&Node{Properties: s.Properties})
	for k, v := range root {
		doc[k] = v
	}
	bts, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("zkcred-subject.json", bytes.NewReader(bts)); err != nil {
		return nil, err
	}
	return compiler.Compile("zkcred-subject.json")
}

func nodeToJSONSchema(n *Node) map[string]interface{} {
	switch {
	case len(n.Properties) > 0:
		props := make(map[string]interface{}, len(n.Properties))
		required := make([]string, 0, len(n.Properties))
		for name, child := range n.Properties {
			props[name] = nodeToJSONSchema(child)
			required = append(required, name)
		}
		return map[string]interface{}{
			"type":                 "object",
			"properties":           props,
			"required":             required,
			"additionalProperties": false,
		}
	case len(n.Items) > 0:
		items := make([]interface{}, len(n.Items))
		for i, child := range n.Items {
			items[i] = nodeToJSONSchema(child)
		}
		return map[string]interface{}{
			"type":     "array",
			"items":    items,
			"minItems": len(n.Items),
			"maxItems": len(n.Items),
		}
	case n.Type == TypeString || n.Type == TypeReversibleString:
		return map[string]interface{}{"type": "string"}
	default:
		// Numeric leaves: number, or decimal string.
		return map[string]interface{}{
			"type": []string{"number", "string"},
		}
	}
}

// ValidateSubject checks a decoded subject document against the schema shape.
func (s *Schema) ValidateSubject(subject interface{}) error {
	v, err := s.SubjectValidator()
	if err != nil {
		return err
	}
	if err := v.Validate(normalizeJSON(subject)); err != nil {
		return errors.WrapPrefix(err, "subject does not match schema", 0)
	}
	return nil
}

// normalizeJSON rewrites json.Number values into plain strings so the
// validator's "number or string" leaves accept either input form.
func normalizeJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalizeJSON(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeJSON(e)
		}
		return out
	default:
		return v
	}
}
