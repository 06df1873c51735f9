package zkcred

import (
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/go-errors/errors"

	"github.com/zkcred/zkcred/internal/common"
	"github.com/zkcred/zkcred/schema"
)

// Reserved attribute names at the top of every credential document. They are
// part of the signed attribute set: cryptoVersion and credentialSchema are
// always revealed in presentations, and the two identifying status
// sub-fields are revealed whenever a status is present.
const (
	AttrVersion = "cryptoVersion"
	AttrSchema  = "credentialSchema"
	AttrSubject = "credentialSubject"
	AttrStatus  = "credentialStatus"

	AttrRegistryID      = AttrStatus + "." + StatusFieldRegistryID
	AttrRevocationCheck = AttrStatus + "." + StatusFieldRevocationCheck
	AttrRevocationIndex = AttrStatus + "." + StatusFieldRevocationIndex

	StatusFieldRegistryID      = "registryId"
	StatusFieldRevocationCheck = "revocationCheck"
	StatusFieldRevocationIndex = "revocationIndex"
)

// flattenDoc flattens a nested credential document into dot-joined leaf
// paths, the same shape a flattened schema produces for the same document.
func flattenDoc(doc map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	for name, value := range doc {
		if err := flattenDocValue(out, name, value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func flattenDocValue(out map[string]interface{}, prefix string, value interface{}) error {
	switch v := value.(type) {
	case map[string]interface{}:
		if len(v) == 0 {
			return errors.Errorf("attribute %q is an empty object", prefix)
		}
		for name, child := range v {
			if strings.Contains(name, ".") {
				return errors.Errorf("attribute name %q may not contain '.'", name)
			}
			if err := flattenDocValue(out, prefix+"."+name, child); err != nil {
				return err
			}
		}
	case []interface{}:
		if len(v) == 0 {
			return errors.Errorf("attribute %q is an empty array", prefix)
		}
		for i, child := range v {
			if err := flattenDocValue(out, prefix+"."+strconv.Itoa(i), child); err != nil {
				return err
			}
		}
	default:
		out[prefix] = value
	}
	return nil
}

// nestDoc rebuilds a nested document from flattened leaves. Array elements
// come back as objects keyed by their index, which flattens to the same
// paths again; round-tripping through nestDoc/flattenDoc is stable.
func nestDoc(flat map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts := strings.Split(name, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = flat[name]
	}
	return out
}

// encodedCredential is a credential document encoded against its schema: the
// flattened attribute list and the field element of every attribute, in
// flattened order.
type encodedCredential struct {
	flat     schema.Flattened
	values   map[string]interface{} // flattened name -> native value
	elements []*big.Int             // flattened order
}

// encodeDoc checks the document's leaf set against the flattened schema and
// encodes every attribute. A leaf in the document but not in the schema
// means unsigned data is being smuggled in; a schema attribute missing from
// the document means the signature could not cover it. Both are errors.
func encodeDoc(flat schema.Flattened, doc map[string]interface{}) (*encodedCredential, error) {
	values, err := flattenDoc(doc)
	if err != nil {
		return nil, err
	}
	if extra := firstExtra(flat, values); extra != "" {
		return nil, errors.Errorf("attribute %q not found in schema", extra)
	}
	elements := make([]*big.Int, len(flat))
	for i, attr := range flat {
		value, ok := values[attr.Name]
		if !ok {
			return nil, errors.Errorf("attribute %q required by schema is missing", attr.Name)
		}
		enc, err := attr.Node.Encoder()
		if err != nil {
			return nil, err
		}
		if elements[i], err = enc(value); err != nil {
			return nil, errors.WrapPrefix(err, errors.Errorf("attribute %q", attr.Name).Error(), 0)
		}
	}
	return &encodedCredential{flat: flat, values: values, elements: elements}, nil
}

func firstExtra(flat schema.Flattened, values map[string]interface{}) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := flat.IndexOf(name); err != nil {
			return name
		}
	}
	return ""
}

// element returns the encoded element of a flattened attribute name.
func (e *encodedCredential) element(name string) (int, *big.Int, error) {
	idx, err := e.flat.IndexOf(name)
	if err != nil {
		return 0, nil, err
	}
	return idx, e.elements[idx], nil
}

// signatureParamsLabel derives the deterministic parameter label for a
// schema: both signer and verifier size and label the signature parameters
// from the canonical schema bytes.
func signatureParamsLabel(schemaJSON string) []byte {
	return common.Multihash([]byte(schemaJSON))
}
