package schema

import (
	"sort"
	"strconv"

	"github.com/go-errors/errors"
)

// FlatAttribute is one entry of a flattened schema: a dot-joined path and the
// leaf node declaring its type.
type FlatAttribute struct {
	Name string
	Node *Node
}

// Flattened is the sorted flattening of a schema. The index of each entry is
// the attribute's message index in every signature and proof over a
// credential governed by the schema, so the sort must be reproduced exactly
// by issuer, prover and verifier.
type Flattened []FlatAttribute

// Flatten walks the schema depth-first, joins nested names with dots, indexes
// array elements by position, and sorts the result lexicographically. The
// sort is explicit; nothing depends on map iteration order.
func (s *Schema) Flatten() Flattened {
	var out Flattened
	for name, node := range s.Properties {
		out = flattenNode(out, name, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func flattenNode(acc Flattened, prefix string, n *Node) Flattened {
	switch {
	case len(n.Properties) > 0:
		for name, child := range n.Properties {
			acc = flattenNode(acc, prefix+"."+name, child)
		}
	case len(n.Items) > 0:
		for i, child := range n.Items {
			acc = flattenNode(acc, prefix+"."+strconv.Itoa(i), child)
		}
	default:
		acc = append(acc, FlatAttribute{Name: prefix, Node: n})
	}
	return acc
}

// Names returns the attribute names in flattened order.
func (f Flattened) Names() []string {
	names := make([]string, len(f))
	for i, a := range f {
		names[i] = a.Name
	}
	return names
}

// IndexOf resolves an attribute name to its message index.
func (f Flattened) IndexOf(name string) (int, error) {
	i := sort.Search(len(f), func(i int) bool { return f[i].Name >= name })
	if i == len(f) || f[i].Name != name {
		return 0, errors.Errorf("attribute %q not found in schema", name)
	}
	return i, nil
}
