package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := ParseSchema([]byte(`{
		"$version": "0.4.0",
		"properties": {
			"name": {"type": "string"},
			"email": {"type": "reversibleString", "maxLength": 128},
			"address": {
				"properties": {
					"city": {"type": "string"},
					"zip": {"type": "reversibleString"}
				}
			},
			"score": {"type": "decimal", "minimum": -300, "decimalPlaces": 3},
			"age": {"type": "positiveInteger"}
		}
	}`))
	require.NoError(t, err)
	return s
}

func TestParseSchema(t *testing.T) {
	s := testSchema(t)
	assert.Equal(t, "0.4.0", s.Version)
	assert.Equal(t, TypeDecimal, s.Properties["score"].Type)
	assert.Equal(t, json.Number("-300"), s.Properties["score"].Minimum)
	assert.Equal(t, 128, s.Properties["email"].MaxLength)
}

func TestParseSchemaRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"not json":              `{`,
		"missing version":       `{"properties": {"a": {"type": "string"}}}`,
		"unknown type":          `{"$version": "0.4.0", "properties": {"a": {"type": "float"}}}`,
		"type and children":     `{"$version": "0.4.0", "properties": {"a": {"type": "string", "properties": {"b": {"type": "string"}}}}}`,
		"neither":               `{"$version": "0.4.0", "properties": {"a": {}}}`,
		"integer no minimum":    `{"$version": "0.4.0", "properties": {"a": {"type": "integer"}}}`,
		"decimal no places":     `{"$version": "0.4.0", "properties": {"a": {"type": "decimal", "minimum": 0}}}`,
		"maxLength on string":   `{"$version": "0.4.0", "properties": {"a": {"type": "string", "maxLength": 8}}}`,
		"dotted attribute name": `{"$version": "0.4.0", "properties": {"a.b": {"type": "string"}}}`,
		"object and array":      `{"$version": "0.4.0", "properties": {"a": {"properties": {"b": {"type": "string"}}, "items": [{"type": "string"}]}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchema([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	s := testSchema(t)
	first, err := s.MarshalCanonical()
	require.NoError(t, err)

	reparsed, err := ParseSchema([]byte(first))
	require.NoError(t, err)
	second, err := reparsed.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFlattenOrder(t *testing.T) {
	flat := testSchema(t).Flatten()
	assert.Equal(t,
		[]string{"address.city", "address.zip", "age", "email", "name", "score"},
		flat.Names())

	idx, err := flat.IndexOf("email")
	require.NoError(t, err)
	assert.Equal(t, TypeReversibleString, flat[idx].Node.Type)

	_, err = flat.IndexOf("nope")
	assert.ErrorContains(t, err, "not found in schema")
}

func TestFlattenArrayItems(t *testing.T) {
	s, err := ParseSchema([]byte(`{
		"$version": "0.4.0",
		"properties": {
			"phones": {"items": [{"type": "string"}, {"type": "string"}]}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"phones.0", "phones.1"}, s.Flatten().Names())
}

func TestClone(t *testing.T) {
	s := testSchema(t)
	c := s.Clone()
	c.Properties["extra"] = &Node{Type: TypeString}
	c.Properties["address"].Properties["country"] = &Node{Type: TypeString}

	assert.NotContains(t, s.Properties, "extra")
	assert.NotContains(t, s.Properties["address"].Properties, "country")
}

func TestValidateSubject(t *testing.T) {
	s := testSchema(t)
	valid := map[string]interface{}{
		"name":    "Alice",
		"email":   "alice@example.com",
		"address": map[string]interface{}{"city": "Utrecht", "zip": "3511"},
		"score":   "-90.45",
		"age":     float64(25),
	}
	assert.NoError(t, s.ValidateSubject(valid))

	missing := map[string]interface{}{"name": "Alice"}
	assert.Error(t, s.ValidateSubject(missing))

	extra := map[string]interface{}{}
	for k, v := range valid {
		extra[k] = v
	}
	extra["nickname"] = "Al"
	assert.Error(t, s.ValidateSubject(extra))

	wrongType := map[string]interface{}{}
	for k, v := range valid {
		wrongType[k] = v
	}
	wrongType["name"] = float64(7)
	assert.Error(t, s.ValidateSubject(wrongType))
}
