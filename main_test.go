package zkcred

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/engine"
	"github.com/zkcred/zkcred/engine/plain"
	"github.com/zkcred/zkcred/schema"
)

func TestMain(m *testing.M) {
	if err := engine.Initialize(plain.Default()); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// personSchema declares the subject shape used throughout the tests.
func personSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.ParseSchema([]byte(`{
		"$version": "0.4.0",
		"properties": {
			"credentialSubject": {
				"properties": {
					"name": {"type": "string"},
					"email": {"type": "reversibleString", "maxLength": 128},
					"city": {"type": "string"},
					"age": {"type": "positiveInteger"},
					"score": {"type": "decimal", "minimum": -300, "decimalPlaces": 3}
				}
			}
		}
	}`))
	require.NoError(t, err)
	return s
}

func personSubject(email string) map[string]interface{} {
	return map[string]interface{}{
		"name":  "Alice",
		"email": email,
		"city":  "Utrecht",
		"age":   25,
		"score": "-90.45",
	}
}

type issuer struct {
	secretKey []byte
	publicKey []byte
}

func newIssuer(t *testing.T) *issuer {
	t.Helper()
	sk, pk, err := GenerateKeypair(SchemeBBS)
	require.NoError(t, err)
	return &issuer{secretKey: sk, publicKey: pk}
}

func (i *issuer) issue(t *testing.T, subject map[string]interface{}) *Credential {
	t.Helper()
	builder := NewCredentialBuilder()
	builder.SetSchema(personSchema(t))
	builder.SetSubject(subject)
	cred, err := builder.Sign(SchemeBBS, i.secretKey)
	require.NoError(t, err)
	return cred
}

func (i *issuer) issueRevocable(t *testing.T, subject map[string]interface{}, registryID string, index uint64) *Credential {
	t.Helper()
	builder := NewCredentialBuilder()
	builder.SetSchema(personSchema(t))
	builder.SetSubject(subject)
	require.NoError(t, builder.SetStatus(registryID, RevocationCheckMembership, index))
	cred, err := builder.Sign(SchemeBBS, i.secretKey)
	require.NoError(t, err)
	return cred
}
