package zkcred

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/schema"
)

// blindSchema declares the full attribute tree up front. Blind issuance
// cannot regenerate the schema from the subject because the issuer never
// sees the hidden values.
func blindSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.ParseSchema([]byte(`{
		"$version": "0.4.0",
		"properties": {
			"cryptoVersion": {"type": "string"},
			"credentialSchema": {"type": "string"},
			"credentialSubject": {
				"properties": {
					"name": {"type": "string"},
					"email": {"type": "reversibleString", "maxLength": 128},
					"age": {"type": "positiveInteger"}
				}
			}
		}
	}`))
	require.NoError(t, err)
	return s
}

func blindKnown(wire *BlindedRequest) map[string]interface{} {
	return map[string]interface{}{
		AttrVersion: CryptoVersion,
		AttrSchema:  wire.SchemaJSON,
		AttrSubject: map[string]interface{}{
			"name": "Alice",
			"age":  25,
		},
	}
}

func TestBlindIssuance(t *testing.T) {
	iss := newIssuer(t)

	rb := NewBlindedCredentialRequestBuilder(SchemeBBS)
	rb.SetSchema(blindSchema(t))
	rb.SetBlindedAttribute("credentialSubject.email", "alice@example.com")
	req, err := rb.Build()
	require.NoError(t, err)

	wire := req.Request()
	assert.Equal(t, []string{"credentialSubject.email"}, wire.BlindedNames)
	assert.NotEmpty(t, wire.Commitment)

	sig, err := BlindSign(wire, iss.secretKey, blindKnown(wire))
	require.NoError(t, err)

	cred, err := req.Complete(sig, blindKnown(wire))
	require.NoError(t, err)

	// The hidden value ends up in the credential without the issuer ever
	// seeing it, and the unblinded signature verifies.
	assert.Equal(t, "alice@example.com", cred.Subject["email"])
	assert.Equal(t, "Alice", cred.Subject["name"])
	result, err := cred.Verify(iss.publicKey)
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestBlindIssuanceRejectsOneWayAttributes(t *testing.T) {
	rb := NewBlindedCredentialRequestBuilder(SchemeBBS)
	rb.SetSchema(blindSchema(t))
	rb.SetBlindedAttribute("credentialSubject.name", "Alice")
	_, err := rb.Build()
	assert.ErrorContains(t, err, "one-way encoding")
}

func TestBlindSignRejectsBadDocuments(t *testing.T) {
	iss := newIssuer(t)

	rb := NewBlindedCredentialRequestBuilder(SchemeBBS)
	rb.SetSchema(blindSchema(t))
	rb.SetBlindedAttribute("credentialSubject.email", "alice@example.com")
	req, err := rb.Build()
	require.NoError(t, err)
	wire := req.Request()

	t.Run("blinded attribute supplied by issuer", func(t *testing.T) {
		known := blindKnown(wire)
		known[AttrSubject].(map[string]interface{})["email"] = "issuer@example.com"
		_, err := BlindSign(wire, iss.secretKey, known)
		assert.ErrorContains(t, err, "issuer cannot supply it")
	})

	t.Run("missing known attribute", func(t *testing.T) {
		known := blindKnown(wire)
		delete(known[AttrSubject].(map[string]interface{}), "age")
		_, err := BlindSign(wire, iss.secretKey, known)
		assert.ErrorContains(t, err, "missing")
	})
}

func TestCompleteRejectsIssuerSuppliedBlindedValue(t *testing.T) {
	iss := newIssuer(t)

	rb := NewBlindedCredentialRequestBuilder(SchemeBBS)
	rb.SetSchema(blindSchema(t))
	rb.SetBlindedAttribute("credentialSubject.email", "alice@example.com")
	req, err := rb.Build()
	require.NoError(t, err)
	wire := req.Request()

	sig, err := BlindSign(wire, iss.secretKey, blindKnown(wire))
	require.NoError(t, err)

	known := blindKnown(wire)
	known[AttrSubject].(map[string]interface{})["email"] = "issuer@example.com"
	_, err = req.Complete(sig, known)
	assert.ErrorContains(t, err, "was blinded but the issuer supplied it")
}

func TestPresentationCarriesBlindedRequest(t *testing.T) {
	iss := newIssuer(t)
	cred := iss.issue(t, personSubject("alice@example.com"))

	rb := NewBlindedCredentialRequestBuilder(SchemeBBS)
	rb.SetSchema(blindSchema(t))
	rb.SetBlindedAttribute("credentialSubject.email", "blind@example.com")
	req, err := rb.Build()
	require.NoError(t, err)

	b := NewPresentationBuilder()
	_, err = b.AddCredential(cred)
	require.NoError(t, err)
	require.NoError(t, b.AttachBlindedRequest(req))
	assert.ErrorContains(t, b.AttachBlindedRequest(req), "already attached")
	b.SetNonce([]byte("blind-request-nonce"))

	params := &PresentationParams{PublicKeys: [][]byte{iss.publicKey}}
	p, err := b.Build(params)
	require.NoError(t, err)

	require.NotNil(t, p.Spec.BlindedRequest)
	assert.Equal(t, req.Request().Commitment, p.Spec.BlindedRequest.Commitment)

	result, err := p.Verify(params)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	// The hidden value must not leak through the transport form.
	bts, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(bts), "blind@example.com")

	parsed, err := PresentationFromJSON(bts)
	require.NoError(t, err)
	result, err = parsed.Verify(params)
	require.NoError(t, err)
	assert.True(t, result.Verified)
}
