package zkcred

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/schema"
)

// Five string attributes, two of them disclosed; flipping a disclosed value
// in the public specification must break verification.
func TestStringAttributeDisclosure(t *testing.T) {
	iss := newIssuer(t)
	sch, err := schema.ParseSchema([]byte(`{
		"$version": "0.4.0",
		"properties": {
			"credentialSubject": {
				"properties": {
					"ssn": {"type": "string"},
					"firstName": {"type": "string"},
					"lastName": {"type": "string"},
					"email": {"type": "string"},
					"city": {"type": "string"}
				}
			}
		}
	}`))
	require.NoError(t, err)

	builder := NewCredentialBuilder()
	builder.SetSchema(sch)
	builder.SetSubject(map[string]interface{}{
		"ssn":       "123-45-6789",
		"firstName": "Alice",
		"lastName":  "de Vries",
		"email":     "alice@example.com",
		"city":      "Utrecht",
	})
	cred, err := builder.Sign(SchemeBBS, iss.secretKey)
	require.NoError(t, err)

	pb := NewPresentationBuilder()
	i0, err := pb.AddCredential(cred)
	require.NoError(t, err)
	require.NoError(t, pb.MarkRevealed(i0, "credentialSubject.lastName", "credentialSubject.city"))
	pb.SetNonce([]byte("scenario-1"))

	params := &PresentationParams{PublicKeys: [][]byte{iss.publicKey}}
	p, err := pb.Build(params)
	require.NoError(t, err)

	result, err := p.Verify(params)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	subject := p.Spec.Credentials[0].Revealed["credentialSubject"].(map[string]interface{})
	assert.Equal(t, "de Vries", subject["lastName"])
	assert.NotContains(t, subject, "ssn")

	subject["lastName"] = "Jansen"
	result, err = p.Verify(params)
	require.NoError(t, err)
	assert.False(t, result.Verified)
}

// Two credentials, an equality across them and four distinct bound checks;
// swapping two bound descriptors in the specification must break
// verification even though every individual descriptor still parses.
func TestCrossCredentialBounds(t *testing.T) {
	iss := newIssuer(t)
	sch, err := schema.ParseSchema([]byte(`{
		"$version": "0.4.0",
		"properties": {
			"credentialSubject": {
				"properties": {
					"amount": {"type": "positiveInteger"},
					"count": {"type": "positiveInteger"}
				}
			}
		}
	}`))
	require.NoError(t, err)

	issueNumeric := func(amount, count int) *Credential {
		b := NewCredentialBuilder()
		b.SetSchema(sch)
		b.SetSubject(map[string]interface{}{"amount": amount, "count": count})
		cred, err := b.Sign(SchemeBBS, iss.secretKey)
		require.NoError(t, err)
		return cred
	}
	cred0 := issueNumeric(42, 7)
	cred1 := issueNumeric(42, 30)

	pb := NewPresentationBuilder()
	i0, err := pb.AddCredential(cred0)
	require.NoError(t, err)
	i1, err := pb.AddCredential(cred1)
	require.NoError(t, err)
	require.NoError(t, pb.EnforceEquality(
		AttributeRef{Credential: i0, Attribute: "credentialSubject.amount"},
		AttributeRef{Credential: i1, Attribute: "credentialSubject.amount"},
	))
	require.NoError(t, pb.AddBound(i0, "credentialSubject.amount", "snark-1", 10, 100))
	require.NoError(t, pb.AddBound(i0, "credentialSubject.count", "snark-1", 0, 50))
	require.NoError(t, pb.AddBound(i1, "credentialSubject.amount", "snark-1", 5, 200))
	require.NoError(t, pb.AddBound(i1, "credentialSubject.count", "snark-1", 1, 40))
	pb.SetNonce([]byte("scenario-2"))

	params := &PresentationParams{
		PublicKeys: [][]byte{iss.publicKey, iss.publicKey},
		SnarkKeys:  map[string][]byte{"snark-1": []byte("range-proving-key")},
	}
	p, err := pb.Build(params)
	require.NoError(t, err)

	result, err := p.Verify(params)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	bounds := p.Spec.Credentials[0].Bounds
	bounds["credentialSubject.amount"], bounds["credentialSubject.count"] =
		bounds["credentialSubject.count"], bounds["credentialSubject.amount"]
	result, err = p.Verify(params)
	require.NoError(t, err)
	assert.False(t, result.Verified)
}
