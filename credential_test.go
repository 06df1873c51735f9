package zkcred

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss := newIssuer(t)
	cred := iss.issue(t, personSubject("alice@example.com"))

	assert.Equal(t, CryptoVersion, cred.Version)
	assert.NotEmpty(t, cred.SchemaJSON)

	result, err := cred.Verify(iss.publicKey)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	other := newIssuer(t)
	result, err = cred.Verify(other.publicKey)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.NotEmpty(t, result.Err)
}

func TestTamperedSubjectFailsVerification(t *testing.T) {
	iss := newIssuer(t)
	cred := iss.issue(t, personSubject("alice@example.com"))
	cred.Subject["city"] = "Berlin"

	result, err := cred.Verify(iss.publicKey)
	require.NoError(t, err)
	assert.False(t, result.Verified)
}

func TestCredentialJSONRoundtrip(t *testing.T) {
	iss := newIssuer(t)
	cred := iss.issueRevocable(t, personSubject("alice@example.com"), "registry-1", 42)

	bts, err := json.Marshal(cred)
	require.NoError(t, err)

	parsed, err := CredentialFromJSON(bts)
	require.NoError(t, err)
	assert.Equal(t, cred.Version, parsed.Version)
	assert.Equal(t, cred.SchemaJSON, parsed.SchemaJSON)
	assert.Equal(t, cred.Scheme, parsed.Scheme)
	require.NotNil(t, parsed.Status)
	assert.Equal(t, "registry-1", parsed.Status.RegistryID)
	assert.Equal(t, uint64(42), parsed.Status.RevocationIndex)

	result, err := parsed.Verify(iss.publicKey)
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestSubjectMustMatchSchema(t *testing.T) {
	iss := newIssuer(t)
	builder := NewCredentialBuilder()
	builder.SetSchema(personSchema(t))

	subject := personSubject("alice@example.com")
	subject["nickname"] = "Al"
	builder.SetSubject(subject)
	_, err := builder.Sign(SchemeBBS, iss.secretKey)
	assert.ErrorContains(t, err, "does not match the schema")

	missing := personSubject("alice@example.com")
	delete(missing, "city")
	builder.SetSubject(missing)
	_, err = builder.Sign(SchemeBBS, iss.secretKey)
	assert.ErrorContains(t, err, "does not match the schema")
}

func TestSchemaRegeneration(t *testing.T) {
	iss := newIssuer(t)
	builder := NewCredentialBuilder()
	builder.AllowSchemaRegeneration()
	builder.SetSubject(map[string]interface{}{
		"name":   "Bob",
		"region": "north",
		"level":  3,
	})
	cred, err := builder.Sign(SchemeBBS, iss.secretKey)
	require.NoError(t, err)

	result, err := cred.Verify(iss.publicKey)
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestStatusValidation(t *testing.T) {
	builder := NewCredentialBuilder()
	assert.ErrorContains(t, builder.SetStatus("registry-1", "sometimes", 1), "unrecognized revocation check")
	assert.Error(t, builder.SetStatus("", RevocationCheckMembership, 1))
	assert.NoError(t, builder.SetStatus("registry-1", RevocationCheckNonMembership, 1))
}

func TestTopLevelFields(t *testing.T) {
	iss := newIssuer(t)
	builder := NewCredentialBuilder()
	builder.SetSchema(personSchema(t))
	builder.SetSubject(personSubject("alice@example.com"))

	assert.ErrorContains(t, builder.SetTopLevelField("credentialSubject", "x"), "reserved")
	assert.ErrorContains(t, builder.SetTopLevelField("proof", "x"), "reserved")
	require.NoError(t, builder.SetTopLevelField("issuerName", "Example University"))

	cred, err := builder.Sign(SchemeBBS, iss.secretKey)
	require.NoError(t, err)
	assert.Equal(t, "Example University", cred.TopLevel["issuerName"])

	result, err := cred.Verify(iss.publicKey)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	// The extra field is signed: changing it invalidates the credential.
	cred.TopLevel["issuerName"] = "Diploma Mill"
	result, err = cred.Verify(iss.publicKey)
	require.NoError(t, err)
	assert.False(t, result.Verified)
}
