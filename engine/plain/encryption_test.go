package plain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/composite"
)

func encryptionRequest(t *testing.T, chunkBits int, encryptionKey []byte, message *big.Int) (*composite.ProofRequest, composite.Witnesses) {
	t.Helper()
	st, err := composite.NewVerifiableEncryptionStatement(&composite.VerifiableEncryptionStatement{
		ChunkBitSize: chunkBits,
		ParamsRef:    0,
	})
	require.NoError(t, err)
	wit, err := composite.NewEncryptionWitness(&composite.EncryptionWitness{
		Message: composite.FieldBytes(message),
	})
	require.NoError(t, err)

	var stmts composite.Statements
	stmts.Add(st)
	var wits composite.Witnesses
	wits.Add(wit)
	return &composite.ProofRequest{
		Statements:  stmts,
		SetupParams: []composite.SetupParam{{Kind: ParamEncryptionKey, Bytes: encryptionKey}},
	}, wits
}

func TestVerifiableEncryptionRoundtrip(t *testing.T) {
	eng := Default()
	pub, priv, err := GenerateEncryptionKeypair()
	require.NoError(t, err)

	for _, chunkBits := range []int{8, 16} {
		message := new(big.Int).SetBytes([]byte{0x01, 'h', 'i'})
		req, wits := encryptionRequest(t, chunkBits, pub, message)

		out, err := eng.GenerateProof(req, wits)
		require.NoError(t, err)
		require.Len(t, out.Ciphertexts, 1)
		assert.NoError(t, eng.VerifyProof(out.Proof, req))

		decrypted, err := Decrypt(out.Ciphertexts[0], pub, priv)
		require.NoError(t, err)
		assert.Zero(t, message.Cmp(decrypted))
	}
}

func TestEncryptionRejectsBadInput(t *testing.T) {
	eng := Default()
	pub, priv, err := GenerateEncryptionKeypair()
	require.NoError(t, err)

	req, wits := encryptionRequest(t, 12, pub, big.NewInt(5))
	_, err = eng.GenerateProof(req, wits)
	assert.ErrorContains(t, err, "chunk")

	// A ciphertext for one keypair does not open under another.
	req, wits = encryptionRequest(t, 8, pub, big.NewInt(5))
	out, err := eng.GenerateProof(req, wits)
	require.NoError(t, err)
	otherPub, otherPriv, err := GenerateEncryptionKeypair()
	require.NoError(t, err)
	_, err = Decrypt(out.Ciphertexts[0], otherPub, otherPriv)
	assert.Error(t, err)

	_, err = Decrypt(out.Ciphertexts[0], pub, priv)
	assert.NoError(t, err)
}
