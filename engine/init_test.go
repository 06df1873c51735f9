package engine

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/composite"
)

type stubEngine struct{ id int }

func (stubEngine) KeyGen(string) ([]byte, []byte, error) { return nil, nil, nil }
func (stubEngine) Sign(string, []byte, SignatureParams, []*big.Int) ([]byte, error) {
	return nil, nil
}
func (stubEngine) Verify(string, []byte, SignatureParams, []*big.Int, []byte) error { return nil }
func (stubEngine) CommitAttributes(SignatureParams, map[int]*big.Int) ([]byte, []byte, error) {
	return nil, nil, nil
}
func (stubEngine) BlindSign(string, []byte, SignatureParams, []byte, map[int]*big.Int) ([]byte, error) {
	return nil, nil
}
func (stubEngine) Unblind(string, []byte, []byte) ([]byte, error)    { return nil, nil }
func (stubEngine) PedersenCommit([]byte, []*big.Int) ([]byte, error) { return nil, nil }
func (stubEngine) GenerateProof(*composite.ProofRequest, composite.Witnesses) (*ProofOutput, error) {
	return nil, nil
}
func (stubEngine) VerifyProof([]byte, *composite.ProofRequest) error { return nil }

func TestInitializeGate(t *testing.T) {
	reset()
	defer reset()

	_, err := Current()
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.Error(t, Initialize(nil))

	e := stubEngine{id: 1}
	require.NoError(t, Initialize(e))
	got, err := Current()
	require.NoError(t, err)
	assert.Equal(t, Engine(e), got)

	// Same engine again is a no-op, a different one is refused.
	assert.NoError(t, Initialize(e))
	assert.ErrorIs(t, Initialize(stubEngine{id: 2}), ErrAlreadyInitialized)
}

func TestCommitmentOpenings(t *testing.T) {
	blinding := []byte{0xab, 0xcd}
	hidden := map[int]*big.Int{5: big.NewInt(50), 1: big.NewInt(10), 3: big.NewInt(30)}
	out := CommitmentOpenings(blinding, hidden)
	require.Len(t, out, 4)
	assert.Equal(t, int64(0xabcd), out[0].Int64())
	assert.Equal(t, int64(10), out[1].Int64())
	assert.Equal(t, int64(30), out[2].Int64())
	assert.Equal(t, int64(50), out[3].Int64())
}
