package composite

import (
	"math/big"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementsKeepOrder(t *testing.T) {
	var stmts Statements
	a, err := NewPoKSignatureStatement(&PoKSignatureStatement{Scheme: "bbs", MessageCount: 3})
	require.NoError(t, err)
	b, err := NewBoundCheckStatement(&BoundCheckStatement{Min: []byte{1}, Max: []byte{2}, ParamsRef: 0})
	require.NoError(t, err)

	assert.Equal(t, 0, stmts.Add(a))
	assert.Equal(t, 1, stmts.Add(b))
	assert.Equal(t, KindPoKSignature, stmts[0].Kind)
	assert.Equal(t, KindBoundCheck, stmts[1].Kind)
}

func TestWitnessEqualitySortsAndDedups(t *testing.T) {
	ms := NewWitnessEquality(
		WitnessRef{Statement: 2, Witness: 1},
		WitnessRef{Statement: 0, Witness: 4},
		WitnessRef{Statement: 2, Witness: 0},
		WitnessRef{Statement: 0, Witness: 4},
	)
	assert.Equal(t, []WitnessRef{
		{Statement: 0, Witness: 4},
		{Statement: 2, Witness: 0},
		{Statement: 2, Witness: 1},
	}, ms.WitnessEquality)
}

func TestSetupParamsTracker(t *testing.T) {
	tr := NewSetupParamsTracker()

	anon := tr.Add(SetupParam{Kind: ParamKindSnarkKey, Bytes: []byte("legosnark")})
	assert.Equal(t, 0, anon)

	idx, err := tr.AddForParamID("ek-1", SetupParam{Kind: ParamKindEncryptionKey, Bytes: []byte("saver")})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.True(t, tr.IsTracking("ek-1"))
	assert.False(t, tr.IsTracking("ek-2"))

	again, err := tr.IndexOf("ek-1")
	require.NoError(t, err)
	assert.Equal(t, idx, again)

	_, err = tr.AddForParamID("ek-1", SetupParam{Kind: ParamKindEncryptionKey})
	assert.True(t, errors.Is(err, ErrDuplicateParamID))

	_, err = tr.IndexOf("ek-2")
	assert.True(t, errors.Is(err, ErrUnknownParamID))

	assert.Equal(t, 2, tr.Len())
	params := tr.Params()
	require.Len(t, params, 2)
	assert.Equal(t, ParamKindSnarkKey, params[0].Kind)
	assert.Equal(t, ParamKindEncryptionKey, params[1].Kind)
}

func TestRequestCanonicalDeterministic(t *testing.T) {
	build := func(nonce []byte) *ProofRequest {
		var stmts Statements
		st, err := NewPoKSignatureStatement(&PoKSignatureStatement{
			Scheme:       "bbs",
			PublicKey:    []byte{1, 2, 3},
			MessageCount: 2,
			Revealed:     map[int][]byte{0: {9}},
		})
		require.NoError(t, err)
		stmts.Add(st)
		var meta MetaStatements
		meta.Add(NewWitnessEquality(WitnessRef{0, 0}, WitnessRef{0, 1}))
		return &ProofRequest{Statements: stmts, MetaStatements: meta, Nonce: nonce}
	}

	first, err := build([]byte("n")).Canonical()
	require.NoError(t, err)
	second, err := build([]byte("n")).Canonical()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := build([]byte("m")).Canonical()
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestFieldBytesRoundtrip(t *testing.T) {
	v := new(big.Int).Lsh(big.NewInt(0x1234), 120)
	assert.Zero(t, v.Cmp(FieldFromBytes(FieldBytes(v))))

	m := FieldMap(map[int]*big.Int{3: big.NewInt(7), 5: big.NewInt(0)})
	assert.Equal(t, []byte{7}, m[3])
	assert.Empty(t, m[5])
}
