package schema

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, n *Node, value interface{}) *big.Int {
	t.Helper()
	enc, err := n.Encoder()
	require.NoError(t, err)
	el, err := enc(value)
	require.NoError(t, err)
	return el
}

func TestStringEncoding(t *testing.T) {
	n := &Node{Type: TypeString}
	a := encode(t, n, "Alice")
	b := encode(t, n, "Alice")
	c := encode(t, n, "Bob")
	assert.Zero(t, a.Cmp(b))
	assert.NotZero(t, a.Cmp(c))
	assert.Positive(t, a.Sign())

	enc, err := n.Encoder()
	require.NoError(t, err)
	_, err = enc(42)
	assert.Error(t, err)
}

func TestReversibleStringRoundtrip(t *testing.T) {
	n := &Node{Type: TypeReversibleString}
	for _, s := range []string{"", "a", "alice@example.com", "\x00leading zero"} {
		el := encode(t, n, s)
		out, err := DecodeReversible(el)
		require.NoError(t, err)
		assert.Equal(t, s, out)
	}

	enc, err := n.Encoder()
	require.NoError(t, err)
	long := make([]byte, DefaultMaxReversibleLength+1)
	_, err = enc(string(long))
	assert.ErrorContains(t, err, "exceeds reversible limit")

	_, err = DecodeReversible(encode(t, &Node{Type: TypePositiveInteger}, 7))
	assert.Error(t, err)
}

func TestPositiveIntegerEncoding(t *testing.T) {
	n := &Node{Type: TypePositiveInteger}
	assert.Equal(t, int64(25), encode(t, n, 25).Int64())
	assert.Equal(t, int64(25), encode(t, n, "25").Int64())
	assert.Equal(t, int64(25), encode(t, n, json.Number("25")).Int64())

	enc, err := n.Encoder()
	require.NoError(t, err)
	_, err = enc("-1")
	assert.ErrorContains(t, err, "below the declared minimum")
	_, err = enc("2.5")
	assert.ErrorContains(t, err, "decimal places")
}

func TestIntegerEncodingShifts(t *testing.T) {
	n := &Node{Type: TypeInteger, Minimum: json.Number("-100")}
	assert.Equal(t, int64(10), encode(t, n, "-90").Int64())
	assert.Equal(t, int64(0), encode(t, n, "-100").Int64())
	assert.Equal(t, int64(200), encode(t, n, 100).Int64())

	enc, err := n.Encoder()
	require.NoError(t, err)
	_, err = enc("-101")
	assert.ErrorContains(t, err, "below the declared minimum")
}

func TestDecimalEncodingShiftsAndScales(t *testing.T) {
	n := &Node{Type: TypeDecimal, Minimum: json.Number("-300"), DecimalPlaces: 3}
	// (-90.45 + 300) * 10^3
	assert.Equal(t, int64(209550), encode(t, n, "-90.45").Int64())
	assert.Equal(t, int64(209550), encode(t, n, json.Number("-90.45")).Int64())
	assert.Equal(t, int64(209550), encode(t, n, -90.45).Int64())
	assert.Equal(t, int64(0), encode(t, n, "-300").Int64())
	assert.Equal(t, int64(300000), encode(t, n, "0.000").Int64())

	enc, err := n.Encoder()
	require.NoError(t, err)
	_, err = enc("1.0005")
	assert.ErrorContains(t, err, "more than 3 decimal places")
	_, err = enc("-300.001")
	assert.ErrorContains(t, err, "below the declared minimum")
	_, err = enc("abc")
	assert.Error(t, err)
}

func TestDecodeInvertsNumericEncoding(t *testing.T) {
	n := &Node{Type: TypeDecimal, Minimum: json.Number("-300"), DecimalPlaces: 3}
	el := encode(t, n, "-90.45")
	value, err := n.Decode(el)
	require.NoError(t, err)
	assert.Equal(t, "-90.450", value)
	assert.Equal(t, el, encode(t, n, value))

	pi := &Node{Type: TypePositiveInteger}
	value, err = pi.Decode(encode(t, pi, 25))
	require.NoError(t, err)
	assert.Equal(t, "25", value)

	_, err = (&Node{Type: TypeString}).Decode(big.NewInt(1))
	assert.ErrorContains(t, err, "does not decode")
}

func TestTransformBound(t *testing.T) {
	n := &Node{Type: TypeDecimal, Minimum: json.Number("-300"), DecimalPlaces: 3}
	tmin, tmax, err := n.TransformBound(json.Number("-100"), json.Number("100.0005"))
	require.NoError(t, err)
	assert.Equal(t, int64(200000), tmin.Int64())
	assert.Equal(t, int64(400001), tmax.Int64())

	// Exact boundaries stay exact.
	tmin, tmax, err = n.TransformBound("-100", "100")
	require.NoError(t, err)
	assert.Equal(t, int64(200000), tmin.Int64())
	assert.Equal(t, int64(400000), tmax.Int64())

	pi := &Node{Type: TypePositiveInteger}
	tmin, tmax, err = pi.TransformBound(18, 65)
	require.NoError(t, err)
	assert.Equal(t, int64(18), tmin.Int64())
	assert.Equal(t, int64(65), tmax.Int64())
}

func TestTransformBoundRejects(t *testing.T) {
	n := &Node{Type: TypeDecimal, Minimum: json.Number("-300"), DecimalPlaces: 3}

	_, _, err := n.TransformBound("5", "5")
	assert.ErrorContains(t, err, "strictly below")

	_, _, err = n.TransformBound("10", "5")
	assert.ErrorContains(t, err, "strictly below")

	_, _, err = n.TransformBound("-400", "5")
	assert.ErrorContains(t, err, "below the schema minimum")

	// Fractional bounds inside one encoded step collapse to an empty range.
	_, _, err = n.TransformBound("0.00001", "0.00002")
	assert.ErrorContains(t, err, "empty after domain transform")

	_, _, err = (&Node{Type: TypeString}).TransformBound(1, 2)
	assert.ErrorContains(t, err, "bounds not supported")
}
