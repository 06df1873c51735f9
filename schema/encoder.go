package schema

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/go-errors/errors"

	"github.com/zkcred/zkcred/internal/common"
)

// Encoder converts a native attribute value into a positive field element.
// Encoders are pure: the same logical value yields the same element on every
// machine, which is what keeps issuer, prover and verifier in agreement.
type Encoder func(value interface{}) (*big.Int, error)

// reversiblePrefix guards the byte-preserving encoding against losing empty
// strings and leading zero bytes when the element is converted back to bytes.
const reversiblePrefix = 0x01

// Encoder returns the encoding function declared by the leaf's type.
func (n *Node) Encoder() (Encoder, error) {
	switch n.Type {
	case TypeString:
		return encodeString, nil
	case TypeReversibleString:
		maxLen := n.MaxLength
		if maxLen == 0 {
			maxLen = DefaultMaxReversibleLength
		}
		return func(value interface{}) (*big.Int, error) {
			return encodeReversibleString(value, maxLen)
		}, nil
	case TypePositiveInteger:
		return func(value interface{}) (*big.Int, error) {
			return encodeNumeric(value, zero, 0)
		}, nil
	case TypeInteger:
		min, err := parseFixedValue(n.Minimum)
		if err != nil {
			return nil, errors.WrapPrefix(err, "bad minimum", 0)
		}
		return func(value interface{}) (*big.Int, error) {
			return encodeNumeric(value, min, 0)
		}, nil
	case TypePositiveDecimal:
		places := n.DecimalPlaces
		return func(value interface{}) (*big.Int, error) {
			return encodeNumeric(value, zero, places)
		}, nil
	case TypeDecimal:
		min, err := parseFixedValue(n.Minimum)
		if err != nil {
			return nil, errors.WrapPrefix(err, "bad minimum", 0)
		}
		places := n.DecimalPlaces
		return func(value interface{}) (*big.Int, error) {
			return encodeNumeric(value, min, places)
		}, nil
	default:
		return nil, errors.Errorf("no encoder for type %q", n.Type)
	}
}

// Reversible reports whether the leaf's encoding can be decoded back to the
// original value. Verifiable encryption is only meaningful on such leaves.
func (n *Node) Reversible() bool {
	return n.Type == TypeReversibleString
}

func encodeString(value interface{}) (*big.Int, error) {
	s, ok := value.(string)
	if !ok {
		return nil, errors.Errorf("expected string, got %T", value)
	}
	return common.IntHash([]byte(s)), nil
}

func encodeReversibleString(value interface{}, maxLen int) (*big.Int, error) {
	s, ok := value.(string)
	if !ok {
		return nil, errors.Errorf("expected string, got %T", value)
	}
	if len(s) > maxLen {
		return nil, errors.Errorf("string of %d bytes exceeds reversible limit %d", len(s), maxLen)
	}
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, reversiblePrefix)
	buf = append(buf, s...)
	return new(big.Int).SetBytes(buf), nil
}

// DecodeReversible inverts the reversible-string encoding exactly.
func DecodeReversible(element *big.Int) (string, error) {
	if element.Sign() <= 0 {
		return "", errors.New("not a reversible-string element")
	}
	buf := element.Bytes()
	if buf[0] != reversiblePrefix {
		return "", errors.New("not a reversible-string element")
	}
	return string(buf[1:]), nil
}

// Decode inverts the leaf's encoding. Reversible strings come back exactly;
// numeric elements map back to the decimal string of the original value.
// Hashed strings cannot be decoded.
func (n *Node) Decode(element *big.Int) (interface{}, error) {
	switch n.Type {
	case TypeReversibleString:
		return DecodeReversible(element)
	case TypePositiveInteger:
		return element.String(), nil
	case TypeInteger, TypePositiveDecimal, TypeDecimal:
		minimum, err := parseFixedValue(n.Minimum)
		if err != nil {
			return nil, err
		}
		shifted := &fixed{num: new(big.Int).Set(element), scale: n.DecimalPlaces}
		return shifted.sub(minimum.neg()).String(), nil
	default:
		return nil, errors.Errorf("type %q does not decode", n.Type)
	}
}

// encodeNumeric implements the shift-and-scale pipeline shared by all four
// numeric types: element = (value - minimum) * 10^places. The subtraction and
// scaling happen on exact decimal fixed-point values; input carrying more
// precision than the declared places is rejected rather than rounded.
func encodeNumeric(value interface{}, minimum *fixed, places int) (*big.Int, error) {
	v, err := parseFixed(value)
	if err != nil {
		return nil, err
	}
	shifted := v.sub(minimum)
	el, exact := shifted.rescale(places)
	if !exact {
		return nil, errors.Errorf("value %v has more than %d decimal places", value, places)
	}
	if el.Sign() < 0 {
		return nil, errors.Errorf("value %v is below the declared minimum", value)
	}
	return el, nil
}

// TransformBound maps a caller-declared half-open bound [min, max) on the
// original value domain into the encoded domain of this leaf. A fractional
// boundary is rounded up on both ends: encoded values are integers, so for
// any fractional b, e >= b iff e >= ceil(b) and e < b iff e < ceil(b). The
// mapping is therefore exact, never widening or narrowing the proven range.
// For example with minimum -300 and 3 places, [min, max) = [-100, 100.0005)
// becomes [200000, 400001).
func (n *Node) TransformBound(min, max interface{}) (tmin, tmax *big.Int, err error) {
	var minimum *fixed
	var places int
	switch n.Type {
	case TypePositiveInteger:
		minimum = zero
	case TypeInteger:
		if minimum, err = parseFixedValue(n.Minimum); err != nil {
			return nil, nil, err
		}
	case TypePositiveDecimal:
		minimum, places = zero, n.DecimalPlaces
	case TypeDecimal:
		if minimum, err = parseFixedValue(n.Minimum); err != nil {
			return nil, nil, err
		}
		places = n.DecimalPlaces
	default:
		return nil, nil, errors.Errorf("bounds not supported on type %q", n.Type)
	}

	lo, err := parseFixed(min)
	if err != nil {
		return nil, nil, errors.WrapPrefix(err, "bad lower bound", 0)
	}
	hi, err := parseFixed(max)
	if err != nil {
		return nil, nil, errors.WrapPrefix(err, "bad upper bound", 0)
	}
	if lo.cmp(hi) >= 0 {
		return nil, nil, errors.New("bound min must be strictly below max")
	}

	tmin = lo.sub(minimum).rescaleCeil(places)
	tmax = hi.sub(minimum).rescaleCeil(places)
	if tmin.Sign() < 0 {
		return nil, nil, errors.New("bound min is below the schema minimum")
	}
	if tmin.Cmp(tmax) >= 0 {
		return nil, nil, errors.New("bound is empty after domain transform")
	}
	return tmin, tmax, nil
}

// fixed is an exact decimal fixed-point number: num / 10^scale.
type fixed struct {
	num   *big.Int
	scale int
}

var (
	zero   = &fixed{num: big.NewInt(0)}
	bigTen = big.NewInt(10)
)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(n)), nil)
}

// align returns both operands at a common scale.
func align(a, b *fixed) (x, y *big.Int, scale int) {
	scale = a.scale
	if b.scale > scale {
		scale = b.scale
	}
	x = new(big.Int).Mul(a.num, pow10(scale-a.scale))
	y = new(big.Int).Mul(b.num, pow10(scale-b.scale))
	return x, y, scale
}

func (f *fixed) sub(other *fixed) *fixed {
	x, y, scale := align(f, other)
	return &fixed{num: x.Sub(x, y), scale: scale}
}

func (f *fixed) cmp(other *fixed) int {
	x, y, _ := align(f, other)
	return x.Cmp(y)
}

func (f *fixed) neg() *fixed {
	return &fixed{num: new(big.Int).Neg(f.num), scale: f.scale}
}

// String renders the exact decimal form at the stored scale.
func (f *fixed) String() string {
	abs := new(big.Int).Abs(f.num).String()
	if f.scale > 0 {
		for len(abs) <= f.scale {
			abs = "0" + abs
		}
		abs = abs[:len(abs)-f.scale] + "." + abs[len(abs)-f.scale:]
	}
	if f.num.Sign() < 0 {
		return "-" + abs
	}
	return abs
}

// rescale returns the value as an integer at the target scale and whether the
// conversion was exact.
func (f *fixed) rescale(places int) (*big.Int, bool) {
	if f.scale <= places {
		return new(big.Int).Mul(f.num, pow10(places-f.scale)), true
	}
	q, r := new(big.Int).QuoRem(f.num, pow10(f.scale-places), new(big.Int))
	if r.Sign() != 0 {
		return nil, false
	}
	return q, true
}

// rescaleCeil returns the smallest integer at the target scale that is >= the
// value.
func (f *fixed) rescaleCeil(places int) *big.Int {
	if out, exact := f.rescale(places); exact {
		return out
	}
	div := pow10(f.scale - places)
	q, r := new(big.Int).QuoRem(f.num, div, new(big.Int))
	// Quo truncates toward zero; bump only when the remainder is positive.
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// parseFixed converts the value forms accepted for numeric attributes.
// Decimal strings are the recommended input: they carry exact precision and
// never pass through a float. float64 input is converted through its
// shortest decimal representation, which is deterministic across platforms.
func parseFixed(value interface{}) (*fixed, error) {
	switch v := value.(type) {
	case string:
		return parseDecimalString(v)
	case json.Number:
		return parseDecimalString(v.String())
	case int:
		return &fixed{num: big.NewInt(int64(v))}, nil
	case int32:
		return &fixed{num: big.NewInt(int64(v))}, nil
	case int64:
		return &fixed{num: big.NewInt(v)}, nil
	case uint64:
		return &fixed{num: new(big.Int).SetUint64(v)}, nil
	case *big.Int:
		return &fixed{num: new(big.Int).Set(v)}, nil
	case float64:
		return parseDecimalString(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return nil, errors.Errorf("unsupported numeric value of type %T", value)
	}
}

func parseFixedValue(num json.Number) (*fixed, error) {
	if num == "" {
		return zero, nil
	}
	return parseDecimalString(num.String())
}

func parseDecimalString(s string) (*fixed, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty numeric value")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return nil, errors.New("malformed numeric value")
	}
	digits := intPart + fracPart
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, errors.Errorf("malformed numeric value %q", s)
		}
	}
	num, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, errors.Errorf("malformed numeric value %q", s)
	}
	if neg {
		num.Neg(num)
	}
	return &fixed{num: num, scale: len(fracPart)}, nil
}
