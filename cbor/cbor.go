// Package cbor wraps github.com/fxamacker/cbor with the encoding and decoding
// options this module relies on for reproducible bytes.
//
// Everything that is signed, hashed into a proof transcript, or rebuilt
// independently by a prover and a verifier goes through this package, so the
// encoder is pinned to Core Deterministic Encoding (RFC 8949 §4.2.1): one Go
// value, one byte sequence, on every platform. The decoder rejects duplicate
// map keys and indefinite lengths so hostile input cannot smuggle two
// readings of the same document past a signature check.
package cbor

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Decoding limits; statements and witnesses are small, so these are generous.
const (
	MaxArrayElements = 1024 * 64
	MaxMapPairs      = 1024 * 64
)

var (
	encOptions = cbor.EncOptions{
		InfConvert:    cbor.InfConvertFloat16,
		IndefLength:   cbor.IndefLengthForbidden,
		NaNConvert:    cbor.NaNConvert7e00,
		ShortestFloat: cbor.ShortestFloat16,
		Sort:          cbor.SortCoreDeterministic,
		TagsMd:        cbor.TagsForbidden,
	}

	decOptions = cbor.DecOptions{
		IndefLength:      cbor.IndefLengthForbidden,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: MaxArrayElements,
		MaxMapPairs:      MaxMapPairs,
		TagsMd:           cbor.TagsForbidden,
		TimeTag:          cbor.DecTagIgnored,

		// Unknown fields are allowed for forward compatibility.
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}

	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = encOptions.EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = decOptions.DecMode(); err != nil {
		panic(err)
	}
}

// Marshal encodes src deterministically.
func Marshal(src interface{}) ([]byte, error) {
	return encMode.Marshal(src)
}

// Unmarshal decodes CBOR in data into dst.
func Unmarshal(data []byte, dst interface{}) error {
	return decMode.Unmarshal(data, dst)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
