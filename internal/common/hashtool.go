package common

import (
	"math/big"

	"github.com/go-errors/errors"
	mh "github.com/multiformats/go-multihash"
)

// blake2b-256 in multihash numbering.
const multihashCode = mh.BLAKE2B_MIN + 31

// Multihash computes the blake2b-256 multihash of input. The returned bytes
// carry the multihash prefix, so the digest is self-describing and the hash
// function can be rotated without ambiguity between old and new transcripts.
func Multihash(input []byte) []byte {
	sum, err := mh.Sum(input, multihashCode, -1)
	if err != nil {
		panic(err) // only fails for unknown codes
	}
	return []byte(sum)
}

// IntHash hashes input and returns the raw digest as a positive big integer.
// Used for the lossy attribute-string encoding; the multihash prefix is
// stripped so the result fits a fixed 32 bytes.
func IntHash(input []byte) *big.Int {
	sum := Multihash(input)
	decoded, err := mh.Decode(sum)
	if err != nil {
		panic(err)
	}
	return new(big.Int).SetBytes(decoded.Digest)
}

// VerifyMultihash checks that digest is a well-formed multihash of the
// expected code and recomputes it over input.
func VerifyMultihash(digest, input []byte) error {
	decoded, err := mh.Decode(digest)
	if err != nil {
		return errors.WrapPrefix(err, "malformed digest", 0)
	}
	if decoded.Code != multihashCode {
		return errors.Errorf("unexpected multihash code %d", decoded.Code)
	}
	expected := Multihash(input)
	if string(expected) != string(digest) {
		return errors.New("digest mismatch")
	}
	return nil
}
