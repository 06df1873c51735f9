package plain

import (
	"bytes"
	"crypto/rand"
	"math/big"

	"github.com/go-errors/errors"
	"golang.org/x/crypto/nacl/box"

	"github.com/zkcred/zkcred/cbor"
	"github.com/zkcred/zkcred/composite"
)

// Chunk bit sizes the encryption statement accepts, matching the chunked
// encryption of the real scheme this stands in for.
const (
	ChunkBits8  = 8
	ChunkBits16 = 16
)

// GenerateEncryptionKeypair creates a decryptor keypair for verifiable
// encryption. The public key goes into the presentation's setup parameters;
// the private key stays with the designated third party.
func GenerateEncryptionKeypair() (publicKey, privateKey []byte, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pub[:], priv[:], nil
}

// ciphertextWire carries the sealed chunks plus the chunking the decryptor
// needs to reassemble the message.
type ciphertextWire struct {
	ChunkBitSize int    `cbor:"1,keyasint"`
	Sealed       []byte `cbor:"2,keyasint"`
}

func checkEncryption(req *composite.ProofRequest, st *composite.Statement, wit *composite.Witness) (*checked, []byte, error) {
	var s composite.VerifiableEncryptionStatement
	if err := cbor.Unmarshal(st.Body, &s); err != nil {
		return nil, nil, err
	}
	var w composite.EncryptionWitness
	if err := cbor.Unmarshal(wit.Body, &w); err != nil {
		return nil, nil, err
	}
	if s.ChunkBitSize != ChunkBits8 && s.ChunkBitSize != ChunkBits16 {
		return nil, nil, errors.Errorf("unsupported chunk bit size %d", s.ChunkBitSize)
	}
	if err := paramRef(req, s.ParamsRef, ParamEncryptionKey); err != nil {
		return nil, nil, err
	}
	keyBytes := req.SetupParams[s.ParamsRef].Bytes
	if len(keyBytes) != 32 {
		return nil, nil, errors.New("malformed encryption public key")
	}

	// Pad the message bytes to whole chunks before sealing; the decryptor
	// strips the length prefix after opening.
	plaintext, err := cbor.Marshal(w.Message)
	if err != nil {
		return nil, nil, err
	}
	chunkBytes := s.ChunkBitSize / 8
	if rem := len(plaintext) % chunkBytes; rem != 0 {
		plaintext = append(plaintext, make([]byte, chunkBytes-rem)...)
	}

	var pub [32]byte
	copy(pub[:], keyBytes)
	sealed, err := box.SealAnonymous(nil, plaintext, &pub, rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	ct, err := cbor.Marshal(&ciphertextWire{ChunkBitSize: s.ChunkBitSize, Sealed: sealed})
	if err != nil {
		return nil, nil, err
	}

	message := composite.FieldFromBytes(w.Message)
	return &checked{resolve: singleValue(message)}, ct, nil
}

// Decrypt opens a ciphertext produced during proof generation and returns
// the encoded attribute element. Decoding the element back to its attribute
// value is the schema's job (the attribute must have been of the reversible
// kind).
func Decrypt(ciphertext, publicKey, privateKey []byte) (*big.Int, error) {
	var wire ciphertextWire
	if err := cbor.Unmarshal(ciphertext, &wire); err != nil {
		return nil, errors.WrapPrefix(err, "malformed ciphertext", 0)
	}
	if len(publicKey) != 32 || len(privateKey) != 32 {
		return nil, errors.New("malformed decryption keypair")
	}
	var pub, priv [32]byte
	copy(pub[:], publicKey)
	copy(priv[:], privateKey)
	opened, ok := box.OpenAnonymous(nil, wire.Sealed, &pub, &priv)
	if !ok {
		return nil, errors.New("ciphertext does not open")
	}
	// The plaintext may carry chunk padding after the encoded value, so
	// decode a single value instead of requiring exact consumption.
	var message []byte
	if err := cbor.NewDecoder(bytes.NewReader(opened)).Decode(&message); err != nil {
		return nil, errors.WrapPrefix(err, "malformed plaintext", 0)
	}
	return composite.FieldFromBytes(message), nil
}
