package zkcred

import (
	"math/big"

	"github.com/zkcred/zkcred/engine"
)

// SignatureScheme tags the signature scheme a credential is issued under.
// The module is generic over schemes: builders and verifiers carry the tag
// through to the engine, which owns the actual dispatch to the primitives.
type SignatureScheme string

const (
	SchemeBBS     SignatureScheme = "bbs"
	SchemeBBSPlus SignatureScheme = "bbs+"
	SchemePS      SignatureScheme = "ps"
	SchemeBDDT16  SignatureScheme = "bddt16-mac"
)

// GenerateKeypair creates an issuer keypair for the scheme using the
// process-wide engine.
func GenerateKeypair(scheme SignatureScheme) (secretKey, publicKey []byte, err error) {
	eng, err := engine.Current()
	if err != nil {
		return nil, nil, err
	}
	return eng.KeyGen(string(scheme))
}

func (s SignatureScheme) sign(eng engine.Engine, secretKey []byte, params engine.SignatureParams, messages []*big.Int) ([]byte, error) {
	return eng.Sign(string(s), secretKey, params, messages)
}

func (s SignatureScheme) verify(eng engine.Engine, publicKey []byte, params engine.SignatureParams, messages []*big.Int, signature []byte) error {
	return eng.Verify(string(s), publicKey, params, messages, signature)
}
