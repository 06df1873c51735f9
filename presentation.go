package zkcred

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/go-errors/errors"
	"github.com/mr-tron/base58"

	"github.com/zkcred/zkcred/engine"
)

// Presentation is a verifiable presentation: the public specification of
// what is proven, the composite proof over it, and any ciphertexts produced
// for verifiable encryptions. Context and nonce are bound into the proof
// transcript; a verifier supplies the same values or verification fails.
type Presentation struct {
	Version string
	Spec    *PresentationSpecification
	Proof   []byte

	// Ciphertexts is keyed by CiphertextKey(credential, attribute).
	Ciphertexts map[string][]byte

	Context []byte
	Nonce   []byte
}

// CiphertextKey names the ciphertext of one verifiably encrypted attribute.
func CiphertextKey(credential int, attribute string) string {
	return strconv.Itoa(credential) + ":" + attribute
}

// Verify checks the presentation against the supplied key material. It
// reassembles the exact statement collections the holder must have proven
// against; any mismatch between proof and specification surfaces as an
// unverified result. Structural faults (unknown attributes, missing
// parameters, malformed fields) are returned as errors instead.
func (p *Presentation) Verify(params *PresentationParams) (VerifyResult, error) {
	eng, err := engine.Current()
	if err != nil {
		return VerifyResult{}, err
	}
	if p.Version != CryptoVersion {
		return VerifyResult{}, errors.Errorf("unsupported presentation version %q", p.Version)
	}
	req, _, _, err := assemble(p.Spec, params, p.Context, p.Nonce, nil)
	if err != nil {
		return VerifyResult{}, err
	}
	if err := eng.VerifyProof(p.Proof, req); err != nil {
		if errors.Is(err, engine.ErrProofInvalid) {
			Logger.Debugf("zkcred: presentation rejected: %v", err)
			return VerifyResult{Err: err.Error()}, nil
		}
		return VerifyResult{}, err
	}
	return VerifyResult{Verified: true}, nil
}

// presentationJSON is the transport form; binary fields travel as base58.
type presentationJSON struct {
	Version     string                     `json:"version"`
	Spec        *PresentationSpecification `json:"spec"`
	Proof       string                     `json:"proof"`
	Ciphertexts map[string]string          `json:"ciphertexts,omitempty"`
	Context     string                     `json:"context,omitempty"`
	Nonce       string                     `json:"nonce,omitempty"`
}

func (p *Presentation) MarshalJSON() ([]byte, error) {
	out := &presentationJSON{
		Version: p.Version,
		Spec:    p.Spec,
		Proof:   base58.Encode(p.Proof),
	}
	if len(p.Ciphertexts) > 0 {
		out.Ciphertexts = make(map[string]string, len(p.Ciphertexts))
		for key, ct := range p.Ciphertexts {
			out.Ciphertexts[key] = base58.Encode(ct)
		}
	}
	if len(p.Context) > 0 {
		out.Context = base58.Encode(p.Context)
	}
	if len(p.Nonce) > 0 {
		out.Nonce = base58.Encode(p.Nonce)
	}
	return json.Marshal(out)
}

// PresentationFromJSON parses the transport form produced by MarshalJSON.
// Numbers inside revealed documents are kept as json.Number so decimal
// attributes re-encode exactly.
func PresentationFromJSON(bts []byte) (*Presentation, error) {
	dec := json.NewDecoder(bytes.NewReader(bts))
	dec.UseNumber()
	var in presentationJSON
	if err := dec.Decode(&in); err != nil {
		return nil, err
	}
	if in.Spec == nil {
		return nil, errors.New("presentation missing spec")
	}
	p := &Presentation{Version: in.Version, Spec: in.Spec}
	var err error
	if p.Proof, err = decodeBase58Field("proof", in.Proof); err != nil {
		return nil, err
	}
	if len(in.Ciphertexts) > 0 {
		p.Ciphertexts = make(map[string][]byte, len(in.Ciphertexts))
		for key, ct := range in.Ciphertexts {
			if p.Ciphertexts[key], err = decodeBase58Field("ciphertext "+key, ct); err != nil {
				return nil, err
			}
		}
	}
	if in.Context != "" {
		if p.Context, err = decodeBase58Field("context", in.Context); err != nil {
			return nil, err
		}
	}
	if in.Nonce != "" {
		if p.Nonce, err = decodeBase58Field("nonce", in.Nonce); err != nil {
			return nil, err
		}
	}
	return p, nil
}
