package plain

import (
	"math/big"

	"github.com/go-errors/errors"

	"github.com/zkcred/zkcred/composite"
)

// Built-in circuit ids the plain engine evaluates directly. A production
// engine runs the referenced R1CS/WASM artifacts; here a small set of
// predicates common in credential checks is wired in so circuit statements
// are enforced rather than waved through.
const (
	// CircuitNotEqualsPublic: private[0] != public "value".
	CircuitNotEqualsPublic = "not_equals_public"
	// CircuitLessThanPublic: private[0] < public "max".
	CircuitLessThanPublic = "less_than_public"
	// CircuitAllDifferent: all private inputs pairwise distinct.
	CircuitAllDifferent = "all_different"
)

func evalCircuit(id string, private []*big.Int, public map[string][]byte) error {
	switch id {
	case CircuitNotEqualsPublic:
		if len(private) != 1 {
			return errors.Errorf("%s takes one private input", id)
		}
		v, err := publicInput(public, "value")
		if err != nil {
			return err
		}
		if private[0].Cmp(v) == 0 {
			return errors.New("circuit not satisfied: values are equal")
		}
	case CircuitLessThanPublic:
		if len(private) != 1 {
			return errors.Errorf("%s takes one private input", id)
		}
		max, err := publicInput(public, "max")
		if err != nil {
			return err
		}
		if private[0].Cmp(max) >= 0 {
			return errors.New("circuit not satisfied: value not below max")
		}
	case CircuitAllDifferent:
		for i := range private {
			for j := i + 1; j < len(private); j++ {
				if private[i].Cmp(private[j]) == 0 {
					return errors.New("circuit not satisfied: duplicate values")
				}
			}
		}
	default:
		// Unknown circuits pass structural checks only; the statement still
		// binds the artifacts and public inputs into the proof.
	}
	return nil
}

func publicInput(public map[string][]byte, name string) (*big.Int, error) {
	bts, ok := public[name]
	if !ok {
		return nil, errors.Errorf("missing public input %q", name)
	}
	return composite.FieldFromBytes(bts), nil
}
