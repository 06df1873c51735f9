package plain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkcred/zkcred/composite"
)

func accumulatorRequest(t *testing.T, r *Registry, kind composite.StatementKind, element *big.Int, witness []byte) (*composite.ProofRequest, composite.Witnesses) {
	t.Helper()
	st, err := composite.NewAccumulatorStatement(kind, &composite.AccumulatorStatement{
		Accumulated: r.Value(),
		PublicKey:   r.PublicKey(),
		ParamsRef:   0,
	})
	require.NoError(t, err)
	wit, err := composite.NewAccumulatorWitness(kind, &composite.AccumulatorWitness{
		Element: composite.FieldBytes(element),
		Witness: witness,
	})
	require.NoError(t, err)

	var stmts composite.Statements
	stmts.Add(st)
	var wits composite.Witnesses
	wits.Add(wit)
	return &composite.ProofRequest{
		Statements:  stmts,
		SetupParams: []composite.SetupParam{{Kind: ParamAccumulator, Bytes: r.PublicKey()}},
	}, wits
}

func TestRegistryMembership(t *testing.T) {
	eng := Default()
	r := NewRegistry()
	element := big.NewInt(42)
	r.Add(element)

	witness, err := r.MembershipWitness(element)
	require.NoError(t, err)

	req, wits := accumulatorRequest(t, r, composite.KindAccumulatorMembership, element, witness)
	out, err := eng.GenerateProof(req, wits)
	require.NoError(t, err)
	assert.NoError(t, eng.VerifyProof(out.Proof, req))

	_, err = r.MembershipWitness(big.NewInt(43))
	assert.ErrorContains(t, err, "not a member")
}

func TestRegistryNonMembership(t *testing.T) {
	eng := Default()
	r := NewRegistry()
	r.Add(big.NewInt(1))

	outsider := big.NewInt(99)
	witness, err := r.NonMembershipWitness(outsider)
	require.NoError(t, err)

	req, wits := accumulatorRequest(t, r, composite.KindAccumulatorNonMembership, outsider, witness)
	_, err = eng.GenerateProof(req, wits)
	assert.NoError(t, err)

	_, err = r.NonMembershipWitness(big.NewInt(1))
	assert.ErrorContains(t, err, "is a member")
}

func TestRevocationInvalidatesWitness(t *testing.T) {
	eng := Default()
	r := NewRegistry()
	element := big.NewInt(42)
	other := big.NewInt(43)
	r.Add(element)
	r.Add(other)

	witness, err := r.MembershipWitness(element)
	require.NoError(t, err)

	// Adding more members does not move the accumulator value.
	before := r.Value()
	r.Add(big.NewInt(44))
	assert.Equal(t, before, r.Value())

	// Revoking any member does; the stale witness stops working even for
	// an element that is still a member.
	require.NoError(t, r.Revoke(other))
	assert.NotEqual(t, before, r.Value())

	req, wits := accumulatorRequest(t, r, composite.KindAccumulatorMembership, element, witness)
	_, err = eng.GenerateProof(req, wits)
	assert.ErrorContains(t, err, "different accumulator value")

	// A reissued witness works again.
	fresh, err := r.MembershipWitness(element)
	require.NoError(t, err)
	req, wits = accumulatorRequest(t, r, composite.KindAccumulatorMembership, element, fresh)
	_, err = eng.GenerateProof(req, wits)
	assert.NoError(t, err)

	assert.ErrorContains(t, r.Revoke(big.NewInt(7)), "not a member")
}

func TestForgedWitnessRejected(t *testing.T) {
	eng := Default()
	authority := NewRegistry()
	impostor := NewRegistry()
	element := big.NewInt(42)
	authority.Add(element)
	impostor.Add(element)

	// A witness from a different registry key does not verify against the
	// authority's public key, even over the same element.
	forged, err := impostor.MembershipWitness(element)
	require.NoError(t, err)

	st, err := composite.NewAccumulatorStatement(composite.KindAccumulatorMembership, &composite.AccumulatorStatement{
		Accumulated: impostor.Value(),
		PublicKey:   authority.PublicKey(),
		ParamsRef:   0,
	})
	require.NoError(t, err)
	wit, err := composite.NewAccumulatorWitness(composite.KindAccumulatorMembership, &composite.AccumulatorWitness{
		Element: composite.FieldBytes(element),
		Witness: forged,
	})
	require.NoError(t, err)

	var stmts composite.Statements
	stmts.Add(st)
	var wits composite.Witnesses
	wits.Add(wit)
	req := &composite.ProofRequest{
		Statements:  stmts,
		SetupParams: []composite.SetupParam{{Kind: ParamAccumulator, Bytes: authority.PublicKey()}},
	}
	_, err = eng.GenerateProof(req, wits)
	assert.ErrorContains(t, err, "witness does not verify")
}
