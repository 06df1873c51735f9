package composite

import (
	"github.com/go-errors/errors"
)

// SetupParam is one shared public parameter: SNARK key material, circuit
// artifacts, encryption generators, accumulator keys. Statements reference
// parameters by index into the proof's parameter array instead of embedding
// the (potentially large) bytes per statement.
type SetupParam struct {
	Kind  string `cbor:"1,keyasint"`
	Bytes []byte `cbor:"2,keyasint"`
}

// Setup parameter kinds. Statements declare which kind they expect at a
// reference, and engines check the kind before using the bytes.
const (
	ParamKindEncryptionKey = "encryption-key"
	ParamKindSnarkKey      = "snark-key"
	ParamKindAccumulator   = "accumulator-params"
	ParamKindR1CS          = "r1cs"
	ParamKindWasm          = "wasm"
)

var (
	// ErrDuplicateParamID is returned when a param id is registered twice.
	ErrDuplicateParamID = errors.New("setup param id already tracked")
	// ErrUnknownParamID is returned when a param id was never registered.
	ErrUnknownParamID = errors.New("setup param id not tracked")
)

// SetupParamsTracker deduplicates setup parameters across the statements of
// one proof. The parameter array is append-only; a side table maps
// caller-chosen ids to indices so the same SNARK key used by ten bound
// checks is stored once and referenced nine more times.
type SetupParamsTracker struct {
	params []SetupParam
	byID   map[string]int
}

// NewSetupParamsTracker returns an empty tracker.
func NewSetupParamsTracker() *SetupParamsTracker {
	return &SetupParamsTracker{byID: make(map[string]int)}
}

// Add appends an anonymous parameter and returns its index.
func (t *SetupParamsTracker) Add(p SetupParam) int {
	t.params = append(t.params, p)
	return len(t.params) - 1
}

// AddForParamID appends a parameter under the given id. Registering an id a
// second time is an error rather than a silent overwrite: parameters are
// referenced by index from already-built statements, so replacement would
// corrupt them.
func (t *SetupParamsTracker) AddForParamID(id string, p SetupParam) (int, error) {
	if _, ok := t.byID[id]; ok {
		return 0, errors.WrapPrefix(ErrDuplicateParamID, id, 0)
	}
	idx := t.Add(p)
	t.byID[id] = idx
	return idx, nil
}

// IndexOf resolves a previously registered id to its index.
func (t *SetupParamsTracker) IndexOf(id string) (int, error) {
	idx, ok := t.byID[id]
	if !ok {
		return 0, errors.WrapPrefix(ErrUnknownParamID, id, 0)
	}
	return idx, nil
}

// IsTracking reports whether the id has been registered.
func (t *SetupParamsTracker) IsTracking(id string) bool {
	_, ok := t.byID[id]
	return ok
}

// Params returns the parameter array in registration order.
func (t *SetupParamsTracker) Params() []SetupParam {
	return t.params
}

// Len returns the number of tracked parameters.
func (t *SetupParamsTracker) Len() int {
	return len(t.params)
}
