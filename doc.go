// Package zkcred implements anonymous credentials with composite
// zero-knowledge presentations: an issuer signs a schema-governed set of
// attributes, and the holder later proves possession of one or more such
// credentials while selectively revealing attributes, proving equalities
// across credentials, proving numeric bounds, proving non-revocation against
// an accumulator, verifiably encrypting attributes for a third party, and
// deriving verifier-scoped pseudonyms, all without revealing the signatures
// or the hidden attributes.
//
// The cryptographic heavy lifting is delegated to an engine (see the engine
// package); this package owns the protocol: schema-driven attribute
// encoding, credential assembly and signing, and the presentation builder
// and verifier that must reconstruct bit-identical statement collections on
// both sides. See the package tests for end-to-end usage.
package zkcred
