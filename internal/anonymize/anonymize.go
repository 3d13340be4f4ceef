// Package anonymize implements the stateless, deterministic per-column
// value transformer applied during output.
package anonymize

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/halvorsen/subsetdb/internal/schema"
)

// FakeFunc generates a deterministic fake value for method given an
// opaque, already-seeded input. Implementations must be pure: equal
// (method, seededInput) pairs must always return equal values. The
// concrete generator (e.g. gofakeit) is wired in by the caller; this
// package never calls a random source directly.
type FakeFunc func(method string, seededInput []byte) (any, error)

// Anonymizer applies the anonymize(table, column, raw_value) contract
// (spec §4.6) over a fixed run-wide seed string.
type Anonymizer struct {
	seed     []byte
	fake     FakeFunc
	fkColumn func(table, column string) bool
}

// New creates an Anonymizer. fkColumn reports whether a given table.column
// participates in any FK edge (source or target); such columns are always
// passed through unchanged regardless of sensitivity tag, per spec rule 3.
func New(seedString string, fake FakeFunc, fkColumn func(table, column string) bool) *Anonymizer {
	return &Anonymizer{seed: []byte(seedString), fake: fake, fkColumn: fkColumn}
}

// Anonymize transforms one raw column value per the rule priority order in
// spec §4.6: FK passthrough overrides NULL_OUT/FAKE, then NULL_OUT, then
// FAKE(method), then passthrough.
func (a *Anonymizer) Anonymize(table string, col *schema.Column, raw any) (any, error) {
	if a.fkColumn != nil && a.fkColumn(table, col.Name) {
		return raw, nil
	}
	switch col.Tag {
	case schema.SensitivityNullOut:
		return nil, nil
	case schema.SensitivityFake:
		if raw == nil {
			return nil, nil
		}
		seeded := a.seededInput(raw)
		return a.fake(col.FakeMethod, seeded)
	default:
		return raw, nil
	}
}

// seededInput computes hmac(seed_string, raw_value) as the input handed to
// the fake generator, so equal raw values under the same method always
// produce equal output (spec §4.6 determinism) without the generator ever
// seeing the real value.
func (a *Anonymizer) seededInput(raw any) []byte {
	mac := hmac.New(sha256.New, a.seed)
	mac.Write([]byte(formatRaw(raw)))
	sum := mac.Sum(nil)
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum)
	return out
}

func formatRaw(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return stringify(t)
	}
}

func stringify(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
