package snomedstore

import (
	"fmt"
	"strconv"

	"github.com/wardle/go-terminology/verhoeff"
)

// Identifier is a checksummed (Verhoeff) SNOMED CT identifier (SCTID).
// SCTIDs are 64-bit and unsigned; we keep them as uint64 throughout so no
// implicit narrowing occurs in JSON or SQL bindings, per the "BigInt
// concept ids" design note.
type Identifier uint64

// ParseIdentifier parses s as a decimal SCTID without checking its check
// digit.
func ParseIdentifier(s string) (Identifier, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("snomedstore: invalid identifier %q: %w", s, err)
	}
	return Identifier(id), nil
}

// ParseAndValidate parses s as a decimal SCTID and validates its trailing
// Verhoeff check digit, so a corrupt identifier fails fast before a
// fruitless binary search.
func ParseAndValidate(s string) (Identifier, error) {
	id, err := ParseIdentifier(s)
	if err != nil {
		return 0, err
	}
	if !id.IsValid() {
		return 0, fmt.Errorf("snomedstore: %q fails Verhoeff check digit validation", s)
	}
	return id, nil
}

// String renders the identifier in decimal.
func (id Identifier) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// IsValid reports whether the identifier's trailing digit is a correct
// Verhoeff check digit for the preceding digits.
func (id Identifier) IsValid() bool {
	return verhoeff.ValidateString(id.String())
}

// partitionIdentifier returns the two-digit partition identifier: the
// penultimate pair of digits, `xxxxxxxppc`, identifying component kind (p)
// and namespace scheme (c).
func (id Identifier) partitionIdentifier() string {
	s := id.String()
	l := len(s)
	if l < 3 {
		return ""
	}
	return s[l-3 : l-1]
}

// IsConcept reports whether this identifier's partition marks a concept.
func (id Identifier) IsConcept() bool {
	p := id.partitionIdentifier()
	return p == "00" || p == "10"
}

// IsDescription reports whether this identifier's partition marks a
// description.
func (id Identifier) IsDescription() bool {
	p := id.partitionIdentifier()
	return p == "01" || p == "11"
}

// IsRelationship reports whether this identifier's partition marks a
// relationship.
func (id Identifier) IsRelationship() bool {
	p := id.partitionIdentifier()
	return p == "02" || p == "12"
}

// ComponentKind names what kind of component an identifier's partition
// marks, used for clearer expression-parser diagnostics when a focus
// concept code is syntactically a description or relationship id instead.
func (id Identifier) ComponentKind() string {
	switch {
	case id.IsConcept():
		return "concept"
	case id.IsDescription():
		return "description"
	case id.IsRelationship():
		return "relationship"
	default:
		return "unknown"
	}
}
