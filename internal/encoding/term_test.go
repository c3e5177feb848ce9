package encoding

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aleksaelezovic/tetra/pkg/rdf"
)

// mapLookup is an in-memory StrLookup for codec tests
type mapLookup map[StrHash]string

func (m mapLookup) GetStr(key StrHash) (string, bool, error) {
	value, ok := m[key]
	return value, ok, nil
}

func (m mapLookup) ContainsStr(key StrHash) (bool, error) {
	_, ok := m[key]
	return ok, nil
}

func encodeAndIntern(t *testing.T, term rdf.Term, lookup mapLookup) EncodedTerm {
	t.Helper()
	encoded, side, err := EncodeTerm(term)
	if err != nil {
		t.Fatalf("failed to encode %s: %v", term, err)
	}
	if side != nil {
		lookup[encoded.Hash()] = *side
	}
	return encoded
}

func TestTermRoundTrip(t *testing.T) {
	terms := []rdf.Term{
		rdf.NewNamedNode("http://example.org/alice"),
		rdf.NewBlankNode("b1"),
		rdf.NewBlankNode("42"),
		rdf.NewBlankNode("someLongBlankNodeLabel"),
		rdf.NewLiteral("hi"),
		rdf.NewLiteral("exactly 15 byte"),
		rdf.NewLiteral("a string that is too long to inline"),
		rdf.NewLiteralWithLanguage("hello", "en"),
		rdf.NewLiteralWithLanguage("value@with@at", "en-US"),
		rdf.NewLiteralWithDatatype("1", rdf.XSDInteger),
		rdf.NewLiteralWithDatatype("-42", rdf.XSDInteger),
		rdf.NewLiteralWithDatatype("true", rdf.XSDBoolean),
		rdf.NewLiteralWithDatatype("false", rdf.XSDBoolean),
		rdf.NewLiteralWithDatatype("2011-02-01T01:02:03Z", rdf.XSDDateTime),
		rdf.NewLiteralWithDatatype("2011-02-01", rdf.XSDDate),
		rdf.NewLiteralWithDatatype("abc", rdf.NewNamedNode("http://example.org/custom")),
		rdf.NewDefaultGraph(),
	}

	lookup := mapLookup{}
	for _, term := range terms {
		encoded := encodeAndIntern(t, term, lookup)
		decoded, err := DecodeTerm(encoded, lookup)
		if err != nil {
			t.Fatalf("failed to decode %s: %v", term, err)
		}
		if !decoded.Equals(term) {
			t.Errorf("round trip changed %s into %s", term, decoded)
		}
	}
}

func TestEncodedTermEquality(t *testing.T) {
	a1, _, err := EncodeTerm(rdf.NewNamedNode("http://example.org/a"))
	if err != nil {
		t.Fatal(err)
	}
	a2, _, err := EncodeTerm(rdf.NewNamedNode("http://example.org/a"))
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := EncodeTerm(rdf.NewNamedNode("http://example.org/b"))
	if err != nil {
		t.Fatal(err)
	}

	if !a1.Equal(a2) {
		t.Error("equal terms must have equal images")
	}
	if a1.Equal(b) {
		t.Error("distinct terms must have distinct images")
	}
}

func TestSmallStringInline(t *testing.T) {
	encoded, side, err := EncodeTerm(rdf.NewLiteral("tiny"))
	if err != nil {
		t.Fatal(err)
	}
	if side != nil {
		t.Error("small strings must not need a side-table entry")
	}
	if encoded.Tag() != TagSmallStringLiteral {
		t.Errorf("expected small string tag, got 0x%02X", encoded.Tag())
	}

	// Decodes without any lookup
	decoded, err := DecodeTerm(encoded, mapLookup{})
	if err != nil {
		t.Fatal(err)
	}
	if lit, ok := decoded.(*rdf.Literal); !ok || lit.Value != "tiny" {
		t.Errorf("expected \"tiny\", got %s", decoded)
	}
}

func TestBigStringNeedsSideTable(t *testing.T) {
	value := "a string that is too long to inline"
	encoded, side, err := EncodeTerm(rdf.NewLiteral(value))
	if err != nil {
		t.Fatal(err)
	}
	if side == nil || *side != value {
		t.Fatal("big strings must carry a side-table entry")
	}
	if encoded.Tag() != TagBigStringLiteral {
		t.Errorf("expected big string tag, got 0x%02X", encoded.Tag())
	}
	if encoded.Hash() != NewStrHash(value) {
		t.Error("payload must be the content hash of the value")
	}
}

func TestMissingHashIsCorruption(t *testing.T) {
	encoded, _, err := EncodeTerm(rdf.NewNamedNode("http://example.org/missing"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecodeTerm(encoded, mapLookup{})
	var corruption *CorruptionError
	if !errors.As(err, &corruption) {
		t.Errorf("expected CorruptionError, got %v", err)
	}
}

func TestUnknownTagIsCorruption(t *testing.T) {
	var encoded EncodedTerm
	encoded[0] = 0x7F

	_, err := DecodeTerm(encoded, mapLookup{})
	var corruption *CorruptionError
	if !errors.As(err, &corruption) {
		t.Errorf("expected CorruptionError, got %v", err)
	}
}

func TestIntegerOrderPreserved(t *testing.T) {
	values := []int64{-200000000, -1, 0, 1, 42, 200000000}
	var prev []byte
	for _, v := range values {
		encoded, _, err := EncodeTerm(rdf.NewIntegerLiteral(v))
		if err != nil {
			t.Fatal(err)
		}
		if prev != nil && bytes.Compare(prev, encoded[:]) >= 0 {
			t.Errorf("integer order not preserved at %d", v)
		}
		image := make([]byte, len(encoded))
		copy(image, encoded[:])
		prev = image
	}
}

func TestInsertTermEmitsSideEntry(t *testing.T) {
	iri := rdf.NewNamedNode("http://example.org/p")
	encoded, _, err := EncodeTerm(iri)
	if err != nil {
		t.Fatal(err)
	}

	emitted := map[StrHash]string{}
	err = InsertTerm(iri, encoded, func(key StrHash, value string) error {
		emitted[key] = value
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := emitted[encoded.Hash()]; got != "http://example.org/p" {
		t.Errorf("expected the IRI to be emitted, got %q", got)
	}

	// Inline terms emit nothing
	inline, _, err := EncodeTerm(rdf.NewIntegerLiteral(7))
	if err != nil {
		t.Fatal(err)
	}
	err = InsertTerm(rdf.NewIntegerLiteral(7), inline, func(key StrHash, value string) error {
		t.Errorf("unexpected side entry %q", value)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestNumericBlankNodeInline(t *testing.T) {
	encoded, side, err := EncodeTerm(rdf.NewBlankNode("12345"))
	if err != nil {
		t.Fatal(err)
	}
	if side != nil {
		t.Error("numeric blank nodes must encode inline")
	}
	if encoded.Tag() != TagNumericBlankNode {
		t.Errorf("expected numeric blank node tag, got 0x%02X", encoded.Tag())
	}

	// Leading zeros are not canonical and must go through the hash path
	encoded, _, err = EncodeTerm(rdf.NewBlankNode("012"))
	if err != nil {
		t.Fatal(err)
	}
	if encoded.Tag() != TagHashBlankNode {
		t.Errorf("expected hashed blank node tag, got 0x%02X", encoded.Tag())
	}
}
