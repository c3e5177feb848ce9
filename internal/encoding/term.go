// Package encoding implements the fixed-width term codec and the quad key
// layouts used by the storage engine. Every term is encoded as 17 bytes: a
// tag byte followed by a 16-byte payload holding either a 128-bit content
// hash of the lexical form or the value itself inline.
package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aleksaelezovic/tetra/pkg/rdf"
	"github.com/zeebo/xxh3"
)

const (
	// EncodedTermSize is the width of one encoded term (tag + payload)
	EncodedTermSize = 17

	// MaxInlineStringSize is the longest string literal stored inline
	// (payload minus the trailing length byte)
	MaxInlineStringSize = 15
)

// Tag bytes of the fixed-width term encoding. On-disk format; values are
// stable and must never be renumbered.
const (
	TagDefaultGraph       byte = 0x00
	TagNamedNode          byte = 0x01
	TagNumericBlankNode   byte = 0x02
	TagHashBlankNode      byte = 0x03
	TagSmallStringLiteral byte = 0x04
	TagBigStringLiteral   byte = 0x05
	TagLangStringLiteral  byte = 0x06
	TagTypedLiteral       byte = 0x07
	TagIntegerLiteral     byte = 0x08
	TagDecimalLiteral     byte = 0x09
	TagDoubleLiteral      byte = 0x0A
	TagBooleanLiteral     byte = 0x0B
	TagDateTimeLiteral    byte = 0x0C
	TagDateLiteral        byte = 0x0D
)

// StrHash is the 128-bit content-addressed digest of an interned lexical
// form, stored big-endian so its byte image sorts like the hash value.
type StrHash [16]byte

// NewStrHash hashes a lexical form with xxh3-128.
func NewStrHash(s string) StrHash {
	hash := xxh3.Hash128([]byte(s))
	var result StrHash
	binary.BigEndian.PutUint64(result[0:8], hash.Hi)
	binary.BigEndian.PutUint64(result[8:16], hash.Lo)
	return result
}

// EncodedTerm is the fixed-width image of a term. Equality of terms is byte
// equality of their images.
type EncodedTerm [EncodedTermSize]byte

func (t EncodedTerm) Tag() byte {
	return t[0]
}

func (t EncodedTerm) IsDefaultGraph() bool {
	return t[0] == TagDefaultGraph
}

// Hash returns the payload interpreted as a StrHash. Only meaningful for
// hash-carrying tags.
func (t EncodedTerm) Hash() StrHash {
	var h StrHash
	copy(h[:], t[1:])
	return h
}

// Equal reports byte equality with other.
func (t EncodedTerm) Equal(other EncodedTerm) bool {
	return bytes.Equal(t[:], other[:])
}

// EncodedDefaultGraph is the image of the default graph marker (all zero).
var EncodedDefaultGraph EncodedTerm

// EncodedQuad is a quad in encoded term space.
type EncodedQuad struct {
	Subject   EncodedTerm
	Predicate EncodedTerm
	Object    EncodedTerm
	GraphName EncodedTerm
}

// StrLookup resolves interned string hashes back to lexical forms.
type StrLookup interface {
	// GetStr returns the lexical form bound to key, and whether a binding exists
	GetStr(key StrHash) (string, bool, error)

	// ContainsStr reports whether a binding exists for key
	ContainsStr(key StrHash) (bool, error)
}

// CorruptionError reports stored data that cannot be decoded: an unknown tag
// byte, a short key, a hash with no id2str binding, or invalid UTF-8 in the
// side table. It is structurally distinct from transient storage errors.
type CorruptionError struct {
	Msg string
}

func (e *CorruptionError) Error() string {
	return "corrupted data: " + e.Msg
}

func corruptionf(format string, args ...interface{}) error {
	return &CorruptionError{Msg: fmt.Sprintf(format, args...)}
}

// EncodeTerm encodes a term to its fixed-width image. The second return
// value, when non-nil, is the lexical form that must be present in the
// id2str side table for the image's hash.
func EncodeTerm(term rdf.Term) (EncodedTerm, *string, error) {
	var encoded EncodedTerm

	switch t := term.(type) {
	case *rdf.NamedNode:
		encoded[0] = TagNamedNode
		hash := NewStrHash(t.IRI)
		copy(encoded[1:], hash[:])
		return encoded, &t.IRI, nil

	case *rdf.BlankNode:
		return encodeBlankNode(t)

	case *rdf.Literal:
		return encodeLiteral(t)

	case *rdf.DefaultGraph:
		return EncodedDefaultGraph, nil, nil

	case nil:
		return EncodedDefaultGraph, nil, nil

	default:
		return encoded, nil, fmt.Errorf("unknown term type: %T", term)
	}
}

func encodeBlankNode(node *rdf.BlankNode) (EncodedTerm, *string, error) {
	var encoded EncodedTerm

	// Numeric labels are stored inline, everything else by hash
	if num, err := strconv.ParseUint(node.ID, 10, 64); err == nil && canonicalUint(num) == node.ID {
		encoded[0] = TagNumericBlankNode
		binary.BigEndian.PutUint64(encoded[1:9], num)
		return encoded, nil, nil
	}

	encoded[0] = TagHashBlankNode
	hash := NewStrHash(node.ID)
	copy(encoded[1:], hash[:])
	return encoded, &node.ID, nil
}

func canonicalUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func encodeLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	if lit.Datatype != nil {
		switch lit.Datatype.IRI {
		case rdf.XSDInteger.IRI:
			return encodeIntegerLiteral(lit)
		case rdf.XSDDecimal.IRI:
			return encodeDecimalLiteral(lit)
		case rdf.XSDDouble.IRI:
			return encodeDoubleLiteral(lit)
		case rdf.XSDBoolean.IRI:
			return encodeBooleanLiteral(lit)
		case rdf.XSDDateTime.IRI:
			return encodeDateTimeLiteral(lit)
		case rdf.XSDDate.IRI:
			return encodeDateLiteral(lit)
		case rdf.XSDString.IRI:
			return encodeStringLiteral(lit.Value)
		default:
			return encodeTypedLiteral(lit)
		}
	}

	if lit.Language != "" {
		return encodeLangStringLiteral(lit)
	}

	return encodeStringLiteral(lit.Value)
}

func encodeStringLiteral(value string) (EncodedTerm, *string, error) {
	var encoded EncodedTerm

	if len(value) <= MaxInlineStringSize {
		encoded[0] = TagSmallStringLiteral
		copy(encoded[1:], value)
		encoded[EncodedTermSize-1] = byte(len(value))
		return encoded, nil, nil
	}

	encoded[0] = TagBigStringLiteral
	hash := NewStrHash(value)
	copy(encoded[1:], hash[:])
	v := value
	return encoded, &v, nil
}

func encodeLangStringLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var encoded EncodedTerm
	encoded[0] = TagLangStringLiteral

	// Value and tag share one side-table entry; the language tag cannot
	// contain '@' so the last one is the separator
	combined := lit.Value + "@" + lit.Language
	hash := NewStrHash(combined)
	copy(encoded[1:], hash[:])
	return encoded, &combined, nil
}

func encodeTypedLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var encoded EncodedTerm
	encoded[0] = TagTypedLiteral

	// IRIs cannot contain '^' so the last "^^" is the separator
	combined := lit.Value + "^^" + lit.Datatype.IRI
	hash := NewStrHash(combined)
	copy(encoded[1:], hash[:])
	return encoded, &combined, nil
}

func encodeIntegerLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var encoded EncodedTerm
	encoded[0] = TagIntegerLiteral

	value, err := strconv.ParseInt(strings.TrimSpace(lit.Value), 10, 64)
	if err != nil || strconv.FormatInt(value, 10) != lit.Value {
		// Out-of-range or non-canonical integers keep their lexical form
		return encodeTypedLiteral(lit)
	}

	putOrderedInt64(encoded[1:9], value)
	return encoded, nil, nil
}

func encodeDecimalLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var encoded EncodedTerm
	encoded[0] = TagDecimalLiteral

	value, err := strconv.ParseFloat(strings.TrimSpace(lit.Value), 64)
	if err != nil {
		return encodeTypedLiteral(lit)
	}

	putOrderedFloat64(encoded[1:9], value)
	return encoded, nil, nil
}

func encodeDoubleLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var encoded EncodedTerm
	encoded[0] = TagDoubleLiteral

	value, err := strconv.ParseFloat(strings.TrimSpace(lit.Value), 64)
	if err != nil {
		return encodeTypedLiteral(lit)
	}

	putOrderedFloat64(encoded[1:9], value)
	return encoded, nil, nil
}

func encodeBooleanLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var encoded EncodedTerm
	encoded[0] = TagBooleanLiteral

	switch strings.TrimSpace(lit.Value) {
	case "true", "1":
		encoded[1] = 1
	case "false", "0":
		encoded[1] = 0
	default:
		return encodeTypedLiteral(lit)
	}
	return encoded, nil, nil
}

func encodeDateTimeLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var encoded EncodedTerm
	encoded[0] = TagDateTimeLiteral

	trimmed := strings.TrimSpace(lit.Value)
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		// ISO 8601 without timezone is interpreted as UTC
		t, err = time.ParseInLocation("2006-01-02T15:04:05", trimmed, time.UTC)
		if err != nil {
			return encodeTypedLiteral(lit)
		}
	}

	putOrderedInt64(encoded[1:9], t.UnixNano())
	return encoded, nil, nil
}

func encodeDateLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var encoded EncodedTerm
	encoded[0] = TagDateLiteral

	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(lit.Value), time.UTC)
	if err != nil {
		return encodeTypedLiteral(lit)
	}

	putOrderedInt64(encoded[1:9], t.Unix()/86400)
	return encoded, nil, nil
}

// EncodeQuad encodes all four positions of a quad. Side-table strings are
// not collected; use InsertTerm for that.
func EncodeQuad(quad *rdf.Quad) (EncodedQuad, error) {
	var encoded EncodedQuad

	s, _, err := EncodeTerm(quad.Subject)
	if err != nil {
		return encoded, fmt.Errorf("failed to encode subject: %w", err)
	}
	p, _, err := EncodeTerm(quad.Predicate)
	if err != nil {
		return encoded, fmt.Errorf("failed to encode predicate: %w", err)
	}
	o, _, err := EncodeTerm(quad.Object)
	if err != nil {
		return encoded, fmt.Errorf("failed to encode object: %w", err)
	}
	g, _, err := EncodeTerm(quad.Graph)
	if err != nil {
		return encoded, fmt.Errorf("failed to encode graph: %w", err)
	}

	encoded.Subject = s
	encoded.Predicate = p
	encoded.Object = o
	encoded.GraphName = g
	return encoded, nil
}

// InsertTerm emits the id2str side-table writes required for encoded via
// put. It is a no-op for terms encoded entirely inline.
func InsertTerm(term rdf.Term, encoded EncodedTerm, put func(key StrHash, value string) error) error {
	_, side, err := EncodeTerm(term)
	if err != nil {
		return err
	}
	if side == nil {
		return nil
	}
	return put(encoded.Hash(), *side)
}

// DecodeTerm rebuilds a term from its fixed-width image, resolving hashes
// through lookup.
func DecodeTerm(encoded EncodedTerm, lookup StrLookup) (rdf.Term, error) {
	switch encoded.Tag() {
	case TagDefaultGraph:
		return rdf.NewDefaultGraph(), nil

	case TagNamedNode:
		value, err := resolveHash(encoded, lookup)
		if err != nil {
			return nil, err
		}
		return rdf.NewNamedNode(value), nil

	case TagNumericBlankNode:
		id := binary.BigEndian.Uint64(encoded[1:9])
		return rdf.NewBlankNode(strconv.FormatUint(id, 10)), nil

	case TagHashBlankNode:
		value, err := resolveHash(encoded, lookup)
		if err != nil {
			return nil, err
		}
		return rdf.NewBlankNode(value), nil

	case TagSmallStringLiteral:
		n := int(encoded[EncodedTermSize-1])
		if n > MaxInlineStringSize {
			return nil, corruptionf("inline string length %d exceeds payload", n)
		}
		return rdf.NewLiteral(string(encoded[1 : 1+n])), nil

	case TagBigStringLiteral:
		value, err := resolveHash(encoded, lookup)
		if err != nil {
			return nil, err
		}
		return rdf.NewLiteral(value), nil

	case TagLangStringLiteral:
		combined, err := resolveHash(encoded, lookup)
		if err != nil {
			return nil, err
		}
		idx := strings.LastIndexByte(combined, '@')
		if idx < 0 {
			return nil, corruptionf("malformed language-tagged literal %q", combined)
		}
		return rdf.NewLiteralWithLanguage(combined[:idx], combined[idx+1:]), nil

	case TagTypedLiteral:
		combined, err := resolveHash(encoded, lookup)
		if err != nil {
			return nil, err
		}
		idx := strings.LastIndex(combined, "^^")
		if idx < 0 {
			return nil, corruptionf("malformed typed literal %q", combined)
		}
		return rdf.NewLiteralWithDatatype(combined[:idx], rdf.NewNamedNode(combined[idx+2:])), nil

	case TagIntegerLiteral:
		return rdf.NewIntegerLiteral(orderedInt64(encoded[1:9])), nil

	case TagDecimalLiteral:
		value := orderedFloat64(encoded[1:9])
		return rdf.NewLiteralWithDatatype(formatDecimal(value), rdf.XSDDecimal), nil

	case TagDoubleLiteral:
		return rdf.NewDoubleLiteral(orderedFloat64(encoded[1:9])), nil

	case TagBooleanLiteral:
		return rdf.NewBooleanLiteral(encoded[1] != 0), nil

	case TagDateTimeLiteral:
		nanos := orderedInt64(encoded[1:9])
		return rdf.NewDateTimeLiteral(time.Unix(0, nanos).UTC()), nil

	case TagDateLiteral:
		days := orderedInt64(encoded[1:9])
		t := time.Unix(days*86400, 0).UTC()
		return rdf.NewLiteralWithDatatype(t.Format("2006-01-02"), rdf.XSDDate), nil

	default:
		return nil, corruptionf("unknown term tag byte 0x%02X", encoded.Tag())
	}
}

// DecodeGraphTerm decodes a graph position: the default marker, an IRI or a
// blank node.
func DecodeGraphTerm(encoded EncodedTerm, lookup StrLookup) (rdf.Term, error) {
	switch encoded.Tag() {
	case TagDefaultGraph, TagNamedNode, TagNumericBlankNode, TagHashBlankNode:
		return DecodeTerm(encoded, lookup)
	default:
		return nil, corruptionf("term tag byte 0x%02X is not a valid graph name", encoded.Tag())
	}
}

// DecodeQuad rebuilds all four positions of an encoded quad.
func DecodeQuad(quad EncodedQuad, lookup StrLookup) (*rdf.Quad, error) {
	subject, err := DecodeTerm(quad.Subject, lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to decode subject: %w", err)
	}
	predicate, err := DecodeTerm(quad.Predicate, lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to decode predicate: %w", err)
	}
	object, err := DecodeTerm(quad.Object, lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}
	graph, err := DecodeGraphTerm(quad.GraphName, lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	return rdf.NewQuad(subject, predicate, object, graph), nil
}

func resolveHash(encoded EncodedTerm, lookup StrLookup) (string, error) {
	value, ok, err := lookup.GetStr(encoded.Hash())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", corruptionf("no id2str entry for hash %x", encoded.Hash())
	}
	return value, nil
}

func formatDecimal(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// putOrderedInt64 writes v so that the byte image sorts like the value
// (sign bit flipped, big endian).
func putOrderedInt64(buf []byte, v int64) {
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
}

func orderedInt64(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf) ^ (1 << 63))
}

// putOrderedFloat64 writes f so that the byte image sorts like the value
// (IEEE 754 total-order trick).
func putOrderedFloat64(buf []byte, f float64) {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	binary.BigEndian.PutUint64(buf, bits)
}

func orderedFloat64(buf []byte) float64 {
	bits := binary.BigEndian.Uint64(buf)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}
