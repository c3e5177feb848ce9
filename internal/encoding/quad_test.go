package encoding

import (
	"bytes"
	"testing"

	"github.com/aleksaelezovic/tetra/pkg/rdf"
)

func testQuad(t *testing.T, graph rdf.Term) EncodedQuad {
	t.Helper()
	quad, err := EncodeQuad(rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/s"),
		rdf.NewNamedNode("http://example.org/p"),
		rdf.NewLiteral("o"),
		graph,
	))
	if err != nil {
		t.Fatal(err)
	}
	return quad
}

func TestOrderingKeyRoundTrip(t *testing.T) {
	defaultQuad := testQuad(t, rdf.NewDefaultGraph())
	namedQuad := testQuad(t, rdf.NewNamedNode("http://example.org/g"))

	for _, ordering := range []QuadOrdering{OrderingDSPO, OrderingDPOS, OrderingDOSP} {
		key := ordering.Key(defaultQuad)
		if len(key) != 3*EncodedTermSize {
			t.Fatalf("%s key has %d bytes", ordering, len(key))
		}
		decoded, err := ordering.DecodeKey(key)
		if err != nil {
			t.Fatalf("%s: %v", ordering, err)
		}
		if decoded != defaultQuad {
			t.Errorf("%s key round trip changed the quad", ordering)
		}
	}

	for _, ordering := range []QuadOrdering{
		OrderingSPOG, OrderingPOSG, OrderingOSPG,
		OrderingGSPO, OrderingGPOS, OrderingGOSP,
	} {
		key := ordering.Key(namedQuad)
		if len(key) != 4*EncodedTermSize {
			t.Fatalf("%s key has %d bytes", ordering, len(key))
		}
		decoded, err := ordering.DecodeKey(key)
		if err != nil {
			t.Fatalf("%s: %v", ordering, err)
		}
		if decoded != namedQuad {
			t.Errorf("%s key round trip changed the quad", ordering)
		}
	}
}

func TestOrderingKeyPrefixes(t *testing.T) {
	quad := testQuad(t, rdf.NewNamedNode("http://example.org/g"))

	// A GSPO key must start with the graph term, then the subject
	key := OrderingGSPO.Key(quad)
	if !bytes.HasPrefix(key, quad.GraphName[:]) {
		t.Error("gspo key must start with the graph term")
	}
	if !bytes.HasPrefix(key, EncodeKey(quad.GraphName, quad.Subject)) {
		t.Error("gspo key must continue with the subject term")
	}

	// A DSPO key starts with the subject
	defaultQuad := testQuad(t, rdf.NewDefaultGraph())
	if !bytes.HasPrefix(OrderingDSPO.Key(defaultQuad), defaultQuad.Subject[:]) {
		t.Error("dspo key must start with the subject term")
	}
}

func TestDecodeKeyRejectsShortKeys(t *testing.T) {
	if _, err := OrderingSPOG.DecodeKey(make([]byte, 3*EncodedTermSize)); err == nil {
		t.Error("expected an error for a truncated spog key")
	}
	if _, err := DecodeGraphKey(make([]byte, 5)); err == nil {
		t.Error("expected an error for a truncated graphs key")
	}
}
