package store

import (
	"errors"
	"testing"

	"github.com/aleksaelezovic/tetra/internal/encoding"
	"github.com/aleksaelezovic/tetra/pkg/rdf"
)

func datasetFixture(t *testing.T) (*QuadStore, *Reader) {
	t.Helper()
	s := newTestStore(t)

	if err := s.InsertQuads([]*rdf.Quad{
		rdf.NewQuad(rdf.NewNamedNode("http://ex/s"), rdf.NewNamedNode("http://ex/p"), rdf.NewLiteral("d"), rdf.NewDefaultGraph()),
		rdf.NewQuad(rdf.NewNamedNode("http://ex/s"), rdf.NewNamedNode("http://ex/p"), rdf.NewLiteral("1"), rdf.NewNamedNode("http://ex/g1")),
		rdf.NewQuad(rdf.NewNamedNode("http://ex/s"), rdf.NewNamedNode("http://ex/p"), rdf.NewLiteral("2"), rdf.NewNamedNode("http://ex/g2")),
	}); err != nil {
		t.Fatal(err)
	}

	reader := s.Snapshot()
	t.Cleanup(reader.Close)
	return s, reader
}

func datasetQuads(t *testing.T, view *DatasetView, it *DatasetQuadIterator) []*rdf.Quad {
	t.Helper()
	defer it.Close()
	var quads []*rdf.Quad
	for it.Next() {
		quad, err := view.DecodeQuad(it.Quad())
		if err != nil {
			t.Fatal(err)
		}
		quads = append(quads, quad)
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	return quads
}

func encodedDefault() *encoding.EncodedTerm {
	g := encoding.EncodedDefaultGraph
	return &g
}

func TestDatasetUnrestrictedDefaultGraph(t *testing.T) {
	_, reader := datasetFixture(t)

	view, err := NewDatasetView(reader, nil)
	if err != nil {
		t.Fatal(err)
	}

	got := datasetQuads(t, view, view.QuadsForPattern(nil, nil, nil, encodedDefault()))
	if len(got) != 1 {
		t.Fatalf("expected the one true default-graph quad, got %d", len(got))
	}
	if obj := got[0].Object.(*rdf.Literal); obj.Value != "d" {
		t.Errorf("expected the default-graph quad, got %s", got[0])
	}
}

func TestDatasetRewritesDefaultGraphMembers(t *testing.T) {
	_, reader := datasetFixture(t)

	view, err := NewDatasetView(reader, &QueryDataset{
		DefaultGraphs: []rdf.Term{rdf.NewNamedNode("http://ex/g1"), rdf.NewNamedNode("http://ex/g2")},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := datasetQuads(t, view, view.QuadsForPattern(nil, nil, nil, encodedDefault()))
	if len(got) != 2 {
		t.Fatalf("expected both member graphs' quads, got %d", len(got))
	}
	for _, quad := range got {
		if !rdf.IsDefaultGraph(quad.Graph) {
			t.Errorf("member-graph results must be rewritten to the default graph, got %s", quad)
		}
	}
}

func TestDatasetNamedGraphRestriction(t *testing.T) {
	_, reader := datasetFixture(t)

	g1, _, err := encoding.EncodeTerm(rdf.NewNamedNode("http://ex/g1"))
	if err != nil {
		t.Fatal(err)
	}
	g2, _, err := encoding.EncodeTerm(rdf.NewNamedNode("http://ex/g2"))
	if err != nil {
		t.Fatal(err)
	}

	view, err := NewDatasetView(reader, &QueryDataset{
		NamedGraphs: []rdf.Term{rdf.NewNamedNode("http://ex/g1")},
	})
	if err != nil {
		t.Fatal(err)
	}

	// A graph inside the restriction answers
	got := datasetQuads(t, view, view.QuadsForPattern(nil, nil, nil, &g1))
	if len(got) != 1 {
		t.Errorf("expected one quad from g1, got %d", len(got))
	}

	// A graph outside the restriction is empty
	got = datasetQuads(t, view, view.QuadsForPattern(nil, nil, nil, &g2))
	if len(got) != 0 {
		t.Errorf("g2 is outside the dataset, got %d quads", len(got))
	}

	// Unbound graph unions the restricted set only
	got = datasetQuads(t, view, view.QuadsForPattern(nil, nil, nil, nil))
	if len(got) != 1 {
		t.Fatalf("expected only g1's quad, got %d", len(got))
	}
	if !got[0].Graph.Equals(rdf.NewNamedNode("http://ex/g1")) {
		t.Errorf("expected a g1 quad, got %s", got[0])
	}
}

func TestDatasetUnboundGraphSkipsDefault(t *testing.T) {
	_, reader := datasetFixture(t)

	view, err := NewDatasetView(reader, nil)
	if err != nil {
		t.Fatal(err)
	}

	got := datasetQuads(t, view, view.QuadsForPattern(nil, nil, nil, nil))
	if len(got) != 2 {
		t.Fatalf("expected the two named-graph quads, got %d", len(got))
	}
	for _, quad := range got {
		if rdf.IsDefaultGraph(quad.Graph) {
			t.Errorf("default-graph tuples must be excluded, got %s", quad)
		}
	}
}

func TestDatasetScratchInterner(t *testing.T) {
	_, reader := datasetFixture(t)

	view, err := NewDatasetView(reader, nil)
	if err != nil {
		t.Fatal(err)
	}

	value := "a freshly CONCATenated value that the store never saw"
	hash, err := view.InsertStr(value)
	if err != nil {
		t.Fatal(err)
	}
	if hash != encoding.NewStrHash(value) {
		t.Error("InsertStr must return the content hash")
	}

	// Idempotent by hash
	again, err := view.InsertStr(value)
	if err != nil {
		t.Fatal(err)
	}
	if again != hash {
		t.Error("repeated inserts must return the same hash")
	}

	got, ok, err := view.GetStr(hash)
	if err != nil || !ok {
		t.Fatalf("scratch lookup failed: ok=%v err=%v", ok, err)
	}
	if got != value {
		t.Errorf("expected %q, got %q", value, got)
	}

	// The store itself never sees scratch strings
	ok, err = reader.ContainsStr(hash)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("scratch strings must not reach the store")
	}

	// Store strings resolve through the view too
	storeHash := encoding.NewStrHash("http://ex/p")
	got, ok, err = view.GetStr(storeHash)
	if err != nil || !ok {
		t.Fatalf("store fallback failed: ok=%v err=%v", ok, err)
	}
	if got != "http://ex/p" {
		t.Errorf("expected the stored IRI, got %q", got)
	}
}

func TestDatasetGraphEnumerationUnsupported(t *testing.T) {
	_, reader := datasetFixture(t)

	view, err := NewDatasetView(reader, nil)
	if err != nil {
		t.Fatal(err)
	}

	it := view.NamedGraphs()
	if it.Next() {
		t.Error("graph enumeration must yield no elements")
	}
	if !errors.Is(it.Err(), ErrGraphLookupUnsupported) {
		t.Errorf("expected the graph lookup sentinel, got %v", it.Err())
	}

	if _, err := view.ContainsNamedGraph(encoding.EncodedTerm{}); !errors.Is(err, ErrGraphLookupUnsupported) {
		t.Errorf("expected the graph lookup sentinel, got %v", err)
	}
}
