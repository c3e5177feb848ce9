package store

import (
	"github.com/aleksaelezovic/tetra/internal/encoding"
	"github.com/aleksaelezovic/tetra/internal/storage"
	"github.com/aleksaelezovic/tetra/pkg/rdf"
)

// QuadStore is the term-level facade over the storage engine: it encodes
// incoming terms, runs the engine primitives, and resolves results back to
// lexical forms.
type QuadStore struct {
	storage *Storage
}

// Open opens (or creates) a store at path. An empty path opens an
// in-memory store.
func Open(path string) (*QuadStore, error) {
	db, err := storage.OpenBadger(path, ColumnFamilies())
	if err != nil {
		return nil, err
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &QuadStore{storage: s}, nil
}

// NewQuadStore wraps an already wired Storage.
func NewQuadStore(s *Storage) *QuadStore {
	return &QuadStore{storage: s}
}

func (s *QuadStore) Close() error {
	return s.storage.Close()
}

// Storage exposes the underlying engine.
func (s *QuadStore) Storage() *Storage {
	return s.storage
}

// Snapshot returns a reader over a single consistent point in time. The
// caller must Close it.
func (s *QuadStore) Snapshot() *Reader {
	return s.storage.Snapshot()
}

// Transaction runs f inside one serializable transaction.
func (s *QuadStore) Transaction(f func(*Writer) error) error {
	return s.storage.Transaction(f)
}

// InsertQuad adds one quad, reporting whether it was new.
func (s *QuadStore) InsertQuad(quad *rdf.Quad) (bool, error) {
	var inserted bool
	err := s.storage.Transaction(func(w *Writer) error {
		var err error
		inserted, err = w.Insert(quad)
		return err
	})
	return inserted, err
}

// InsertQuads adds a batch of quads in one transaction.
func (s *QuadStore) InsertQuads(quads []*rdf.Quad) error {
	return s.storage.Transaction(func(w *Writer) error {
		for _, quad := range quads {
			if _, err := w.Insert(quad); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveQuad deletes one quad, reporting whether it was present.
func (s *QuadStore) RemoveQuad(quad *rdf.Quad) (bool, error) {
	var removed bool
	err := s.storage.Transaction(func(w *Writer) error {
		var err error
		removed, err = w.Remove(quad)
		return err
	})
	return removed, err
}

func (s *QuadStore) ContainsQuad(quad *rdf.Quad) (bool, error) {
	encoded, err := encoding.EncodeQuad(quad)
	if err != nil {
		return false, err
	}
	reader := s.storage.Snapshot()
	defer reader.Close()
	return reader.Contains(encoded)
}

func (s *QuadStore) Len() (int, error) {
	reader := s.storage.Snapshot()
	defer reader.Close()
	return reader.Len()
}

func (s *QuadStore) IsEmpty() (bool, error) {
	reader := s.storage.Snapshot()
	defer reader.Close()
	return reader.IsEmpty()
}

// QuadsForPattern matches quads against a pattern; nil subject, predicate
// or object are wildcards. A nil graph matches every graph while the
// default graph marker restricts to the default graph.
func (s *QuadStore) QuadsForPattern(subject, predicate, object, graph rdf.Term) (*DecodedQuadIterator, error) {
	var sPtr, pPtr, oPtr, gPtr *encoding.EncodedTerm

	encode := func(term rdf.Term) (*encoding.EncodedTerm, error) {
		encoded, _, err := encoding.EncodeTerm(term)
		if err != nil {
			return nil, err
		}
		return &encoded, nil
	}

	var err error
	if subject != nil {
		if sPtr, err = encode(subject); err != nil {
			return nil, err
		}
	}
	if predicate != nil {
		if pPtr, err = encode(predicate); err != nil {
			return nil, err
		}
	}
	if object != nil {
		if oPtr, err = encode(object); err != nil {
			return nil, err
		}
	}
	if graph != nil {
		if gPtr, err = encode(graph); err != nil {
			return nil, err
		}
	}

	reader := s.storage.Snapshot()
	return &DecodedQuadIterator{
		reader: reader,
		inner:  reader.QuadsForPattern(sPtr, pPtr, oPtr, gPtr),
	}, nil
}

// NamedGraphs returns every registered graph name.
func (s *QuadStore) NamedGraphs() ([]rdf.Term, error) {
	reader := s.storage.Snapshot()
	defer reader.Close()

	it := reader.NamedGraphs()
	defer it.Close()

	var graphs []rdf.Term
	for it.Next() {
		term, err := encoding.DecodeGraphTerm(it.GraphName(), reader)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, term)
	}
	return graphs, it.Err()
}

func (s *QuadStore) ContainsNamedGraph(graphName rdf.Term) (bool, error) {
	encoded, err := encodeGraphName(graphName)
	if err != nil {
		return false, err
	}
	reader := s.storage.Snapshot()
	defer reader.Close()
	return reader.ContainsNamedGraph(encoded)
}

func (s *QuadStore) InsertNamedGraph(graphName rdf.Term) (bool, error) {
	var inserted bool
	err := s.storage.Transaction(func(w *Writer) error {
		var err error
		inserted, err = w.InsertNamedGraph(graphName)
		return err
	})
	return inserted, err
}

func (s *QuadStore) RemoveNamedGraph(graphName rdf.Term) (bool, error) {
	var removed bool
	err := s.storage.Transaction(func(w *Writer) error {
		var err error
		removed, err = w.RemoveNamedGraph(graphName)
		return err
	})
	return removed, err
}

func (s *QuadStore) ClearGraph(graphName rdf.Term) error {
	return s.storage.Transaction(func(w *Writer) error {
		return w.ClearGraph(graphName)
	})
}

// Clear empties the store, unregistering every named graph.
func (s *QuadStore) Clear() error {
	return s.storage.Transaction(func(w *Writer) error {
		return w.Clear()
	})
}

// Validate runs the integrity self-check against a fresh snapshot.
func (s *QuadStore) Validate() error {
	reader := s.storage.Snapshot()
	defer reader.Close()
	return reader.Validate()
}

// DecodedQuadIterator yields term-level quads from a pattern scan. It owns
// the snapshot backing the scan; Close releases it.
type DecodedQuadIterator struct {
	reader *Reader
	inner  *QuadIterator
	quad   *rdf.Quad
	err    error
}

func (i *DecodedQuadIterator) Next() bool {
	if i.err != nil {
		return false
	}
	if !i.inner.Next() {
		i.err = i.inner.Err()
		return false
	}
	quad, err := i.reader.DecodeQuad(i.inner.Quad())
	if err != nil {
		i.err = err
		return false
	}
	i.quad = quad
	return true
}

// Quad returns the current element. Valid only after a true Next.
func (i *DecodedQuadIterator) Quad() *rdf.Quad {
	return i.quad
}

func (i *DecodedQuadIterator) Err() error {
	return i.err
}

func (i *DecodedQuadIterator) Close() {
	i.inner.Close()
	i.reader.Close()
}
