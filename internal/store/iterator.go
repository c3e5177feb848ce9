package store

import (
	"github.com/aleksaelezovic/tetra/internal/encoding"
	"github.com/aleksaelezovic/tetra/internal/storage"
)

// decodingQuadIterator walks one index, splitting each key back into an
// encoded quad. Fused: after the first error Next returns false forever.
//
// The underlying scan opens on the first Next and closes as soon as it is
// exhausted. Write transactions allow only one live scan at a time, so a
// chained iterator must never hold two open at once.
type decodingQuadIterator struct {
	reader   storage.Reader
	cf       storage.ColumnFamily
	prefix   []byte
	ordering encoding.QuadOrdering

	iter   storage.Iterator
	closed bool
	quad   encoding.EncodedQuad
	err    error
}

func (i *decodingQuadIterator) Next() bool {
	if i.err != nil || i.closed {
		return false
	}
	if i.iter == nil {
		i.iter = i.reader.ScanPrefix(i.cf, i.prefix)
	}
	if !i.iter.Next() {
		i.err = i.iter.Err()
		i.Close()
		return false
	}
	quad, err := i.ordering.DecodeKey(i.iter.Key())
	if err != nil {
		i.err = err
		i.Close()
		return false
	}
	i.quad = quad
	return true
}

func (i *decodingQuadIterator) Quad() encoding.EncodedQuad {
	return i.quad
}

func (i *decodingQuadIterator) Err() error {
	return i.err
}

func (i *decodingQuadIterator) Close() {
	if i.iter != nil && !i.closed {
		i.iter.Close()
	}
	i.closed = true
}

// QuadIterator yields encoded quads from one index scan, or from two
// chained scans when a pattern spans the default-graph and named-graph
// index families. The first source is fully drained before the second, so
// default-graph tuples come first.
type QuadIterator struct {
	first   *decodingQuadIterator
	second  *decodingQuadIterator
	current *decodingQuadIterator
}

func singleQuadIterator(first *decodingQuadIterator) *QuadIterator {
	return &QuadIterator{first: first, current: first}
}

func chainedQuadIterator(first, second *decodingQuadIterator) *QuadIterator {
	return &QuadIterator{first: first, second: second, current: first}
}

func (i *QuadIterator) Next() bool {
	if i.current == i.first {
		if i.first.Next() {
			return true
		}
		if i.first.Err() != nil || i.second == nil {
			return false
		}
		i.current = i.second
	}
	return i.second.Next()
}

// Quad returns the current element. Valid only after a true Next.
func (i *QuadIterator) Quad() encoding.EncodedQuad {
	return i.current.Quad()
}

func (i *QuadIterator) Err() error {
	if err := i.first.Err(); err != nil {
		return err
	}
	if i.second != nil {
		return i.second.Err()
	}
	return nil
}

func (i *QuadIterator) Close() {
	i.first.Close()
	if i.second != nil {
		i.second.Close()
	}
}

// GraphIterator yields the encoded graph names of the registry.
type GraphIterator struct {
	iter      storage.Iterator
	graphName encoding.EncodedTerm
	err       error
}

func (i *GraphIterator) Next() bool {
	if i.err != nil {
		return false
	}
	if !i.iter.Next() {
		i.err = i.iter.Err()
		return false
	}
	graphName, err := encoding.DecodeGraphKey(i.iter.Key())
	if err != nil {
		i.err = err
		return false
	}
	i.graphName = graphName
	return true
}

func (i *GraphIterator) GraphName() encoding.EncodedTerm {
	return i.graphName
}

func (i *GraphIterator) Err() error {
	return i.err
}

func (i *GraphIterator) Close() {
	i.iter.Close()
}
