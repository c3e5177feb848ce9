// Package rdfio implements bulk ingest and emit of RDF serializations
// against the quad store.
package rdfio

import (
	"bufio"
	"fmt"
	"io"

	"github.com/aleksaelezovic/tetra/internal/store"
	"github.com/aleksaelezovic/tetra/pkg/rdf"
)

// loadBatchSize bounds how many quads one load transaction carries, to
// stay under backend transaction size limits.
const loadBatchSize = 1024

// LoaderError wraps a failure during bulk ingest or emit, keeping the
// parse and storage families distinguishable.
type LoaderError struct {
	cause   error
	isParse bool
}

func parseError(cause error) *LoaderError {
	return &LoaderError{cause: cause, isParse: true}
}

func storageError(cause error) *LoaderError {
	return &LoaderError{cause: cause}
}

func (e *LoaderError) Error() string {
	if e.isParse {
		return fmt.Sprintf("parse error: %s", e.cause)
	}
	return fmt.Sprintf("storage error: %s", e.cause)
}

func (e *LoaderError) Unwrap() error {
	return e.cause
}

// IsParseError reports whether the input, rather than the store, failed.
func (e *LoaderError) IsParseError() bool {
	return e.isParse
}

// LoadDataset parses r with parser and inserts every quad, preserving
// graph names. It returns how many quads were new. Inserts are batched
// into transactions of loadBatchSize.
func LoadDataset(s *store.QuadStore, parser rdf.RDFParser, r io.Reader) (int, error) {
	quads, err := parser.Parse(r)
	if err != nil {
		return 0, parseError(err)
	}
	return insertBatched(s, quads)
}

// LoadGraph parses r and inserts every statement into graphName,
// discarding graph positions the input may carry. A nil graphName targets
// the default graph.
func LoadGraph(s *store.QuadStore, parser rdf.RDFParser, r io.Reader, graphName rdf.Term) (int, error) {
	quads, err := parser.Parse(r)
	if err != nil {
		return 0, parseError(err)
	}
	if graphName == nil {
		graphName = rdf.NewDefaultGraph()
	}
	for _, quad := range quads {
		quad.Graph = graphName
	}
	return insertBatched(s, quads)
}

func insertBatched(s *store.QuadStore, quads []*rdf.Quad) (int, error) {
	inserted := 0
	for start := 0; start < len(quads); start += loadBatchSize {
		end := start + loadBatchSize
		if end > len(quads) {
			end = len(quads)
		}
		batch := quads[start:end]
		batchInserted := 0
		err := s.Transaction(func(w *store.Writer) error {
			batchInserted = 0
			for _, quad := range batch {
				ok, err := w.Insert(quad)
				if err != nil {
					return err
				}
				if ok {
					batchInserted++
				}
			}
			return nil
		})
		if err != nil {
			return inserted, storageError(err)
		}
		inserted += batchInserted
	}
	return inserted, nil
}

// DumpDataset writes the whole store to w as N-Quads, default-graph
// triples first.
func DumpDataset(s *store.QuadStore, w io.Writer) error {
	it, err := s.QuadsForPattern(nil, nil, nil, nil)
	if err != nil {
		return storageError(err)
	}
	defer it.Close()

	bw := bufio.NewWriter(w)
	for it.Next() {
		if _, err := bw.WriteString(rdf.SerializeQuad(it.Quad())); err != nil {
			return storageError(err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return storageError(err)
		}
	}
	if err := it.Err(); err != nil {
		return storageError(err)
	}
	if err := bw.Flush(); err != nil {
		return storageError(err)
	}
	return nil
}

// DumpGraph writes one graph to w as N-Triples. A nil graphName dumps the
// default graph.
func DumpGraph(s *store.QuadStore, w io.Writer, graphName rdf.Term) error {
	if graphName == nil {
		graphName = rdf.NewDefaultGraph()
	}
	it, err := s.QuadsForPattern(nil, nil, nil, graphName)
	if err != nil {
		return storageError(err)
	}
	defer it.Close()

	bw := bufio.NewWriter(w)
	for it.Next() {
		quad := it.Quad()
		triple := rdf.NewQuad(quad.Subject, quad.Predicate, quad.Object, rdf.NewDefaultGraph())
		if _, err := bw.WriteString(rdf.SerializeQuad(triple)); err != nil {
			return storageError(err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return storageError(err)
		}
	}
	if err := it.Err(); err != nil {
		return storageError(err)
	}
	if err := bw.Flush(); err != nil {
		return storageError(err)
	}
	return nil
}
