package store

import (
	"github.com/aleksaelezovic/tetra/internal/encoding"
	"github.com/aleksaelezovic/tetra/pkg/rdf"
)

// QueryDataset is the SPARQL dataset specification of one query: which
// graphs make up the query's default graph and which are available as
// named graphs. A nil list means unrestricted.
type QueryDataset struct {
	DefaultGraphs []rdf.Term
	NamedGraphs   []rdf.Term
}

// DatasetView adapts a storage reader to a query's dataset scope. It also
// interns strings constructed mid-evaluation (e.g. CONCAT results) in a
// scratch table consulted before the store.
//
// A view is confined to one query evaluation; the scratch table is not
// synchronized for concurrent use.
type DatasetView struct {
	reader *Reader
	extra  map[encoding.StrHash]string

	defaultGraphs    []encoding.EncodedTerm
	namedGraphs      []encoding.EncodedTerm
	restrictsDefault bool
	restrictsNamed   bool
}

// NewDatasetView builds a view of reader scoped to dataset. A nil dataset
// is fully unrestricted.
func NewDatasetView(reader *Reader, dataset *QueryDataset) (*DatasetView, error) {
	v := &DatasetView{
		reader: reader,
		extra:  make(map[encoding.StrHash]string),
	}
	if dataset == nil {
		return v, nil
	}

	if dataset.DefaultGraphs != nil {
		v.restrictsDefault = true
		for _, g := range dataset.DefaultGraphs {
			encoded, _, err := encoding.EncodeTerm(g)
			if err != nil {
				return nil, wrapEvaluationError(err)
			}
			v.defaultGraphs = append(v.defaultGraphs, encoded)
		}
	}
	if dataset.NamedGraphs != nil {
		v.restrictsNamed = true
		for _, g := range dataset.NamedGraphs {
			encoded, _, err := encoding.EncodeTerm(g)
			if err != nil {
				return nil, wrapEvaluationError(err)
			}
			v.namedGraphs = append(v.namedGraphs, encoded)
		}
	}
	return v, nil
}

// QuadsForPattern answers a pattern under the view's dataset scope.
func (v *DatasetView) QuadsForPattern(subject, predicate, object, graphName *encoding.EncodedTerm) *DatasetQuadIterator {
	if graphName != nil {
		if graphName.IsDefaultGraph() {
			if v.restrictsDefault {
				// Scan the member graphs and present their quads as
				// default-graph tuples
				sources := make([]*QuadIterator, 0, len(v.defaultGraphs))
				for i := range v.defaultGraphs {
					g := v.defaultGraphs[i]
					sources = append(sources, v.reader.QuadsForPattern(subject, predicate, object, &g))
				}
				return &DatasetQuadIterator{sources: sources, rewriteGraph: true}
			}
			return &DatasetQuadIterator{sources: []*QuadIterator{
				v.reader.QuadsForPattern(subject, predicate, object, graphName),
			}}
		}
		if !v.restrictsNamed || containsTerm(v.namedGraphs, *graphName) {
			return &DatasetQuadIterator{sources: []*QuadIterator{
				v.reader.QuadsForPattern(subject, predicate, object, graphName),
			}}
		}
		return &DatasetQuadIterator{}
	}

	if v.restrictsNamed {
		sources := make([]*QuadIterator, 0, len(v.namedGraphs))
		for i := range v.namedGraphs {
			g := v.namedGraphs[i]
			sources = append(sources, v.reader.QuadsForPattern(subject, predicate, object, &g))
		}
		return &DatasetQuadIterator{sources: sources}
	}

	// Unbound graph never matches default-graph tuples (SPARQL semantics)
	return &DatasetQuadIterator{
		sources:     []*QuadIterator{v.reader.QuadsForPattern(subject, predicate, object, nil)},
		skipDefault: true,
	}
}

// NamedGraphs is deliberately unimplemented; see ErrGraphLookupUnsupported.
func (v *DatasetView) NamedGraphs() *DatasetGraphIterator {
	return &DatasetGraphIterator{}
}

// ContainsNamedGraph is deliberately unimplemented; see
// ErrGraphLookupUnsupported.
func (v *DatasetView) ContainsNamedGraph(encoding.EncodedTerm) (bool, error) {
	return false, ErrGraphLookupUnsupported
}

// GetStr consults the scratch table first, then the store.
func (v *DatasetView) GetStr(key encoding.StrHash) (string, bool, error) {
	if value, ok := v.extra[key]; ok {
		return value, true, nil
	}
	value, ok, err := v.reader.GetStr(key)
	return value, ok, wrapEvaluationError(err)
}

func (v *DatasetView) ContainsStr(key encoding.StrHash) (bool, error) {
	if _, ok := v.extra[key]; ok {
		return true, nil
	}
	ok, err := v.reader.ContainsStr(key)
	return ok, wrapEvaluationError(err)
}

// InsertStr interns a string constructed during evaluation and returns its
// hash. Strings already known to the store are not duplicated; scratch
// inserts are idempotent by hash.
func (v *DatasetView) InsertStr(value string) (encoding.StrHash, error) {
	hash := encoding.NewStrHash(value)
	ok, err := v.reader.ContainsStr(hash)
	if err != nil {
		return hash, wrapEvaluationError(err)
	}
	if ok {
		return hash, nil
	}
	if _, ok := v.extra[hash]; !ok {
		v.extra[hash] = value
	}
	return hash, nil
}

// DecodeQuad resolves an encoded quad through the view (scratch table
// included).
func (v *DatasetView) DecodeQuad(quad encoding.EncodedQuad) (*rdf.Quad, error) {
	decoded, err := encoding.DecodeQuad(quad, v)
	if err != nil {
		return nil, wrapEvaluationError(err)
	}
	return decoded, nil
}

func containsTerm(terms []encoding.EncodedTerm, term encoding.EncodedTerm) bool {
	for _, t := range terms {
		if t.Equal(term) {
			return true
		}
	}
	return false
}

// DatasetQuadIterator yields pattern matches under a dataset scope,
// optionally rewriting graph names to the default marker or skipping
// default-graph tuples.
type DatasetQuadIterator struct {
	sources      []*QuadIterator
	rewriteGraph bool
	skipDefault  bool
	idx          int
	quad         encoding.EncodedQuad
	err          error
}

func (i *DatasetQuadIterator) Next() bool {
	if i.err != nil {
		return false
	}
	for i.idx < len(i.sources) {
		source := i.sources[i.idx]
		for source.Next() {
			quad := source.Quad()
			if i.skipDefault && quad.GraphName.IsDefaultGraph() {
				continue
			}
			if i.rewriteGraph {
				quad.GraphName = encoding.EncodedDefaultGraph
			}
			i.quad = quad
			return true
		}
		if err := source.Err(); err != nil {
			i.err = wrapEvaluationError(err)
			return false
		}
		i.idx++
	}
	return false
}

// Quad returns the current element. Valid only after a true Next.
func (i *DatasetQuadIterator) Quad() encoding.EncodedQuad {
	return i.quad
}

func (i *DatasetQuadIterator) Err() error {
	return i.err
}

func (i *DatasetQuadIterator) Close() {
	for _, source := range i.sources {
		source.Close()
	}
}

// DatasetGraphIterator yields no elements and reports the graph
// enumeration stub as its status; it is fused from the start.
type DatasetGraphIterator struct{}

func (i *DatasetGraphIterator) Next() bool {
	return false
}

func (i *DatasetGraphIterator) GraphName() encoding.EncodedTerm {
	return encoding.EncodedTerm{}
}

func (i *DatasetGraphIterator) Err() error {
	return ErrGraphLookupUnsupported
}
