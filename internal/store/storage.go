// Package store implements the indexed quad storage engine: a multi-index
// representation of an RDF quad set over a column-family key-value backend,
// answering arbitrary quad patterns with single prefix scans while keeping
// snapshot isolation for readers and serializable transactions for writers.
package store

import (
	"fmt"
	"unicode/utf8"

	"github.com/aleksaelezovic/tetra/internal/encoding"
	"github.com/aleksaelezovic/tetra/internal/storage"
	"github.com/aleksaelezovic/tetra/pkg/rdf"
)

// Column family names. On-disk layout; renaming breaks existing stores.
const (
	id2strCF = "id2str"
	spogCF   = "spog"
	posgCF   = "posg"
	ospgCF   = "ospg"
	gspoCF   = "gspo"
	gposCF   = "gpos"
	gospCF   = "gosp"
	dspoCF   = "dspo"
	dposCF   = "dpos"
	dospCF   = "dosp"
	graphsCF = "graphs"
)

// Storage owns the column-family set of one quad store. It is cheap to
// copy and safe to share across goroutines; all mutation goes through
// Transaction.
type Storage struct {
	db storage.DB

	id2str storage.ColumnFamily
	spog   storage.ColumnFamily
	posg   storage.ColumnFamily
	ospg   storage.ColumnFamily
	gspo   storage.ColumnFamily
	gpos   storage.ColumnFamily
	gosp   storage.ColumnFamily
	dspo   storage.ColumnFamily
	dpos   storage.ColumnFamily
	dosp   storage.ColumnFamily
	graphs storage.ColumnFamily
}

// ColumnFamilies declares the store's schema for the backend.
func ColumnFamilies() []storage.ColumnFamilyDefinition {
	return []storage.ColumnFamilyDefinition{
		{Name: id2strCF, UseIter: false, MinPrefixSize: 0, UnorderedWrites: true},
		{Name: spogCF, UseIter: true, MinPrefixSize: encoding.EncodedTermSize},
		{Name: posgCF, UseIter: true, MinPrefixSize: encoding.EncodedTermSize},
		// object-first layouts scan from small literals too
		{Name: ospgCF, UseIter: true, MinPrefixSize: 0},
		{Name: gspoCF, UseIter: true, MinPrefixSize: encoding.EncodedTermSize},
		{Name: gposCF, UseIter: true, MinPrefixSize: encoding.EncodedTermSize},
		{Name: gospCF, UseIter: true, MinPrefixSize: encoding.EncodedTermSize},
		{Name: dspoCF, UseIter: true, MinPrefixSize: encoding.EncodedTermSize},
		{Name: dposCF, UseIter: true, MinPrefixSize: encoding.EncodedTermSize},
		{Name: dospCF, UseIter: true, MinPrefixSize: 0},
		{Name: graphsCF, UseIter: true, MinPrefixSize: encoding.EncodedTermSize},
	}
}

// New wires a Storage over an opened backend.
func New(db storage.DB) (*Storage, error) {
	s := &Storage{db: db}
	for _, bind := range []struct {
		name string
		cf   *storage.ColumnFamily
	}{
		{id2strCF, &s.id2str},
		{spogCF, &s.spog},
		{posgCF, &s.posg},
		{ospgCF, &s.ospg},
		{gspoCF, &s.gspo},
		{gposCF, &s.gpos},
		{gospCF, &s.gosp},
		{dspoCF, &s.dspo},
		{dposCF, &s.dpos},
		{dospCF, &s.dosp},
		{graphsCF, &s.graphs},
	} {
		cf, ok := db.ColumnFamily(bind.name)
		if !ok {
			return nil, fmt.Errorf("backend is missing column family %q", bind.name)
		}
		*bind.cf = cf
	}
	return s, nil
}

// Snapshot returns a reader over a single consistent point in time.
func (s *Storage) Snapshot() *Reader {
	return &Reader{reader: s.db.Snapshot(), storage: s}
}

// Transaction runs f against a writer and commits atomically when f
// returns nil. f may run more than once on serialization conflicts and
// must not have side effects outside the writer.
func (s *Storage) Transaction(f func(*Writer) error) error {
	return s.db.Transaction(func(txn storage.Transaction) error {
		return f(&Writer{txn: txn, storage: s})
	})
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Reader answers queries against one consistent state of the store.
type Reader struct {
	reader  storage.Reader
	storage *Storage
}

// Close releases the snapshot. Iterators obtained from this reader must be
// closed first.
func (r *Reader) Close() {
	r.reader.Close()
}

// Len returns the number of stored quads: the cardinality of DSPO plus
// GSPO.
func (r *Reader) Len() (int, error) {
	n, err := r.countPrefix(r.storage.dspo)
	if err != nil {
		return 0, err
	}
	m, err := r.countPrefix(r.storage.gspo)
	if err != nil {
		return 0, err
	}
	return n + m, nil
}

func (r *Reader) IsEmpty() (bool, error) {
	for _, cf := range []storage.ColumnFamily{r.storage.dspo, r.storage.gspo} {
		it := r.reader.ScanPrefix(cf, nil)
		found := it.Next()
		err := it.Err()
		it.Close()
		if err != nil {
			return false, err
		}
		if found {
			return false, nil
		}
	}
	return true, nil
}

func (r *Reader) countPrefix(cf storage.ColumnFamily) (int, error) {
	it := r.reader.ScanPrefix(cf, nil)
	defer it.Close()
	count := 0
	for it.Next() {
		count++
	}
	return count, it.Err()
}

// Contains probes the anchor index for the quad: DSPO for the default
// graph, SPOG otherwise.
func (r *Reader) Contains(quad encoding.EncodedQuad) (bool, error) {
	if quad.GraphName.IsDefaultGraph() {
		return r.reader.ContainsKey(r.storage.dspo, encoding.OrderingDSPO.Key(quad))
	}
	return r.reader.ContainsKey(r.storage.spog, encoding.OrderingSPOG.Key(quad))
}

// QuadsForPattern returns the quads matching the pattern, nil components
// being wildcards. Exactly one index serves each of the sixteen bound-set
// cases with a single prefix scan; when the graph is unbound the
// default-graph index is chained before the named-graph one.
func (r *Reader) QuadsForPattern(subject, predicate, object, graphName *encoding.EncodedTerm) *QuadIterator {
	if subject != nil {
		if predicate != nil {
			if object != nil {
				if graphName != nil {
					return r.quadsForSubjectPredicateObjectGraph(subject, predicate, object, graphName)
				}
				return r.quadsForSubjectPredicateObject(subject, predicate, object)
			}
			if graphName != nil {
				return r.quadsForSubjectPredicateGraph(subject, predicate, graphName)
			}
			return r.quadsForSubjectPredicate(subject, predicate)
		}
		if object != nil {
			if graphName != nil {
				return r.quadsForSubjectObjectGraph(subject, object, graphName)
			}
			return r.quadsForSubjectObject(subject, object)
		}
		if graphName != nil {
			return r.quadsForSubjectGraph(subject, graphName)
		}
		return r.quadsForSubject(subject)
	}
	if predicate != nil {
		if object != nil {
			if graphName != nil {
				return r.quadsForPredicateObjectGraph(predicate, object, graphName)
			}
			return r.quadsForPredicateObject(predicate, object)
		}
		if graphName != nil {
			return r.quadsForPredicateGraph(predicate, graphName)
		}
		return r.quadsForPredicate(predicate)
	}
	if object != nil {
		if graphName != nil {
			return r.quadsForObjectGraph(object, graphName)
		}
		return r.quadsForObject(object)
	}
	if graphName != nil {
		return r.quadsForGraph(graphName)
	}
	return r.Quads()
}

// Quads scans the whole store, default-graph triples first.
func (r *Reader) Quads() *QuadIterator {
	return chainedQuadIterator(
		r.indexQuads(r.storage.dspo, encoding.OrderingDSPO, nil),
		r.indexQuads(r.storage.gspo, encoding.OrderingGSPO, nil),
	)
}

// QuadsInNamedGraphs scans every quad outside the default graph.
func (r *Reader) QuadsInNamedGraphs() *QuadIterator {
	return singleQuadIterator(r.indexQuads(r.storage.gspo, encoding.OrderingGSPO, nil))
}

func (r *Reader) quadsForSubject(s *encoding.EncodedTerm) *QuadIterator {
	return chainedQuadIterator(
		r.indexQuads(r.storage.dspo, encoding.OrderingDSPO, encoding.EncodeKey(*s)),
		r.indexQuads(r.storage.spog, encoding.OrderingSPOG, encoding.EncodeKey(*s)),
	)
}

func (r *Reader) quadsForSubjectPredicate(s, p *encoding.EncodedTerm) *QuadIterator {
	return chainedQuadIterator(
		r.indexQuads(r.storage.dspo, encoding.OrderingDSPO, encoding.EncodeKey(*s, *p)),
		r.indexQuads(r.storage.spog, encoding.OrderingSPOG, encoding.EncodeKey(*s, *p)),
	)
}

func (r *Reader) quadsForSubjectPredicateObject(s, p, o *encoding.EncodedTerm) *QuadIterator {
	return chainedQuadIterator(
		r.indexQuads(r.storage.dspo, encoding.OrderingDSPO, encoding.EncodeKey(*s, *p, *o)),
		r.indexQuads(r.storage.spog, encoding.OrderingSPOG, encoding.EncodeKey(*s, *p, *o)),
	)
}

func (r *Reader) quadsForSubjectObject(s, o *encoding.EncodedTerm) *QuadIterator {
	return chainedQuadIterator(
		r.indexQuads(r.storage.dosp, encoding.OrderingDOSP, encoding.EncodeKey(*o, *s)),
		r.indexQuads(r.storage.ospg, encoding.OrderingOSPG, encoding.EncodeKey(*o, *s)),
	)
}

func (r *Reader) quadsForPredicate(p *encoding.EncodedTerm) *QuadIterator {
	return chainedQuadIterator(
		r.indexQuads(r.storage.dpos, encoding.OrderingDPOS, encoding.EncodeKey(*p)),
		r.indexQuads(r.storage.posg, encoding.OrderingPOSG, encoding.EncodeKey(*p)),
	)
}

func (r *Reader) quadsForPredicateObject(p, o *encoding.EncodedTerm) *QuadIterator {
	return chainedQuadIterator(
		r.indexQuads(r.storage.dpos, encoding.OrderingDPOS, encoding.EncodeKey(*p, *o)),
		r.indexQuads(r.storage.posg, encoding.OrderingPOSG, encoding.EncodeKey(*p, *o)),
	)
}

func (r *Reader) quadsForObject(o *encoding.EncodedTerm) *QuadIterator {
	return chainedQuadIterator(
		r.indexQuads(r.storage.dosp, encoding.OrderingDOSP, encoding.EncodeKey(*o)),
		r.indexQuads(r.storage.ospg, encoding.OrderingOSPG, encoding.EncodeKey(*o)),
	)
}

func (r *Reader) quadsForGraph(g *encoding.EncodedTerm) *QuadIterator {
	if g.IsDefaultGraph() {
		return singleQuadIterator(r.indexQuads(r.storage.dspo, encoding.OrderingDSPO, nil))
	}
	return singleQuadIterator(r.indexQuads(r.storage.gspo, encoding.OrderingGSPO, encoding.EncodeKey(*g)))
}

func (r *Reader) quadsForSubjectGraph(s, g *encoding.EncodedTerm) *QuadIterator {
	if g.IsDefaultGraph() {
		return singleQuadIterator(r.indexQuads(r.storage.dspo, encoding.OrderingDSPO, encoding.EncodeKey(*s)))
	}
	return singleQuadIterator(r.indexQuads(r.storage.gspo, encoding.OrderingGSPO, encoding.EncodeKey(*g, *s)))
}

func (r *Reader) quadsForSubjectPredicateGraph(s, p, g *encoding.EncodedTerm) *QuadIterator {
	if g.IsDefaultGraph() {
		return singleQuadIterator(r.indexQuads(r.storage.dspo, encoding.OrderingDSPO, encoding.EncodeKey(*s, *p)))
	}
	return singleQuadIterator(r.indexQuads(r.storage.gspo, encoding.OrderingGSPO, encoding.EncodeKey(*g, *s, *p)))
}

func (r *Reader) quadsForSubjectPredicateObjectGraph(s, p, o, g *encoding.EncodedTerm) *QuadIterator {
	if g.IsDefaultGraph() {
		return singleQuadIterator(r.indexQuads(r.storage.dspo, encoding.OrderingDSPO, encoding.EncodeKey(*s, *p, *o)))
	}
	return singleQuadIterator(r.indexQuads(r.storage.gspo, encoding.OrderingGSPO, encoding.EncodeKey(*g, *s, *p, *o)))
}

func (r *Reader) quadsForSubjectObjectGraph(s, o, g *encoding.EncodedTerm) *QuadIterator {
	if g.IsDefaultGraph() {
		return singleQuadIterator(r.indexQuads(r.storage.dosp, encoding.OrderingDOSP, encoding.EncodeKey(*o, *s)))
	}
	return singleQuadIterator(r.indexQuads(r.storage.gosp, encoding.OrderingGOSP, encoding.EncodeKey(*g, *o, *s)))
}

func (r *Reader) quadsForPredicateGraph(p, g *encoding.EncodedTerm) *QuadIterator {
	if g.IsDefaultGraph() {
		return singleQuadIterator(r.indexQuads(r.storage.dpos, encoding.OrderingDPOS, encoding.EncodeKey(*p)))
	}
	return singleQuadIterator(r.indexQuads(r.storage.gpos, encoding.OrderingGPOS, encoding.EncodeKey(*g, *p)))
}

func (r *Reader) quadsForPredicateObjectGraph(p, o, g *encoding.EncodedTerm) *QuadIterator {
	if g.IsDefaultGraph() {
		return singleQuadIterator(r.indexQuads(r.storage.dpos, encoding.OrderingDPOS, encoding.EncodeKey(*p, *o)))
	}
	return singleQuadIterator(r.indexQuads(r.storage.gpos, encoding.OrderingGPOS, encoding.EncodeKey(*g, *p, *o)))
}

func (r *Reader) quadsForObjectGraph(o, g *encoding.EncodedTerm) *QuadIterator {
	if g.IsDefaultGraph() {
		return singleQuadIterator(r.indexQuads(r.storage.dosp, encoding.OrderingDOSP, encoding.EncodeKey(*o)))
	}
	return singleQuadIterator(r.indexQuads(r.storage.gosp, encoding.OrderingGOSP, encoding.EncodeKey(*g, *o)))
}

func (r *Reader) indexQuads(cf storage.ColumnFamily, ordering encoding.QuadOrdering, prefix []byte) *decodingQuadIterator {
	return &decodingQuadIterator{
		reader:   r.reader,
		cf:       cf,
		prefix:   prefix,
		ordering: ordering,
	}
}

// NamedGraphs enumerates the graph registry.
func (r *Reader) NamedGraphs() *GraphIterator {
	return &GraphIterator{iter: r.reader.ScanPrefix(r.storage.graphs, nil)}
}

func (r *Reader) ContainsNamedGraph(graphName encoding.EncodedTerm) (bool, error) {
	return r.reader.ContainsKey(r.storage.graphs, encoding.EncodeKey(graphName))
}

// GetStr resolves an interned string hash to its lexical form.
func (r *Reader) GetStr(key encoding.StrHash) (string, bool, error) {
	value, ok, err := r.reader.Get(r.storage.id2str, key[:])
	if err != nil || !ok {
		return "", false, err
	}
	if !utf8.Valid(value) {
		return "", false, &encoding.CorruptionError{Msg: fmt.Sprintf("id2str entry for %x is not valid UTF-8", key)}
	}
	return string(value), true, nil
}

func (r *Reader) ContainsStr(key encoding.StrHash) (bool, error) {
	return r.reader.ContainsKey(r.storage.id2str, key[:])
}

// DecodeQuad resolves an encoded quad's lexical forms through this reader.
func (r *Reader) DecodeQuad(quad encoding.EncodedQuad) (*rdf.Quad, error) {
	return encoding.DecodeQuad(quad, r)
}

// Validate cross-checks the storage invariants: every anchor-index key has
// its sibling-index keys, every named-graph quad's graph is registered,
// and every hash-carrying term resolves through id2str.
func (r *Reader) Validate() error {
	it := r.indexQuads(r.storage.dspo, encoding.OrderingDSPO, nil)
	defer it.Close()
	for it.Next() {
		quad := it.Quad()
		if err := r.validateQuadTerms(quad); err != nil {
			return err
		}
		for _, sibling := range []struct {
			cf       storage.ColumnFamily
			ordering encoding.QuadOrdering
		}{
			{r.storage.dpos, encoding.OrderingDPOS},
			{r.storage.dosp, encoding.OrderingDOSP},
		} {
			ok, err := r.reader.ContainsKey(sibling.cf, sibling.ordering.Key(quad))
			if err != nil {
				return err
			}
			if !ok {
				return &encoding.CorruptionError{Msg: fmt.Sprintf("missing %s row for a dspo quad", sibling.ordering)}
			}
		}
	}
	if err := it.Err(); err != nil {
		return err
	}

	git := r.indexQuads(r.storage.gspo, encoding.OrderingGSPO, nil)
	defer git.Close()
	for git.Next() {
		quad := git.Quad()
		if err := r.validateQuadTerms(quad); err != nil {
			return err
		}
		for _, sibling := range []struct {
			cf       storage.ColumnFamily
			ordering encoding.QuadOrdering
		}{
			{r.storage.spog, encoding.OrderingSPOG},
			{r.storage.posg, encoding.OrderingPOSG},
			{r.storage.ospg, encoding.OrderingOSPG},
			{r.storage.gpos, encoding.OrderingGPOS},
			{r.storage.gosp, encoding.OrderingGOSP},
		} {
			ok, err := r.reader.ContainsKey(sibling.cf, sibling.ordering.Key(quad))
			if err != nil {
				return err
			}
			if !ok {
				return &encoding.CorruptionError{Msg: fmt.Sprintf("missing %s row for a gspo quad", sibling.ordering)}
			}
		}
		registered, err := r.ContainsNamedGraph(quad.GraphName)
		if err != nil {
			return err
		}
		if !registered {
			return &encoding.CorruptionError{Msg: "named-graph quad whose graph is not registered"}
		}
	}
	return git.Err()
}

func (r *Reader) validateQuadTerms(quad encoding.EncodedQuad) error {
	if _, err := r.DecodeQuad(quad); err != nil {
		return err
	}
	return nil
}

// Writer mutates the store inside one serializable transaction.
type Writer struct {
	txn     storage.Transaction
	storage *Storage
}

// Reader returns a view over the transaction's own uncommitted state.
func (w *Writer) Reader() *Reader {
	return &Reader{reader: w.txn.Reader(), storage: w.storage}
}

// Insert adds a quad and reports whether it was not already present.
func (w *Writer) Insert(quad *rdf.Quad) (bool, error) {
	if err := rdf.ValidateQuad(quad); err != nil {
		return false, err
	}
	encoded, err := encoding.EncodeQuad(quad)
	if err != nil {
		return false, err
	}

	if encoded.GraphName.IsDefaultGraph() {
		// The for-update probe locks the probe-then-write sequence
		exists, err := w.txn.ContainsKeyForUpdate(w.storage.dspo, encoding.OrderingDSPO.Key(encoded))
		if err != nil || exists {
			return false, err
		}
		for _, index := range []struct {
			cf       storage.ColumnFamily
			ordering encoding.QuadOrdering
		}{
			{w.storage.dspo, encoding.OrderingDSPO},
			{w.storage.dpos, encoding.OrderingDPOS},
			{w.storage.dosp, encoding.OrderingDOSP},
		} {
			if err := w.txn.PutEmpty(index.cf, index.ordering.Key(encoded)); err != nil {
				return false, err
			}
		}
		if err := w.insertQuadTerms(quad, encoded); err != nil {
			return false, err
		}
		return true, nil
	}

	exists, err := w.txn.ContainsKeyForUpdate(w.storage.spog, encoding.OrderingSPOG.Key(encoded))
	if err != nil || exists {
		return false, err
	}
	for _, index := range []struct {
		cf       storage.ColumnFamily
		ordering encoding.QuadOrdering
	}{
		{w.storage.spog, encoding.OrderingSPOG},
		{w.storage.posg, encoding.OrderingPOSG},
		{w.storage.ospg, encoding.OrderingOSPG},
		{w.storage.gspo, encoding.OrderingGSPO},
		{w.storage.gpos, encoding.OrderingGPOS},
		{w.storage.gosp, encoding.OrderingGOSP},
	} {
		if err := w.txn.PutEmpty(index.cf, index.ordering.Key(encoded)); err != nil {
			return false, err
		}
	}
	if err := w.insertQuadTerms(quad, encoded); err != nil {
		return false, err
	}

	graphKey := encoding.EncodeKey(encoded.GraphName)
	registered, err := w.txn.ContainsKeyForUpdate(w.storage.graphs, graphKey)
	if err != nil {
		return false, err
	}
	if !registered {
		if err := w.txn.PutEmpty(w.storage.graphs, graphKey); err != nil {
			return false, err
		}
		if err := w.insertTerm(quad.Graph, encoded.GraphName); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (w *Writer) insertQuadTerms(quad *rdf.Quad, encoded encoding.EncodedQuad) error {
	if err := w.insertTerm(quad.Subject, encoded.Subject); err != nil {
		return err
	}
	if err := w.insertTerm(quad.Predicate, encoded.Predicate); err != nil {
		return err
	}
	return w.insertTerm(quad.Object, encoded.Object)
}

func (w *Writer) insertTerm(term rdf.Term, encoded encoding.EncodedTerm) error {
	return encoding.InsertTerm(term, encoded, w.insertStr)
}

// insertStr binds a lexical form to its hash. Bindings are write-only:
// existing rows are never rewritten.
func (w *Writer) insertStr(key encoding.StrHash, value string) error {
	exists, err := w.txn.Reader().ContainsKey(w.storage.id2str, key[:])
	if err != nil || exists {
		return err
	}
	return w.txn.Put(w.storage.id2str, key[:], []byte(value))
}

// Remove deletes a quad and reports whether it was present.
func (w *Writer) Remove(quad *rdf.Quad) (bool, error) {
	encoded, err := encoding.EncodeQuad(quad)
	if err != nil {
		return false, err
	}
	return w.removeEncoded(encoded)
}

// removeEncoded is the exact dual of Insert. id2str rows are not
// reclaimed.
func (w *Writer) removeEncoded(encoded encoding.EncodedQuad) (bool, error) {
	if encoded.GraphName.IsDefaultGraph() {
		exists, err := w.txn.ContainsKeyForUpdate(w.storage.dspo, encoding.OrderingDSPO.Key(encoded))
		if err != nil || !exists {
			return false, err
		}
		for _, index := range []struct {
			cf       storage.ColumnFamily
			ordering encoding.QuadOrdering
		}{
			{w.storage.dspo, encoding.OrderingDSPO},
			{w.storage.dpos, encoding.OrderingDPOS},
			{w.storage.dosp, encoding.OrderingDOSP},
		} {
			if err := w.txn.Delete(index.cf, index.ordering.Key(encoded)); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	exists, err := w.txn.ContainsKeyForUpdate(w.storage.spog, encoding.OrderingSPOG.Key(encoded))
	if err != nil || !exists {
		return false, err
	}
	for _, index := range []struct {
		cf       storage.ColumnFamily
		ordering encoding.QuadOrdering
	}{
		{w.storage.spog, encoding.OrderingSPOG},
		{w.storage.posg, encoding.OrderingPOSG},
		{w.storage.ospg, encoding.OrderingOSPG},
		{w.storage.gspo, encoding.OrderingGSPO},
		{w.storage.gpos, encoding.OrderingGPOS},
		{w.storage.gosp, encoding.OrderingGOSP},
	} {
		if err := w.txn.Delete(index.cf, index.ordering.Key(encoded)); err != nil {
			return false, err
		}
	}
	return true, nil
}

// InsertNamedGraph registers a graph, reporting whether it was new. The
// graph may be empty.
func (w *Writer) InsertNamedGraph(graphName rdf.Term) (bool, error) {
	encoded, err := encodeGraphName(graphName)
	if err != nil {
		return false, err
	}

	key := encoding.EncodeKey(encoded)
	exists, err := w.txn.ContainsKeyForUpdate(w.storage.graphs, key)
	if err != nil || exists {
		return false, err
	}
	if err := w.txn.PutEmpty(w.storage.graphs, key); err != nil {
		return false, err
	}
	if err := w.insertTerm(graphName, encoded); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveNamedGraph removes a graph's quads and its registry row,
// reporting whether the graph was registered.
func (w *Writer) RemoveNamedGraph(graphName rdf.Term) (bool, error) {
	encoded, err := encodeGraphName(graphName)
	if err != nil {
		return false, err
	}
	return w.removeEncodedNamedGraph(encoded)
}

func (w *Writer) removeEncodedNamedGraph(graphName encoding.EncodedTerm) (bool, error) {
	key := encoding.EncodeKey(graphName)
	// Probe first: this locks the graph row against a concurrent insert
	exists, err := w.txn.ContainsKeyForUpdate(w.storage.graphs, key)
	if err != nil || !exists {
		return false, err
	}
	if err := w.removeGraphQuads(graphName); err != nil {
		return false, err
	}
	if err := w.txn.Delete(w.storage.graphs, key); err != nil {
		return false, err
	}
	return true, nil
}

// ClearGraph removes every quad in a graph but keeps its registry row.
func (w *Writer) ClearGraph(graphName rdf.Term) error {
	if rdf.IsDefaultGraph(graphName) {
		return w.removeGraphQuads(encoding.EncodedDefaultGraph)
	}
	encoded, err := encodeGraphName(graphName)
	if err != nil {
		return err
	}
	key := encoding.EncodeKey(encoded)
	// The probe locks the graph so no quad lands in it concurrently
	exists, err := w.txn.ContainsKeyForUpdate(w.storage.graphs, key)
	if err != nil || !exists {
		return err
	}
	return w.removeGraphQuads(encoded)
}

func (w *Writer) removeGraphQuads(graphName encoding.EncodedTerm) error {
	it := w.Reader().quadsForGraph(&graphName)
	defer it.Close()
	for it.Next() {
		if _, err := w.removeEncoded(it.Quad()); err != nil {
			return err
		}
	}
	return it.Err()
}

// ClearAllNamedGraphs removes every quad outside the default graph,
// keeping registry rows.
func (w *Writer) ClearAllNamedGraphs() error {
	it := w.Reader().QuadsInNamedGraphs()
	defer it.Close()
	for it.Next() {
		if _, err := w.removeEncoded(it.Quad()); err != nil {
			return err
		}
	}
	return it.Err()
}

// ClearAllGraphs removes every quad, keeping registry rows.
func (w *Writer) ClearAllGraphs() error {
	it := w.Reader().Quads()
	defer it.Close()
	for it.Next() {
		if _, err := w.removeEncoded(it.Quad()); err != nil {
			return err
		}
	}
	return it.Err()
}

// RemoveAllNamedGraphs unregisters every named graph, cascading to its
// quads.
func (w *Writer) RemoveAllNamedGraphs() error {
	return w.forEachNamedGraph(func(graphName encoding.EncodedTerm) error {
		_, err := w.removeEncodedNamedGraph(graphName)
		return err
	})
}

// Clear empties the store: all named graphs with their quads, then the
// default graph's triples.
func (w *Writer) Clear() error {
	if err := w.RemoveAllNamedGraphs(); err != nil {
		return err
	}
	return w.removeGraphQuads(encoding.EncodedDefaultGraph)
}

// forEachNamedGraph snapshots the registry before applying f: f mutates
// the store, and a write transaction carries at most one live scan.
func (w *Writer) forEachNamedGraph(f func(graphName encoding.EncodedTerm) error) error {
	it := w.Reader().NamedGraphs()
	var graphNames []encoding.EncodedTerm
	for it.Next() {
		graphNames = append(graphNames, it.GraphName())
	}
	err := it.Err()
	it.Close()
	if err != nil {
		return err
	}
	for _, graphName := range graphNames {
		if err := f(graphName); err != nil {
			return err
		}
	}
	return nil
}

func encodeGraphName(graphName rdf.Term) (encoding.EncodedTerm, error) {
	switch graphName.(type) {
	case *rdf.NamedNode, *rdf.BlankNode:
	default:
		return encoding.EncodedTerm{}, fmt.Errorf("named graph name must be an IRI or blank node, got %T", graphName)
	}
	encoded, _, err := encoding.EncodeTerm(graphName)
	return encoded, err
}
