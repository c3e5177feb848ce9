package encoding

// QuadOrdering identifies one of the nine index key layouts. The letter
// order of the name is the term order of the key bytes; D layouts omit the
// graph position (implicitly the default graph).
type QuadOrdering int

const (
	OrderingDSPO QuadOrdering = iota
	OrderingDPOS
	OrderingDOSP
	OrderingSPOG
	OrderingPOSG
	OrderingOSPG
	OrderingGSPO
	OrderingGPOS
	OrderingGOSP
)

func (o QuadOrdering) String() string {
	switch o {
	case OrderingDSPO:
		return "dspo"
	case OrderingDPOS:
		return "dpos"
	case OrderingDOSP:
		return "dosp"
	case OrderingSPOG:
		return "spog"
	case OrderingPOSG:
		return "posg"
	case OrderingOSPG:
		return "ospg"
	case OrderingGSPO:
		return "gspo"
	case OrderingGPOS:
		return "gpos"
	case OrderingGOSP:
		return "gosp"
	default:
		return "unknown"
	}
}

// TermCount returns how many terms a key of this ordering carries.
func (o QuadOrdering) TermCount() int {
	switch o {
	case OrderingDSPO, OrderingDPOS, OrderingDOSP:
		return 3
	default:
		return 4
	}
}

// Key produces the index key for quad under this ordering.
func (o QuadOrdering) Key(quad EncodedQuad) []byte {
	switch o {
	case OrderingDSPO:
		return EncodeKey(quad.Subject, quad.Predicate, quad.Object)
	case OrderingDPOS:
		return EncodeKey(quad.Predicate, quad.Object, quad.Subject)
	case OrderingDOSP:
		return EncodeKey(quad.Object, quad.Subject, quad.Predicate)
	case OrderingSPOG:
		return EncodeKey(quad.Subject, quad.Predicate, quad.Object, quad.GraphName)
	case OrderingPOSG:
		return EncodeKey(quad.Predicate, quad.Object, quad.Subject, quad.GraphName)
	case OrderingOSPG:
		return EncodeKey(quad.Object, quad.Subject, quad.Predicate, quad.GraphName)
	case OrderingGSPO:
		return EncodeKey(quad.GraphName, quad.Subject, quad.Predicate, quad.Object)
	case OrderingGPOS:
		return EncodeKey(quad.GraphName, quad.Predicate, quad.Object, quad.Subject)
	case OrderingGOSP:
		return EncodeKey(quad.GraphName, quad.Object, quad.Subject, quad.Predicate)
	default:
		return nil
	}
}

// DecodeKey is the inverse of Key: it splits the fixed-width fields of an
// index key and rebuilds the quad in SPOG position order. D layouts decode
// with the default graph as graph name.
func (o QuadOrdering) DecodeKey(key []byte) (EncodedQuad, error) {
	var quad EncodedQuad

	want := o.TermCount() * EncodedTermSize
	if len(key) != want {
		return quad, corruptionf("%s key has %d bytes, want %d", o, len(key), want)
	}

	var terms [4]EncodedTerm
	for i := 0; i < o.TermCount(); i++ {
		copy(terms[i][:], key[i*EncodedTermSize:(i+1)*EncodedTermSize])
	}

	switch o {
	case OrderingDSPO:
		quad.Subject, quad.Predicate, quad.Object = terms[0], terms[1], terms[2]
	case OrderingDPOS:
		quad.Predicate, quad.Object, quad.Subject = terms[0], terms[1], terms[2]
	case OrderingDOSP:
		quad.Object, quad.Subject, quad.Predicate = terms[0], terms[1], terms[2]
	case OrderingSPOG:
		quad.Subject, quad.Predicate, quad.Object, quad.GraphName = terms[0], terms[1], terms[2], terms[3]
	case OrderingPOSG:
		quad.Predicate, quad.Object, quad.Subject, quad.GraphName = terms[0], terms[1], terms[2], terms[3]
	case OrderingOSPG:
		quad.Object, quad.Subject, quad.Predicate, quad.GraphName = terms[0], terms[1], terms[2], terms[3]
	case OrderingGSPO:
		quad.GraphName, quad.Subject, quad.Predicate, quad.Object = terms[0], terms[1], terms[2], terms[3]
	case OrderingGPOS:
		quad.GraphName, quad.Predicate, quad.Object, quad.Subject = terms[0], terms[1], terms[2], terms[3]
	case OrderingGOSP:
		quad.GraphName, quad.Object, quad.Subject, quad.Predicate = terms[0], terms[1], terms[2], terms[3]
	default:
		return quad, corruptionf("unknown quad ordering %d", o)
	}

	return quad, nil
}

// EncodeKey concatenates term images into a key or scan prefix. Any prefix
// of whole terms is a legal scan prefix.
func EncodeKey(terms ...EncodedTerm) []byte {
	result := make([]byte, 0, len(terms)*EncodedTermSize)
	for _, term := range terms {
		result = append(result, term[:]...)
	}
	return result
}

// DecodeGraphKey decodes a graphs registry key (a single term image).
func DecodeGraphKey(key []byte) (EncodedTerm, error) {
	var term EncodedTerm
	if len(key) != EncodedTermSize {
		return term, corruptionf("graphs key has %d bytes, want %d", len(key), EncodedTermSize)
	}
	copy(term[:], key)
	return term, nil
}
