package pipeline

import (
	"math/bits"

	"pimphoto/internal"
)

// Deduper decides, per canonical code, whether a processed image is a new
// photo or a duplicate of one already accepted. State is scoped to a single
// run and thrown away with it. Candidates must be offered in ranked order:
// the first of a duplicate cluster wins.
type Deduper struct {
	maxDistance int
	byCode      map[string]*codeState
}

type codeState struct {
	hashes       map[[16]byte]struct{}
	fingerprints []uint64
}

func NewDeduper(maxDistance int) *Deduper {
	return &Deduper{maxDistance: maxDistance, byCode: map[string]*codeState{}}
}

// Accept returns false when the image is an exact duplicate (same content
// hash) or a near duplicate (fingerprint within maxDistance bits) of an
// image already accepted for this code. On true, both keys are recorded.
func (d *Deduper) Accept(code string, p *internal.ProcessedImage) bool {
	state, ok := d.byCode[code]
	if !ok {
		state = &codeState{hashes: map[[16]byte]struct{}{}}
		d.byCode[code] = state
	}

	if _, dup := state.hashes[p.ContentHash]; dup {
		return false
	}
	for _, fp := range state.fingerprints {
		if bits.OnesCount64(fp^p.Fingerprint) <= d.maxDistance {
			return false
		}
	}

	state.hashes[p.ContentHash] = struct{}{}
	state.fingerprints = append(state.fingerprints, p.Fingerprint)
	return true
}

// AcceptedCount reports how many images have been accepted for a code.
func (d *Deduper) AcceptedCount(code string) int {
	if state, ok := d.byCode[code]; ok {
		return len(state.fingerprints)
	}
	return 0
}
