package index

import "slices"

// Merge folds other into x: postings and tombstones are unioned and raw
// vectors copied, with other's vectors replacing x's for ids present in both.
// Both indexes should share the quantizer; a mismatch is logged and the
// merge proceeds.
func (x *Index) Merge(other *Index) {
	if other == nil || other == x {
		return
	}
	if !x.q.Equal(other.q) {
		x.logger.Error("merging indexes built from different quantizers")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	for key, p := range other.postings {
		if mine, ok := x.postings[key]; ok {
			mine.Or(p)
		} else {
			x.postings[key] = p.Clone()
		}
	}
	x.tombstones.Or(other.tombstones)
	for id, vs := range other.vectors {
		x.vectors[id] = slices.Clone(vs)
	}

	x.logger.Info("index merged", "terms", len(x.postings), "documents", len(x.vectors))
}
