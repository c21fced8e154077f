package lfmap

// ChainStats summarises bucket occupancy. A long MaxChain means the bucket
// array is undersized for the key count.
type ChainStats struct {
	Buckets     int     `json:"buckets"`
	UsedBuckets int     `json:"used_buckets"`
	Keys        int     `json:"keys"`
	MaxChain    int     `json:"max_chain"`
	MeanChain   float64 `json:"mean_chain"`
	LoadFactor  float64 `json:"load_factor"`
}

// ChainStats walks every bucket and reports chain lengths. It is O(keys)
// and intended for diagnostics.
func (s *Store) ChainStats() ChainStats {
	cs := ChainStats{Buckets: len(s.buckets)}
	for i := range s.buckets {
		length := 0
		for n := s.buckets[i].Load(); n != nil; n = n.next.Load() {
			length++
		}
		if length == 0 {
			continue
		}
		cs.UsedBuckets++
		cs.Keys += length
		if length > cs.MaxChain {
			cs.MaxChain = length
		}
	}
	if cs.UsedBuckets > 0 {
		cs.MeanChain = float64(cs.Keys) / float64(cs.UsedBuckets)
	}
	if cs.Buckets > 0 {
		cs.LoadFactor = float64(cs.Keys) / float64(cs.Buckets)
	}
	return cs
}
