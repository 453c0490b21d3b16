package hnsw

// BitSet is the visited set used during graph traversal. It is pooled by the
// index and cleared between searches.
type BitSet struct {
	buckets []uint64
}

func NewBitSet(initialCapacity uint32) *BitSet {
	return &BitSet{
		buckets: make([]uint64, (initialCapacity>>6)+1),
	}
}

func (bs *BitSet) grow(n uint32) {
	needed := (n >> 6) + 1
	if uint32(len(bs.buckets)) < needed {
		buckets := make([]uint64, needed)
		copy(buckets, bs.buckets)
		bs.buckets = buckets
	}
}

func (bs *BitSet) Add(n uint32) {
	bucket := n >> 6
	if bucket >= uint32(len(bs.buckets)) {
		bs.grow(n)
	}
	bs.buckets[bucket] |= 1 << (n & 63)
}

func (bs *BitSet) Has(n uint32) bool {
	bucket := n >> 6
	if bucket >= uint32(len(bs.buckets)) {
		return false
	}
	return bs.buckets[bucket]&(1<<(n&63)) != 0
}

func (bs *BitSet) Clear() {
	clear(bs.buckets)
}

func (bs *BitSet) EnsureCapacity(maxVal uint32) {
	bs.grow(maxVal)
}
