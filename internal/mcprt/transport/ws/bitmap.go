package ws

import "math/bits"

// occupancyBitmap tracks which of a fixed number of client slots are in
// use. One bit per slot, packed into 32-bit words so a free slot can be
// found with a single TrailingZeros32 scan per word instead of a
// bit-by-bit walk.
type occupancyBitmap struct {
	words []uint32
	size  int
}

func newOccupancyBitmap(size int) *occupancyBitmap {
	return &occupancyBitmap{words: make([]uint32, (size+31)/32), size: size}
}

// acquire finds and marks the lowest-numbered free slot, returning its
// index and false if every slot is already taken.
func (b *occupancyBitmap) acquire() (int, bool) {
	for w := range b.words {
		word := b.words[w]
		if word == ^uint32(0) {
			continue
		}
		bit := bits.TrailingZeros32(^word)
		idx := w*32 + bit
		if idx >= b.size {
			continue
		}
		b.words[w] = word | (1 << uint(bit))
		return idx, true
	}
	return 0, false
}

// release marks a slot free again.
func (b *occupancyBitmap) release(idx int) {
	w, bit := idx/32, idx%32
	b.words[w] &^= 1 << uint(bit)
}

// count reports the number of slots currently marked occupied.
func (b *occupancyBitmap) count() int {
	n := 0
	for _, word := range b.words {
		n += bits.OnesCount32(word)
	}
	return n
}
