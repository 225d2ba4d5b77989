package ws

import (
	"encoding/binary"

	"github.com/valyala/bytebufferpool"
)

const allocAlignment = 4 * 1024

// recvAssembler accumulates fragments of one in-progress WebSocket
// message. Growth is 1.5x, rounded up to a 4 KiB boundary, to amortize
// reallocation without overshooting by much on small messages.
type recvAssembler struct {
	buf          []byte
	pool         *bytebufferpool.Pool
	poolBufBytes int
	pooled       *bytebufferpool.ByteBuffer
}

func newRecvAssembler(pool *bytebufferpool.Pool, poolBufBytes int) *recvAssembler {
	return &recvAssembler{pool: pool, poolBufBytes: poolBufBytes}
}

// reset discards any accumulated data, returning a pooled buffer if one
// was checked out for this message.
func (a *recvAssembler) reset() {
	if a.pooled != nil {
		a.pool.Put(a.pooled)
		a.pooled = nil
	}
	a.buf = nil
}

// append grows the assembler's buffer as needed and copies frag onto
// the end, returning the current total.
func (a *recvAssembler) append(frag []byte) []byte {
	needed := len(a.buf) + len(frag)
	if cap(a.buf) < needed {
		a.grow(needed)
	}
	a.buf = append(a.buf, frag...)
	return a.buf
}

func (a *recvAssembler) grow(needed int) {
	if a.pooled == nil && needed <= a.poolBufBytes {
		a.pooled = a.pool.Get()
		a.pooled.B = a.pooled.B[:0]
		if cap(a.pooled.B) < needed {
			a.pooled.B = make([]byte, 0, alignUp(needed))
		}
		newBuf := append(a.pooled.B[:0], a.buf...)
		a.buf = newBuf
		return
	}

	grown := alignUp(maxInt(needed, cap(a.buf)+cap(a.buf)/2))
	newBuf := make([]byte, 0, grown)
	newBuf = append(newBuf, a.buf...)
	a.buf = newBuf
}

func alignUp(n int) int {
	if n%allocAlignment == 0 {
		return n
	}
	return (n/allocAlignment + 1) * allocAlignment
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// stripLengthPrefix removes a leading 4-byte big-endian length prefix
// when it plausibly describes the remaining payload, matching clients
// that frame their WebSocket messages the same way they'd frame a raw
// TCP stream.
func stripLengthPrefix(data []byte) []byte {
	if len(data) < 4 {
		return data
	}
	prefixed := binary.BigEndian.Uint32(data[:4])
	if int(prefixed) == len(data)-4 {
		return data[4:]
	}
	return data
}
