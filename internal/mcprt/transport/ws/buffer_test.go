package ws

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/valyala/bytebufferpool"
)

func TestRecvAssemblerAppendAccumulates(t *testing.T) {
	a := newRecvAssembler(&bytebufferpool.Pool{}, 4096)

	got := a.append([]byte("hello "))
	got = a.append([]byte("world"))

	if string(got) != "hello world" {
		t.Fatalf("assembled = %q, want %q", got, "hello world")
	}
}

func TestRecvAssemblerResetClearsBuffer(t *testing.T) {
	a := newRecvAssembler(&bytebufferpool.Pool{}, 4096)
	a.append([]byte("data"))
	a.reset()

	if len(a.buf) != 0 {
		t.Fatalf("buf after reset = %v, want empty", a.buf)
	}
}

func TestRecvAssemblerGrowsPastPoolThreshold(t *testing.T) {
	a := newRecvAssembler(&bytebufferpool.Pool{}, 8)
	big := bytes.Repeat([]byte("x"), 1<<16)

	got := a.append(big)
	if !bytes.Equal(got, big) {
		t.Fatal("assembled buffer does not match input for a large message")
	}
}

func TestStripLengthPrefixStripsWhenLengthMatches(t *testing.T) {
	payload := []byte("the quick brown fox")
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(len(payload)))
	framed := append(prefix, payload...)

	got := stripLengthPrefix(framed)
	if !bytes.Equal(got, payload) {
		t.Fatalf("stripLengthPrefix = %q, want %q", got, payload)
	}
}

func TestStripLengthPrefixLeavesUnprefixedDataAlone(t *testing.T) {
	data := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	got := stripLengthPrefix(data)
	if !bytes.Equal(got, data) {
		t.Fatalf("stripLengthPrefix modified unprefixed data: %q", got)
	}
}

func TestStripLengthPrefixShortInput(t *testing.T) {
	data := []byte{1, 2}
	if got := stripLengthPrefix(data); !bytes.Equal(got, data) {
		t.Fatalf("stripLengthPrefix(short) = %v, want unchanged", got)
	}
}
