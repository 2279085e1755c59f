// Package core provides byte buffer pooling for key construction.
package core

import "sync"

// ByteBufferPool recycles the scratch buffers used to assemble client keys.
// Buffers that grow past maxCap are dropped rather than pooled so one
// oversized origin cannot pin memory.
type ByteBufferPool struct {
	pool   sync.Pool
	maxCap int
}

// NewByteBufferPool constructs a byte buffer pool.
func NewByteBufferPool(maxCap int) *ByteBufferPool {
	if maxCap <= 0 {
		maxCap = 256
	}
	p := &ByteBufferPool{maxCap: maxCap}
	p.pool.New = func() any {
		buf := make([]byte, 0, maxCap)
		return &buf
	}
	return p
}

// Get returns a zero-length buffer ready for appends.
func (p *ByteBufferPool) Get() []byte {
	if p == nil {
		return make([]byte, 0)
	}
	buf, ok := p.pool.Get().(*[]byte)
	if !ok || buf == nil {
		return make([]byte, 0, p.maxCap)
	}
	return (*buf)[:0]
}

// Put recycles a buffer for a later Get.
func (p *ByteBufferPool) Put(b []byte) {
	if p == nil || cap(b) == 0 || cap(b) > p.maxCap {
		return
	}
	b = b[:0]
	p.pool.Put(&b)
}
