package handlers

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog/log"
)

// bufferPool provides reusable byte buffers for request bodies and responses.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 1024))
	},
}

func getBuffer() *bytes.Buffer {
	v := bufferPool.Get()
	buf, ok := v.(*bytes.Buffer)
	if !ok {
		log.Warn().Interface("got_type", v).Msg("Unexpected type from buffer pool")
		return bytes.NewBuffer(make([]byte, 0, 1024))
	}
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	// Tab lists are small; do not let one oversized body pin memory.
	if buf.Cap() > 64<<10 {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
