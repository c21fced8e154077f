package arena

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"strconv"

	"github.com/spaolacci/murmur3"
)

var goroutinePrefix = []byte("goroutine ")

// goid returns the identifier of the calling goroutine, parsed from the
// header line of its stack trace ("goroutine 42 [running]:").
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// TagFor maps a goroutine identifier to an allocation tag.
func TagFor(id uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return murmur3.Sum64(b[:])
}

// CurrentTag returns the allocation tag of the calling goroutine.
func CurrentTag() uint64 {
	return TagFor(goid())
}
