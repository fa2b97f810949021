package mem

import (
	"fmt"
	"io"
)

// StreamMemoryIO is the streaming file-like view Memory.CreateFileobj
// returns: reads/writes advance an internal cursor over a memory range
// starting at addr. If size is negative the view is unbounded (reads never
// hit EOF on their own, writes are never rejected for running past an
// end); otherwise reads past addr+size return io.EOF and writes past
// addr+size fail, matching spec.md §4.3's create_fileobj contract.
type StreamMemoryIO struct {
	mem    *Memory
	addr   uint64
	size   int64 // -1 = unbounded
	cursor uint64
}

func newStreamMemoryIO(m *Memory, addr uint64, size int64) *StreamMemoryIO {
	return &StreamMemoryIO{mem: m, addr: addr, size: size, cursor: addr}
}

// Read implements io.Reader.
func (s *StreamMemoryIO) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := uint64(len(p))
	if s.size >= 0 {
		end := s.addr + uint64(s.size)
		if s.cursor >= end {
			return 0, io.EOF
		}
		if remaining := end - s.cursor; n > remaining {
			n = remaining
		}
	}
	data, err := s.mem.Read(s.cursor, n)
	if err != nil {
		return 0, err
	}
	copy(p, data)
	s.cursor += uint64(len(data))
	return len(data), nil
}

// Write implements io.Writer. Writing past the bound of a size-bounded view
// fails without partially writing.
func (s *StreamMemoryIO) Write(p []byte) (int, error) {
	if s.size >= 0 {
		end := s.addr + uint64(s.size)
		if s.cursor+uint64(len(p)) > end {
			return 0, fmt.Errorf("mem: write of %d bytes at 0x%x exceeds file-object bound 0x%x", len(p), s.cursor, end)
		}
	}
	if err := s.mem.Write(s.cursor, p); err != nil {
		return 0, err
	}
	s.cursor += uint64(len(p))
	return len(p), nil
}

// Seek implements io.Seeker relative to addr (whence io.SeekStart) or the
// current cursor (io.SeekCurrent).
func (s *StreamMemoryIO) Seek(offset int64, whence int) (int64, error) {
	var base uint64
	switch whence {
	case io.SeekStart:
		base = s.addr
	case io.SeekCurrent:
		base = s.cursor
	case io.SeekEnd:
		if s.size < 0 {
			return 0, fmt.Errorf("mem: cannot seek from end of an unbounded file-object")
		}
		base = s.addr + uint64(s.size)
	default:
		return 0, fmt.Errorf("mem: invalid whence %d", whence)
	}
	s.cursor = uint64(int64(base) + offset)
	return int64(s.cursor - s.addr), nil
}
