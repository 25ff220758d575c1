package propagation

import (
	"fmt"
)

type bigBuffer struct {
	data    []byte
	params  []int32
	units   int
	flags   int
	written bool
	pending bool
	ageTick int
}

// advance moves the buffer one tick forward: fresh data stops being pending,
// older data gets one tick older.
func (b *bigBuffer) advance() {
	if b.pending {
		b.pending = false
		return
	}
	if b.written {
		b.ageTick++
	}
}

type bigAttachment struct {
	binding  BindingID
	n        int
	maxSize  int
	private  bool
	delivery Delivery
	buf      *bigBuffer
}

// OpenBig attaches big channel n of the binding's source.
func (l *Local) OpenBig(id BindingID, n, paramSlots, maxSize int, cache CachePolicy, delivery Delivery) (BigHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bindings[id]
	if !ok {
		return -1, fmt.Errorf("%w: %d", ErrUnknownBinding, id)
	}
	if b.mode != ModeBig {
		return -1, fmt.Errorf("%w: big channel on %s binding", ErrWrongMode, b.mode)
	}
	if maxSize < 0 || paramSlots < 0 {
		return -1, fmt.Errorf("%w: max size %d, params %d", ErrOutOfBounds, maxSize, paramSlots)
	}

	s := l.sources[b.ref]
	att := &bigAttachment{binding: id, n: n, maxSize: maxSize, delivery: delivery}
	if cache == CacheSharable {
		buf, ok := s.bigs[n]
		if !ok {
			buf = &bigBuffer{}
			s.bigs[n] = buf
		}
		att.buf = buf
	} else {
		att.buf = &bigBuffer{}
		att.private = true
	}
	if len(att.buf.params) < paramSlots {
		grown := make([]int32, paramSlots)
		copy(grown, att.buf.params)
		att.buf.params = grown
	}
	s.buffers[att.buf] = struct{}{}

	h := l.nextBig
	l.nextBig++
	l.bigs[h] = att
	b.bigs = append(b.bigs, h)

	l.logger.Debug("Big channel attached.", "binding", id, "channel", n, "handle", h, "max_size", maxSize, "shared", !att.private)
	return h, nil
}

func (l *Local) attachmentLocked(h BigHandle) (*bigAttachment, error) {
	att, ok := l.bigs[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBig, h)
	}
	return att, nil
}

func checkRange(ofs, size, limit, bufLen int) error {
	if ofs < 0 || size < 0 || ofs > limit || size > limit-ofs {
		return fmt.Errorf("%w: %d bytes at %d with limit %d", ErrOutOfBounds, size, ofs, limit)
	}
	if bufLen < size {
		return fmt.Errorf("%w: %d < %d", ErrShortBuffer, bufLen, size)
	}
	return nil
}

// ReadBig copies up to size bytes starting at ofs into buf and returns the
// number of bytes copied. Bytes past the written length are not copied.
func (l *Local) ReadBig(h BigHandle, ofs, size int, buf []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	att, err := l.attachmentLocked(h)
	if err != nil {
		return -1, err
	}
	if err := checkRange(ofs, size, att.maxSize, len(buf)); err != nil {
		return -1, err
	}
	data := att.buf.data
	if ofs >= len(data) {
		return 0, nil
	}
	return copy(buf[:size], data[ofs:]), nil
}

// WriteBig stores size bytes of buf at ofs, growing the payload as needed.
// units is kept as a hint of the payload's element size.
func (l *Local) WriteBig(h BigHandle, ofs, size int, buf []byte, units int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	att, err := l.attachmentLocked(h)
	if err != nil {
		return -1, err
	}
	if err := checkRange(ofs, size, att.maxSize, len(buf)); err != nil {
		return -1, err
	}

	b := att.buf
	if end := ofs + size; end > len(b.data) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[ofs:], buf[:size])
	b.units = units
	b.flags = 0
	b.written = true
	b.pending = true
	b.ageTick = 0
	return size, nil
}

// BigStats reports the buffer's age and flags.
func (l *Local) BigStats(h BigHandle) (age, flags int, ok bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	att, err := l.attachmentLocked(h)
	if err != nil {
		return 0, 0, false, err
	}
	if !att.buf.written {
		return 0, 0, false, nil
	}
	return att.buf.ageTick, att.buf.flags, true, nil
}

// GetBigParams reads len(vals) parameters starting at idx.
func (l *Local) GetBigParams(h BigHandle, idx int, vals []int32) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	att, err := l.attachmentLocked(h)
	if err != nil {
		return -1, err
	}
	params := att.buf.params
	if idx < 0 || idx > len(params) || len(vals) > len(params)-idx {
		return -1, fmt.Errorf("%w: %d params at %d of %d", ErrOutOfBounds, len(vals), idx, len(params))
	}
	return copy(vals, params[idx:]), nil
}

// SetBigParams writes vals into the parameters starting at idx.
func (l *Local) SetBigParams(h BigHandle, idx int, vals []int32) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	att, err := l.attachmentLocked(h)
	if err != nil {
		return -1, err
	}
	params := att.buf.params
	if idx < 0 || idx > len(params) || len(vals) > len(params)-idx {
		return -1, fmt.Errorf("%w: %d params at %d of %d", ErrOutOfBounds, len(vals), idx, len(params))
	}
	return copy(params[idx:], vals), nil
}

// SetBigFlags sets the result flags reported by BigStats for every attachment
// of big channel n on source ref, as a producer reporting an error would.
func (l *Local) SetBigFlags(ref string, n, flags int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if buf, ok := l.sourceLocked(ref).bigs[n]; ok {
		buf.flags = flags
	}
}
