package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/r2relay/internal/common"
)

// chunkSize is the granularity at which the byte counter is checked.
const chunkSize = 8 << 10

// spillFile is a temporary file holding one transfer's payload. It is
// removed by release.
type spillFile struct {
	f    *os.File
	size int64
}

func newSpillFile(dir string) (*spillFile, error) {
	f, err := os.CreateTemp(dir, "r2relay-*.part")
	if err != nil {
		return nil, fmt.Errorf("create spill file: %w", err)
	}
	return &spillFile{f: f}, nil
}

// errSourceRead marks failures of the reader being spilled, as opposed to
// the spill file itself.
var errSourceRead = errors.New("read source")

// fill copies r into the file chunk by chunk. It stops with
// common.ErrSizeLimitExceeded as soon as more than limit bytes have arrived.
func (s *spillFile) fill(ctx context.Context, r io.Reader, limit int64) error {
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			s.size += int64(n)
			if s.size > limit {
				return fmt.Errorf("%w: more than %d bytes", common.ErrSizeLimitExceeded, limit)
			}
			if _, err := s.f.Write(buf[:n]); err != nil {
				return fmt.Errorf("write spill file: %w", err)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("%w: %w", errSourceRead, rerr)
		}
	}
}

// reader rewinds the file for reading.
func (s *spillFile) reader() (io.ReadSeeker, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind spill file: %w", err)
	}
	return s.f, nil
}

// release closes and removes the file. It is safe to call more than once.
func (s *spillFile) release() error {
	if s.f == nil {
		return nil
	}
	name := s.f.Name()
	cerr := s.f.Close()
	s.f = nil
	rerr := os.Remove(name)
	if errors.Is(rerr, os.ErrNotExist) {
		rerr = nil
	}
	return errors.Join(cerr, rerr)
}
