package supervisor

import (
	"io"
	"os"
)

// fileCloser guards against double-close; os.Pipe returns *os.File and
// calling Close twice on an exec.Cmd-managed descriptor returns an error we
// don't want surfacing as a real failure.
type fileCloser struct {
	f      *os.File
	closed bool
}

func wrapFile(f *os.File) *fileCloser { return &fileCloser{f: f} }

func (c *fileCloser) Close() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	return c.f.Close()
}

// readPipe drains r in chunkSize-sized reads, forwarding each non-empty
// read and a final EOF/error event, tagged with instance so the loop can
// recognize and drop output from a superseded restart.
func readPipe(sheriffID int32, instance int64, r *os.File, chunkSize int, out chan<- OutputEvent) {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out <- OutputEvent{SheriffID: sheriffID, Text: string(buf[:n]), instance: instance}
		}
		if err != nil {
			out <- OutputEvent{SheriffID: sheriffID, EOF: true, Err: readErr(err), instance: instance}
			return
		}
	}
}

// readErr normalizes io.EOF (expected, orderly close) to nil so the loop
// can tell a hangup from an error: both end the reader with a terminal
// EOF event, but only a genuine error carries a non-nil Err, and only that
// case is turned into a human-readable notice by the publisher.
func readErr(err error) error {
	if err == io.EOF {
		return nil
	}
	return err
}
