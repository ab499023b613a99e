package adb

import (
	"io"
	"os"
	"sync/atomic"
)

// syncChunkSize is the size of each local-file read/remote-write step in
// DoSyncLocalFile.
const syncChunkSize = 32 * 1024

// AsyncWriteResult tracks the progress of a DoSyncLocalFile push,
// matching the progress-channel shape a cmd/goadb progress bar drives
// off of.
type AsyncWriteResult struct {
	TotalSize int64

	// C ticks after each chunk is written; a tick is dropped when the
	// previous one has not been received yet. Receivers should drain it
	// in a select alongside DoneCopy/Done.
	C chan struct{}

	// DoneCopy closes once every byte has been handed to the remote
	// writer (the sync SEND payload is fully sent, but the server may
	// not have finalized the file yet).
	DoneCopy chan struct{}

	// Done closes once the remote writer has been closed and the
	// server has acknowledged the transfer.
	Done chan struct{}

	written int64
	err     error
}

// BytesCompleted returns the number of bytes written so far.
func (r *AsyncWriteResult) BytesCompleted() int64 {
	return atomic.LoadInt64(&r.written)
}

// Progress returns BytesCompleted/TotalSize, or 0 if TotalSize is 0.
func (r *AsyncWriteResult) Progress() float64 {
	if r.TotalSize == 0 {
		return 0
	}
	return float64(r.BytesCompleted()) / float64(r.TotalSize)
}

// Err returns the transfer's terminal error, if any. It is only valid to
// call after Done has closed.
func (r *AsyncWriteResult) Err() error {
	return r.err
}

func (r *AsyncWriteResult) tick() {
	select {
	case r.C <- struct{}{}:
	default:
	}
}

// DoSyncLocalFile pushes localPath to remotePath on the device via the
// sync: service, returning immediately with an AsyncWriteResult that
// reports progress as the copy proceeds in the background.
func (c *Device) DoSyncLocalFile(remotePath, localPath string, perms os.FileMode) (*AsyncWriteResult, error) {
	local, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}

	info, err := local.Stat()
	if err != nil {
		local.Close()
		return nil, err
	}

	writer, err := c.OpenWrite(remotePath, perms, MtimeOfClose)
	if err != nil {
		local.Close()
		return nil, err
	}

	result := &AsyncWriteResult{
		TotalSize: info.Size(),
		C:         make(chan struct{}, 1),
		DoneCopy:  make(chan struct{}),
		Done:      make(chan struct{}),
	}

	go func() {
		defer local.Close()
		defer close(result.Done)

		buf := make([]byte, syncChunkSize)
		_, copyErr := io.CopyBuffer(writerFunc(func(p []byte) (int, error) {
			n, werr := writer.Write(p)
			if n > 0 {
				atomic.AddInt64(&result.written, int64(n))
				result.tick()
			}
			return n, werr
		}), local, buf)
		close(result.DoneCopy)

		closeErr := writer.Close()
		if copyErr != nil {
			result.err = copyErr
		} else {
			result.err = closeErr
		}
	}()

	return result, nil
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
