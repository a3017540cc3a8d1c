package trace

import "fmt"

const defaultWriterBatch = 256

// CubeWriter buffers traces of one cube and flushes them into a Writer in
// batches.
type CubeWriter struct {
	dst     Writer
	info    CubeInfo
	batch   int
	pending []Trace
	written int
}

// NewCubeWriter registers info with dst and returns a writer for its traces.
// A non-positive batch uses the default batch size.
func NewCubeWriter(dst Writer, info CubeInfo, batch int) (*CubeWriter, error) {
	if batch <= 0 {
		batch = defaultWriterBatch
	}
	if err := dst.PutCube(info); err != nil {
		return nil, fmt.Errorf("trace: register output cube: %w", err)
	}
	return &CubeWriter{dst: dst, info: info, batch: batch}, nil
}

// Info returns the cube being written.
func (w *CubeWriter) Info() CubeInfo {
	return w.info
}

// Write queues one trace, flushing when the batch is full.
func (w *CubeWriter) Write(tr Trace) error {
	if err := checkTrace(w.info, &tr); err != nil {
		return err
	}
	w.pending = append(w.pending, tr)
	if len(w.pending) >= w.batch {
		return w.Flush()
	}
	return nil
}

// Flush writes every queued trace.
func (w *CubeWriter) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.dst.PutTraces(w.info.Name, w.pending); err != nil {
		return err
	}
	w.written += len(w.pending)
	w.pending = nil
	return nil
}

// Written returns the number of traces flushed so far.
func (w *CubeWriter) Written() int {
	return w.written
}

// Close flushes the remaining traces.
func (w *CubeWriter) Close() error {
	return w.Flush()
}
