package trace

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	jsoniter "github.com/json-iterator/go"

	"seisattrib/geom"
)

const (
	traceVersion    = 1
	traceHeaderSize = 1 + 2 + 4 + 8 + 8
)

const (
	metaPrefix  = "m|"
	tracePrefix = "t|"
)

var errInvalidTrace = errors.New("trace: invalid trace encoding")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultCacheSizeBytes        = int64(64 << 20)  // 64MB shared block cache for trace reads
	defaultBloomFilterBits       = 10               // Bits per key for bloom filters on SSTables
	defaultMemTableSizeBytes     = uint64(32 << 20) // 32MB write buffer for bulk cube loads
	defaultL0CompactionThreshold = 4
	defaultL0StopWritesThreshold = 16
	defaultWriteQueueDepth       = 64 // Buffered channel depth feeding the single writer
)

// Options controls Pebble tuning and writer buffering for the cube store.
// Zero or negative fields are replaced with defaults.
type Options struct {
	CacheSizeBytes        int64
	BloomFilterBitsPerKey int
	MemTableSizeBytes     uint64
	L0CompactionThreshold int
	L0StopWritesThreshold int
	WriteQueueDepth       int
}

// Store keeps cube metadata and traces in a Pebble database. All writes go
// through one goroutine; reads use iterators directly.
type Store struct {
	db     *pebble.DB
	writes chan writeRequest
	done   chan struct{}
	cache  *pebble.Cache

	mu     sync.Mutex
	closed bool
}

type writeKind int

const (
	writeCube writeKind = iota
	writeTraces
	writeDeleteCube
)

type writeRequest struct {
	kind   writeKind
	info   CubeInfo
	cube   string
	traces []Trace
	resp   chan error
}

func sanitizeOptions(opts Options) Options {
	if opts.CacheSizeBytes <= 0 {
		opts.CacheSizeBytes = defaultCacheSizeBytes
	}
	if opts.BloomFilterBitsPerKey <= 0 {
		opts.BloomFilterBitsPerKey = defaultBloomFilterBits
	}
	if opts.MemTableSizeBytes <= 0 {
		opts.MemTableSizeBytes = defaultMemTableSizeBytes
	}
	if opts.L0CompactionThreshold <= 0 {
		opts.L0CompactionThreshold = defaultL0CompactionThreshold
	}
	if opts.L0StopWritesThreshold <= opts.L0CompactionThreshold {
		opts.L0StopWritesThreshold = max(defaultL0StopWritesThreshold, opts.L0CompactionThreshold+4)
	}
	if opts.WriteQueueDepth <= 0 {
		opts.WriteQueueDepth = defaultWriteQueueDepth
	}
	return opts
}

// Purpose: Open or create the cube store.
// Key aspects: Creates the directory, applies bloom filters to every level and
// starts the single writer goroutine.
// Upstream: seisattrib startup, tracegen.
// Downstream: pebble.Open, writeLoop.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("trace: store path is empty")
	}
	opts = sanitizeOptions(opts)
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("trace: %s exists and is not a directory", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("trace: stat store path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("trace: ensure store directory: %w", err)
	}

	pebbleOpts := &pebble.Options{
		Cache:                 pebble.NewCache(opts.CacheSizeBytes),
		MemTableSize:          opts.MemTableSizeBytes,
		L0CompactionThreshold: opts.L0CompactionThreshold,
		L0StopWritesThreshold: opts.L0StopWritesThreshold,
	}
	level := pebble.LevelOptions{
		FilterPolicy: bloom.FilterPolicy(opts.BloomFilterBitsPerKey),
		FilterType:   pebble.TableFilter,
	}
	pebbleOpts.Levels = make([]pebble.LevelOptions, 7)
	for i := range pebbleOpts.Levels {
		pebbleOpts.Levels[i] = level
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		pebbleOpts.Cache.Unref()
		return nil, fmt.Errorf("trace: open store: %w", err)
	}
	s := &Store{
		db:     db,
		writes: make(chan writeRequest, opts.WriteQueueDepth),
		done:   make(chan struct{}),
		cache:  pebbleOpts.Cache,
	}
	go s.writeLoop()
	return s, nil
}

// Close drains the writer and closes the database. Readers must be closed first.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.closeWriter() {
		<-s.done
	}
	err := s.db.Close()
	if s.cache != nil {
		s.cache.Unref()
		s.cache = nil
	}
	return err
}

// PutCube stores cube metadata. Existing traces are kept.
func (s *Store) PutCube(info CubeInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	return s.submit(writeRequest{kind: writeCube, info: info})
}

// PutTraces writes traces of a registered cube in one synced batch.
func (s *Store) PutTraces(cube string, traces []Trace) error {
	if len(traces) == 0 {
		return nil
	}
	return s.submit(writeRequest{kind: writeTraces, cube: cube, traces: traces})
}

// DeleteCube removes the metadata and every trace of cube.
func (s *Store) DeleteCube(cube string) error {
	return s.submit(writeRequest{kind: writeDeleteCube, cube: cube})
}

// Info returns the metadata of cube.
func (s *Store) Info(cube string) (CubeInfo, error) {
	if s == nil || s.db == nil {
		return CubeInfo{}, errors.New("trace: store is not initialized")
	}
	return readInfo(s.db, cube)
}

// Cubes lists the stored cube names in key order.
func (s *Store) Cubes() ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("trace: store is not initialized")
	}
	iter, err := s.db.NewIter(iterOptionsForPrefix([]byte(metaPrefix)))
	if err != nil {
		return nil, fmt.Errorf("trace: cubes iterator: %w", err)
	}
	defer iter.Close()
	var names []string
	for iter.First(); iter.Valid(); iter.Next() {
		names = append(names, string(iter.Key()[len(metaPrefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("trace: iterate cubes: %w", err)
	}
	return names, nil
}

// Purpose: Open a sequential reader over a stored cube.
// Key aspects: Iterator bounds cover the selected inlines; crosslines outside
// the selection are skipped while reading.
// Upstream: Storage attribute Prepare.
// Downstream: Pebble iterator, decodeTrace.
func (s *Store) Open(cube string, sel geom.HorRange) (Reader, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("trace: store is not initialized")
	}
	info, err := readInfo(s.db, cube)
	if err != nil {
		return nil, err
	}
	sel = sel.Limit(info.Hor)
	if sel.IsEmpty() {
		return &sliceReader{pos: geom.UndefBinID, idx: -1}, nil
	}
	opts := &pebble.IterOptions{
		LowerBound: traceKey(cube, sel.Start),
		UpperBound: traceKey(cube, geom.BinID{Inl: sel.Stop.Inl, Crl: sel.Stop.Crl + 1}),
	}
	iter, err := s.db.NewIter(opts)
	if err != nil {
		return nil, fmt.Errorf("trace: reader iterator: %w", err)
	}
	return &storeReader{iter: iter, cube: cube, sel: sel, pos: geom.UndefBinID}, nil
}

func (s *Store) submit(req writeRequest) error {
	if s == nil || s.db == nil {
		return errors.New("trace: store is not initialized")
	}
	req.resp = make(chan error, 1)
	if err := s.enqueue(req); err != nil {
		return err
	}
	return <-req.resp
}

func (s *Store) enqueue(req writeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.writes <- req
	return nil
}

func (s *Store) closeWriter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.writes)
	return true
}

func (s *Store) writeLoop() {
	defer close(s.done)
	for req := range s.writes {
		var err error
		switch req.kind {
		case writeCube:
			err = s.applyCube(req.info)
		case writeTraces:
			err = s.applyTraces(req.cube, req.traces)
		case writeDeleteCube:
			err = s.applyDeleteCube(req.cube)
		default:
			err = errors.New("trace: unknown write request")
		}
		if req.resp != nil {
			req.resp <- err
		}
	}
}

func (s *Store) applyCube(info CubeInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("trace: encode cube %s: %w", info.Name, err)
	}
	if err := s.db.Set(metaKey(info.Name), raw, pebble.Sync); err != nil {
		return fmt.Errorf("trace: write cube %s: %w", info.Name, err)
	}
	return nil
}

// applyTraces commits all traces of one request in a single synced batch.
func (s *Store) applyTraces(cube string, traces []Trace) error {
	info, err := readInfo(s.db, cube)
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for i := range traces {
		tr := &traces[i]
		if err := checkTrace(info, tr); err != nil {
			return err
		}
		if !info.Hor.Includes(tr.Pos) {
			return fmt.Errorf("trace: %s: position %s outside cube", cube, tr.Pos)
		}
		if err := batch.Set(traceKey(cube, tr.Pos), encodeTrace(tr), nil); err != nil {
			return fmt.Errorf("trace: batch set %s %s: %w", cube, tr.Pos, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("trace: batch commit: %w", err)
	}
	return nil
}

func (s *Store) applyDeleteCube(cube string) error {
	if _, err := readInfo(s.db, cube); err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	lower := cubeTracePrefix(cube)
	if err := batch.DeleteRange(lower, prefixUpperBound(lower), nil); err != nil {
		return fmt.Errorf("trace: delete traces of %s: %w", cube, err)
	}
	if err := batch.Delete(metaKey(cube), nil); err != nil {
		return fmt.Errorf("trace: delete cube %s: %w", cube, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("trace: batch commit: %w", err)
	}
	return nil
}

func readInfo(db *pebble.DB, cube string) (CubeInfo, error) {
	value, closer, err := db.Get(metaKey(cube))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return CubeInfo{}, fmt.Errorf("%w: %s", ErrNotFound, cube)
		}
		return CubeInfo{}, fmt.Errorf("trace: get cube %s: %w", cube, err)
	}
	defer closer.Close()
	var info CubeInfo
	if err := json.Unmarshal(value, &info); err != nil {
		return CubeInfo{}, fmt.Errorf("trace: decode cube %s: %w", cube, err)
	}
	return info, nil
}

type storeReader struct {
	iter    *pebble.Iterator
	cube    string
	sel     geom.HorRange
	started bool
	pos     geom.BinID
	cur     *Trace
}

func (r *storeReader) Next() (bool, error) {
	if r.iter == nil {
		return false, nil
	}
	for {
		var valid bool
		if !r.started {
			r.started = true
			valid = r.iter.First()
		} else {
			valid = r.iter.Next()
		}
		if !valid {
			r.cur = nil
			if err := r.iter.Error(); err != nil {
				return false, fmt.Errorf("trace: read %s: %w", r.cube, err)
			}
			return false, nil
		}
		pos, ok := parseTraceKey(r.iter.Key(), r.cube)
		if !ok {
			return false, fmt.Errorf("trace: %s: malformed key", r.cube)
		}
		if !r.sel.Includes(pos) {
			continue
		}
		tr, err := decodeTrace(r.iter.Value())
		if err != nil {
			return false, fmt.Errorf("trace: %s at %s: %w", r.cube, pos, err)
		}
		tr.Pos = pos
		r.pos = pos
		r.cur = tr
		return true, nil
	}
}

func (r *storeReader) Position() geom.BinID {
	return r.pos
}

func (r *storeReader) Trace() *Trace {
	return r.cur
}

func (r *storeReader) Close() error {
	if r.iter == nil {
		return nil
	}
	err := r.iter.Close()
	r.iter = nil
	return err
}

// Value layout: version u8, components u16, samples u32, z0 f64, zstep f64,
// then components*samples big-endian float32 values.
func encodeTrace(tr *Trace) []byte {
	nc := len(tr.Components)
	ns := tr.NrSamples()
	buf := make([]byte, traceHeaderSize+4*nc*ns)
	buf[0] = traceVersion
	binary.BigEndian.PutUint16(buf[1:], uint16(nc))
	binary.BigEndian.PutUint32(buf[3:], uint32(ns))
	binary.BigEndian.PutUint64(buf[7:], math.Float64bits(tr.Z0))
	binary.BigEndian.PutUint64(buf[15:], math.Float64bits(tr.ZStep))
	off := traceHeaderSize
	for _, comp := range tr.Components {
		for _, v := range comp {
			binary.BigEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	return buf
}

func decodeTrace(raw []byte) (*Trace, error) {
	if len(raw) < traceHeaderSize || raw[0] != traceVersion {
		return nil, errInvalidTrace
	}
	nc := int(binary.BigEndian.Uint16(raw[1:]))
	ns := int(binary.BigEndian.Uint32(raw[3:]))
	if len(raw) != traceHeaderSize+4*nc*ns {
		return nil, errInvalidTrace
	}
	tr := &Trace{
		Z0:         math.Float64frombits(binary.BigEndian.Uint64(raw[7:])),
		ZStep:      math.Float64frombits(binary.BigEndian.Uint64(raw[15:])),
		Components: make([][]float32, nc),
	}
	off := traceHeaderSize
	for c := range tr.Components {
		comp := make([]float32, ns)
		for i := range comp {
			comp[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[off:]))
			off += 4
		}
		tr.Components[c] = comp
	}
	return tr, nil
}

func metaKey(cube string) []byte {
	return []byte(metaPrefix + cube)
}

func cubeTracePrefix(cube string) []byte {
	key := make([]byte, 0, len(tracePrefix)+len(cube)+1)
	key = append(key, tracePrefix...)
	key = append(key, cube...)
	return append(key, 0)
}

// traceKey appends inline and crossline as sign-flipped big-endian integers
// so that byte order equals numeric order.
func traceKey(cube string, pos geom.BinID) []byte {
	key := cubeTracePrefix(cube)
	key = binary.BigEndian.AppendUint64(key, uint64(pos.Inl)^(1<<63))
	return binary.BigEndian.AppendUint64(key, uint64(pos.Crl)^(1<<63))
}

func parseTraceKey(key []byte, cube string) (geom.BinID, bool) {
	prefix := cubeTracePrefix(cube)
	if !bytes.HasPrefix(key, prefix) || len(key) != len(prefix)+16 {
		return geom.BinID{}, false
	}
	rest := key[len(prefix):]
	inl := int64(binary.BigEndian.Uint64(rest) ^ (1 << 63))
	crl := int64(binary.BigEndian.Uint64(rest[8:]) ^ (1 << 63))
	return geom.BinID{Inl: int(inl), Crl: int(crl)}, true
}

func iterOptionsForPrefix(prefix []byte) *pebble.IterOptions {
	return &pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)}
}

func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
