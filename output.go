package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"slices"

	jsoniter "github.com/json-iterator/go"

	"seisattrib/attrib"
	"seisattrib/config"
	"seisattrib/geom"
	"seisattrib/trace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cubeStore is the part of the cube store the outputs need.
type cubeStore interface {
	trace.Writer
	Info(cube string) (trace.CubeInfo, error)
	DeleteCube(cube string) error
}

// traceRecord is one JSON line.
type traceRecord struct {
	Target  string    `json:"target"`
	Inl     int       `json:"inl"`
	Crl     int       `json:"crl"`
	Z0      float64   `json:"z0"`
	Step    float64   `json:"step"`
	Samples []float32 `json:"samples"`
}

type jsonLinesSink struct {
	path    string
	file    *os.File // nil for stdout
	w       *bufio.Writer
	enc     *jsoniter.Encoder
	written int
}

// Purpose: Open the JSON-lines destination.
// Key aspects: "-" writes to stdout; files are truncated.
// Upstream: newOutputs.
// Downstream: os.Create and jsoniter encoder.
func newJSONLinesSink(path string) (*jsonLinesSink, error) {
	var dst io.Writer = os.Stdout
	s := &jsonLinesSink{path: path}
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create json lines output: %w", err)
		}
		s.file = f
		dst = f
	}
	s.w = bufio.NewWriterSize(dst, 256<<10)
	s.enc = json.NewEncoder(s.w)
	return s, nil
}

func (s *jsonLinesSink) write(target string, o attrib.Output) error {
	rec := traceRecord{
		Target:  target,
		Inl:     o.Pos.Inl,
		Crl:     o.Pos.Crl,
		Z0:      o.Z0,
		Step:    o.Step,
		Samples: o.Samples,
	}
	if err := s.enc.Encode(&rec); err != nil {
		return fmt.Errorf("json lines: %w", err)
	}
	s.written++
	return nil
}

func (s *jsonLinesSink) close() error {
	err := s.w.Flush()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// cubeSink stores one target's traces as a new cube. The cube is registered
// when the first trace arrives, since only then the output window is known.
type cubeSink struct {
	name  string
	store cubeStore
	hor   geom.HorRange
	batch int
	w     *trace.CubeWriter
}

// Purpose: Persist one computed trace.
// Key aspects: Traces whose window differs from the first one are placed by
// Z into the cube window; samples outside it are dropped, gaps read 0.
// Upstream: outputs.Write.
// Downstream: trace.CubeWriter.Write.
func (c *cubeSink) write(o attrib.Output) error {
	if c.w == nil {
		info := trace.CubeInfo{
			Name:      c.name,
			Hor:       c.hor,
			Z0:        o.Z0,
			ZStep:     o.Step,
			NrSamples: len(o.Samples),
		}
		w, err := trace.NewCubeWriter(c.store, info, c.batch)
		if err != nil {
			return err
		}
		c.w = w
	}
	info := c.w.Info()
	series := make([]float32, info.NrSamples)
	off := int(math.Round((o.Z0 - info.Z0) / info.ZStep))
	for i, v := range o.Samples {
		if j := i + off; j >= 0 && j < len(series) {
			series[j] = v
		}
	}
	return c.w.Write(trace.Trace{Pos: o.Pos, Z0: info.Z0, ZStep: info.ZStep, Components: [][]float32{series}})
}

func (c *cubeSink) close() error {
	if c.w == nil {
		return nil
	}
	return c.w.Close()
}

// outputs fans computed traces out to the configured destinations.
type outputs struct {
	targets []string
	jsonl   *jsonLinesSink
	cubes   []*cubeSink // per root, nil when no output cube is configured
}

// Purpose: Build the output destinations of a job.
// Key aspects: An existing output cube is replaced; overwriting a cube the
// job reads from is refused.
// Upstream: runJob.
// Downstream: newJSONLinesSink, cubeStore.DeleteCube.
func newOutputs(job config.JobConfig, store cubeStore, hor geom.HorRange, targets, inputs []string) (*outputs, error) {
	out := &outputs{targets: targets}
	if job.OutputCube != "" {
		for _, target := range targets {
			name := job.OutputCube + "-" + target
			if slices.Contains(inputs, name) {
				return nil, fmt.Errorf("output cube %s is also an input", name)
			}
			if _, err := store.Info(name); err == nil {
				log.Printf("Output: replacing existing cube %s", name)
				if err := store.DeleteCube(name); err != nil {
					return nil, err
				}
			} else if !errors.Is(err, trace.ErrNotFound) {
				return nil, err
			}
			out.cubes = append(out.cubes, &cubeSink{name: name, store: store, hor: hor, batch: job.WriterBatch})
		}
	}
	if job.JSONLines != "" {
		sink, err := newJSONLinesSink(job.JSONLines)
		if err != nil {
			return nil, err
		}
		out.jsonl = sink
	}
	return out, nil
}

func (o *outputs) Write(tr attrib.Output) error {
	if o.jsonl != nil {
		if err := o.jsonl.write(o.targets[tr.Root], tr); err != nil {
			return err
		}
	}
	if o.cubes != nil {
		return o.cubes[tr.Root].write(tr)
	}
	return nil
}

// Close flushes every destination and returns the first error.
func (o *outputs) Close() error {
	var firstErr error
	for _, c := range o.cubes {
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if o.jsonl != nil {
		if err := o.jsonl.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Summary describes what was written.
func (o *outputs) Summary() []string {
	var lines []string
	for _, c := range o.cubes {
		n := 0
		if c.w != nil {
			n = c.w.Written()
		}
		lines = append(lines, fmt.Sprintf("cube %s: %d traces", c.name, n))
	}
	if o.jsonl != nil {
		lines = append(lines, fmt.Sprintf("json lines %s: %d traces", o.jsonl.path, o.jsonl.written))
	}
	return lines
}
