// Command tracegen writes synthetic cubes into the cube store so attribute
// jobs can run without field data.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"seisattrib/geom"
	"seisattrib/internal/synth"
	"seisattrib/trace"
)

func main() {
	storePath := flag.String("store", "data/cubes", "cube store directory")
	cube := flag.String("cube", "synthetic", "name of the cube to write")
	inl := flag.String("inl", "1,100", "inline range start,stop[,step]")
	crl := flag.String("crl", "1,100", "crossline range start,stop[,step]")
	z0 := flag.Float64("z0", 0, "Z of the first sample")
	zstep := flag.Float64("zstep", 0.004, "sample interval")
	samples := flag.Int("samples", 501, "samples per trace")
	freq := flag.Float64("freq", 30, "event frequency (cycles per Z unit)")
	dipInl := flag.Float64("dipinl", 0, "event shift in samples per inline step")
	dipCrl := flag.Float64("dipcrl", 0.5, "event shift in samples per crossline step")
	noise := flag.Float64("noise", 0, "gaussian noise standard deviation")
	seed := flag.Uint64("seed", 1, "noise seed")
	dips := flag.Bool("dips", true, "also write the matching dip cube")
	list := flag.Bool("list", false, "list the stored cubes and exit")
	flag.Parse()

	store, err := trace.Open(*storePath, trace.Options{})
	if err != nil {
		fatal("open store", err)
	}
	defer store.Close()

	if *list {
		if err := listCubes(store); err != nil {
			fatal("list cubes", err)
		}
		return
	}

	hor, err := parseHorRange(*inl, *crl)
	if err != nil {
		fatal("parse range", err)
	}
	spec := synth.Spec{
		Name:      strings.TrimSpace(*cube),
		Hor:       hor,
		Z0:        *z0,
		ZStep:     *zstep,
		NrSamples: *samples,
		FreqHz:    *freq,
		DipInl:    *dipInl,
		DipCrl:    *dipCrl,
		Noise:     *noise,
		Seed:      *seed,
	}
	n, err := synth.Write(store, spec)
	if err != nil {
		fatal("write cube", err)
	}
	log.Printf("Tracegen: wrote %s traces to %s", humanize.Comma(int64(n)), spec.Name)
	if *dips {
		n, err := synth.WriteDips(store, spec)
		if err != nil {
			fatal("write dip cube", err)
		}
		log.Printf("Tracegen: wrote %s traces to %s", humanize.Comma(int64(n)), synth.DipCubeName(spec.Name))
	}
}

func listCubes(store *trace.Store) error {
	names, err := store.Cubes()
	if err != nil {
		return err
	}
	for _, name := range names {
		info, err := store.Info(name)
		if err != nil {
			return err
		}
		vol := info.Volume()
		bytes := uint64(vol.TotalNrPos(false)) * uint64(info.NrSamples*info.NrComponents()) * 4
		fmt.Printf("%s: %s, %d components, ~%s\n", name, vol, info.NrComponents(), humanize.IBytes(bytes))
	}
	return nil
}

func parseHorRange(inl, crl string) (geom.HorRange, error) {
	i, err := parseLineRange(inl)
	if err != nil {
		return geom.HorRange{}, fmt.Errorf("inl: %w", err)
	}
	c, err := parseLineRange(crl)
	if err != nil {
		return geom.HorRange{}, fmt.Errorf("crl: %w", err)
	}
	return geom.HorRange{
		Start: geom.BinID{Inl: i[0], Crl: c[0]},
		Stop:  geom.BinID{Inl: i[1], Crl: c[1]},
		Step:  geom.BinID{Inl: i[2], Crl: c[2]},
	}, nil
}

func parseLineRange(text string) ([3]int, error) {
	out := [3]int{0, 0, 1}
	parts := strings.Split(text, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return out, fmt.Errorf("%q is not start,stop[,step]", text)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, fmt.Errorf("%q is not start,stop[,step]", text)
		}
		out[i] = v
	}
	if out[1] < out[0] || out[2] <= 0 {
		return out, fmt.Errorf("%q is empty", text)
	}
	return out, nil
}

func fatal(step string, err error) {
	fmt.Fprintf(os.Stderr, "tracegen: %s: %v\n", step, err)
	os.Exit(1)
}
