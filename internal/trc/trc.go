// Package trc serializes 3D marker trajectories in the TRC track-row-column
// interchange format consumed by downstream biomechanics tooling.
package trc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"mocap/internal/triangulate"
)

// Options controls header metadata.
type Options struct {
	// Units is the distance unit declared in the header; empty means "m".
	Units string
	// StartFrame is the 1-based index of the first exported frame in the
	// original recording; 0 means 1.
	StartFrame int
}

func (o Options) units() string {
	if o.Units == "" {
		return "m"
	}
	return o.Units
}

func (o Options) startFrame() int {
	if o.StartFrame <= 0 {
		return 1
	}
	return o.StartFrame
}

// Write serializes the result. Markers appear in the result's declared name
// order; missing points become empty fields so consumers can distinguish
// unknown from origin.
func Write(w io.Writer, name string, res *triangulate.Result, opts Options) error {
	if len(res.Names) == 0 {
		return fmt.Errorf("trc: no markers to write")
	}
	if res.Rate <= 0 {
		return fmt.Errorf("trc: frame rate %v must be positive", res.Rate)
	}
	frames := len(res.Trajectories[res.Names[0]])
	for _, marker := range res.Names {
		if len(res.Trajectories[marker]) != frames {
			return fmt.Errorf("trc: marker %s has %d frames, want %d", marker, len(res.Trajectories[marker]), frames)
		}
	}

	bw := bufio.NewWriter(w)
	rate := strconv.FormatFloat(res.Rate, 'f', 2, 64)

	fmt.Fprintf(bw, "PathFileType\t4\t(X/Y/Z)\t%s\n", name)
	fmt.Fprintln(bw, "DataRate\tCameraRate\tNumFrames\tNumMarkers\tUnits\tOrigDataRate\tOrigDataStartFrame\tOrigNumFrames")
	fmt.Fprintf(bw, "%s\t%s\t%d\t%d\t%s\t%s\t%d\t%d\n",
		rate, rate, frames, len(res.Names), opts.units(), rate, opts.startFrame(), frames)

	bw.WriteString("Frame#\tTime")
	for _, marker := range res.Names {
		bw.WriteString("\t" + marker + "\t\t")
	}
	bw.WriteByte('\n')
	bw.WriteString("\t")
	for i := range res.Names {
		fmt.Fprintf(bw, "\tX%d\tY%d\tZ%d", i+1, i+1, i+1)
	}
	bw.WriteByte('\n')
	bw.WriteByte('\n')

	for i := 0; i < frames; i++ {
		fmt.Fprintf(bw, "%d\t%s", opts.startFrame()+i, strconv.FormatFloat(float64(i)/res.Rate, 'f', 6, 64))
		for _, marker := range res.Names {
			pt := res.Trajectories[marker][i]
			if !pt.Valid {
				bw.WriteString("\t\t\t")
				continue
			}
			bw.WriteString("\t" + coord(pt.X) + "\t" + coord(pt.Y) + "\t" + coord(pt.Z))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteFile writes the result to path via a temporary file in the same
// directory, so a crash mid-write never leaves a truncated export behind.
func WriteFile(path string, res *triangulate.Result, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("trc: create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("trc: create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, filepath.Base(path), res, opts); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("trc: close temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("trc: finalize %s: %w", path, err)
	}
	return nil
}
