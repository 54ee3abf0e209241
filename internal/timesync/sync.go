package timesync

import (
	"fmt"
	"math"
	"sort"

	"mocap/internal/pose"
	"mocap/internal/recon"
)

// Options controls filtering, alignment, and eligibility decisions.
type Options struct {
	// CutoffHz is the resolved low-pass cutoff for this trial's activity.
	CutoffHz float64
	// ConfidenceThreshold gates keypoints out of the sync signal and marks
	// low-confidence frames as padding.
	ConfidenceThreshold float64
	// MaxLowConfidenceFraction excludes a camera from triangulation when
	// more than this share of its frames sits below the threshold.
	MaxLowConfidenceFraction float64
}

// Alignment records how one camera's raw stream maps onto the common
// timeline.
type Alignment struct {
	// Offset is the camera's lag relative to the reference camera, in
	// frames: rawCam[i] shows the same instant as rawRef[i+Offset].
	Offset int
	// ValidStart and ValidEnd bound the frames (within the aligned stream)
	// whose confidence clears the threshold; frames outside are padding,
	// reported rather than dropped.
	ValidStart int
	ValidEnd   int
}

// StreamSet is the synchronized output: every member stream has equal
// length and equal implied timestamps.
type StreamSet struct {
	Rate      float64
	Names     []string
	Reference string
	// Frames holds the aligned, filtered stream per camera.
	Frames map[string][]pose.Frame
	// Alignments reports offsets and validity windows per camera.
	Alignments map[string]Alignment
	// Eligible lists the cameras that qualify for triangulation, sorted.
	Eligible []string
}

// Len returns the common stream length.
func (s *StreamSet) Len() int {
	for _, frames := range s.Frames {
		return len(frames)
	}
	return 0
}

// IsEligible reports whether a camera qualifies for triangulation.
func (s *StreamSet) IsEligible(camera string) bool {
	for _, name := range s.Eligible {
		if name == camera {
			return true
		}
	}
	return false
}

// Synchronize filters and aligns the per-camera streams. It needs no
// camera geometry.
func Synchronize(streams map[string]*pose.Stream, opts Options) (*StreamSet, error) {
	if len(streams) < 2 {
		return nil, recon.Newf(recon.KindConfiguration, "synchronization needs at least 2 cameras, got %d", len(streams))
	}

	cameras := make([]string, 0, len(streams))
	for name := range streams {
		cameras = append(cameras, name)
	}
	sort.Strings(cameras)

	rate := streams[cameras[0]].Rate
	for _, name := range cameras {
		s := streams[name]
		if s.Len() == 0 {
			return nil, recon.Newf(recon.KindExternal, "camera %s produced no keypoint frames", name)
		}
		if math.Abs(s.Rate-rate) > 0.1 {
			return nil, recon.Newf(recon.KindConfiguration,
				"frame rate mismatch: %s at %.2f fps, %s at %.2f fps", cameras[0], rate, name, s.Rate)
		}
	}

	cutoff := opts.CutoffHz
	if cutoff <= 0 {
		cutoff = rate / 2
	}

	reference := cameras[0]
	filtered := make(map[string]*pose.Stream, len(streams))
	signals := make(map[string][]float64, len(streams))
	for _, name := range cameras {
		f := filterStream(streams[name], cutoff)
		filtered[name] = f
		signals[name] = motionSignal(f, opts.ConfidenceThreshold)
	}

	offsets := make(map[string]int, len(cameras))
	for _, name := range cameras {
		if name == reference {
			offsets[name] = 0
			continue
		}
		offsets[name] = Lag(signals[reference], signals[name])
	}

	// The overlap window in reference-timeline indices: camera c covers
	// [offset, offset+len).
	start := offsets[cameras[0]]
	end := offsets[cameras[0]] + filtered[cameras[0]].Len()
	for _, name := range cameras[1:] {
		o := offsets[name]
		if o > start {
			start = o
		}
		if e := o + filtered[name].Len(); e < end {
			end = e
		}
	}
	if end-start < 2 {
		return nil, recon.Wrap(recon.KindExternal,
			"Video synchronization failed. Verify the cameras recorded the same trial and try again.",
			fmt.Sprintf("no overlapping window across cameras (start %d, end %d)", start, end),
			nil)
	}
	length := end - start

	set := &StreamSet{
		Rate:       rate,
		Names:      append([]string(nil), filtered[reference].Names...),
		Reference:  reference,
		Frames:     make(map[string][]pose.Frame, len(cameras)),
		Alignments: make(map[string]Alignment, len(cameras)),
	}

	for _, name := range cameras {
		raw := filtered[name].Frames
		aligned := make([]pose.Frame, length)
		for k := 0; k < length; k++ {
			aligned[k] = raw[start+k-offsets[name]]
		}
		set.Frames[name] = aligned

		validStart, validEnd, lowFraction := validity(aligned, filtered[name].Names, opts.ConfidenceThreshold)
		set.Alignments[name] = Alignment{Offset: offsets[name], ValidStart: validStart, ValidEnd: validEnd}
		if lowFraction <= opts.MaxLowConfidenceFraction {
			set.Eligible = append(set.Eligible, name)
		}
	}
	sort.Strings(set.Eligible)

	return set, nil
}

// filterStream low-passes every keypoint coordinate track, preserving
// confidences. Filtering runs before alignment so detector jitter does not
// leak into the timing signal.
func filterStream(s *pose.Stream, cutoff float64) *pose.Stream {
	out := &pose.Stream{
		Camera: s.Camera,
		Rate:   s.Rate,
		Names:  append([]string(nil), s.Names...),
		Frames: make([]pose.Frame, s.Len()),
	}
	for i := range out.Frames {
		out.Frames[i] = make(pose.Frame, len(s.Names))
	}
	for _, name := range s.Names {
		xs, ys, confs := s.Track(name)
		fx := FiltFilt(xs, cutoff, s.Rate)
		fy := FiltFilt(ys, cutoff, s.Rate)
		for i := range out.Frames {
			out.Frames[i][name] = pose.Point{X: fx[i], Y: fy[i], Confidence: confs[i]}
		}
	}
	return out
}

// motionSignal derives the per-frame synchronization signal: the
// confidence-weighted mean absolute vertical keypoint velocity.
func motionSignal(s *pose.Stream, threshold float64) []float64 {
	signal := make([]float64, s.Len())
	for i := 1; i < s.Len(); i++ {
		var sum, weight float64
		for _, name := range s.Names {
			cur, prev := s.Frames[i][name], s.Frames[i-1][name]
			conf := math.Min(cur.Confidence, prev.Confidence)
			if conf < threshold {
				continue
			}
			sum += math.Abs(cur.Y-prev.Y) * conf
			weight += conf
		}
		if weight > 0 {
			signal[i] = sum / weight
		}
	}
	return signal
}

// validity finds the leading/trailing padding and the overall share of
// low-confidence frames.
func validity(frames []pose.Frame, names []string, threshold float64) (validStart, validEnd int, lowFraction float64) {
	n := len(frames)
	good := make([]bool, n)
	low := 0
	for i, frame := range frames {
		var sum float64
		for _, name := range names {
			sum += frame[name].Confidence
		}
		mean := 0.0
		if len(names) > 0 {
			mean = sum / float64(len(names))
		}
		good[i] = mean >= threshold
		if !good[i] {
			low++
		}
	}

	validStart = 0
	for validStart < n && !good[validStart] {
		validStart++
	}
	validEnd = n
	for validEnd > validStart && !good[validEnd-1] {
		validEnd--
	}
	if n > 0 {
		lowFraction = float64(low) / float64(n)
	}
	return validStart, validEnd, lowFraction
}
