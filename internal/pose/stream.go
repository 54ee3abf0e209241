package pose

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Point is one detected keypoint: image coordinates plus the detector's
// reported confidence in [0,1].
type Point struct {
	X          float64
	Y          float64
	Confidence float64
}

// Frame maps keypoint name to its detection at one video frame.
type Frame map[string]Point

// Stream is the full detector output for one camera.
type Stream struct {
	Camera string
	// Rate is the video frame rate the detector ran at.
	Rate float64
	// Names lists the keypoints in canonical order.
	Names  []string
	Frames []Frame
}

// Len returns the number of frames in the stream.
func (s *Stream) Len() int { return len(s.Frames) }

// Track extracts the (x, y, confidence) series for one keypoint. Frames
// where the keypoint is absent report zero confidence.
func (s *Stream) Track(name string) (xs, ys, confs []float64) {
	xs = make([]float64, len(s.Frames))
	ys = make([]float64, len(s.Frames))
	confs = make([]float64, len(s.Frames))
	for i, frame := range s.Frames {
		if pt, ok := frame[name]; ok {
			xs[i], ys[i], confs[i] = pt.X, pt.Y, pt.Confidence
		}
	}
	return xs, ys, confs
}

// MeanConfidence averages the confidence of every named keypoint over every
// frame; it is the camera-quality signal used for exclusion decisions.
func (s *Stream) MeanConfidence() float64 {
	if len(s.Frames) == 0 || len(s.Names) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, frame := range s.Frames {
		for _, name := range s.Names {
			sum += frame[name].Confidence
			n++
		}
	}
	return sum / float64(n)
}

// streamFile is the on-disk JSON shape written by the detector collaborator:
// one object per camera with [x, y, confidence] triples per keypoint.
type streamFile struct {
	Camera        string                  `json:"camera"`
	FrameRate     float64                 `json:"frame_rate"`
	KeypointNames []string                `json:"keypoint_names"`
	Frames        []map[string][3]float64 `json:"frames"`
}

// ReadFile loads a detector output file.
func ReadFile(path string) (*Stream, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypoint file: %w", err)
	}
	var file streamFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse keypoint file %s: %w", path, err)
	}
	if file.FrameRate <= 0 {
		return nil, fmt.Errorf("keypoint file %s: frame_rate must be positive", path)
	}

	names := file.KeypointNames
	if len(names) == 0 {
		names = collectNames(file.Frames)
	}

	stream := &Stream{
		Camera: file.Camera,
		Rate:   file.FrameRate,
		Names:  names,
		Frames: make([]Frame, len(file.Frames)),
	}
	for i, raw := range file.Frames {
		frame := make(Frame, len(raw))
		for name, triple := range raw {
			frame[name] = Point{X: triple[0], Y: triple[1], Confidence: triple[2]}
		}
		stream.Frames[i] = frame
	}
	return stream, nil
}

func collectNames(frames []map[string][3]float64) []string {
	seen := map[string]struct{}{}
	for _, frame := range frames {
		for name := range frame {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
