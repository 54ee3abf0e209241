package calib

import "fmt"

// Board describes the calibration checkerboard by its inner-corner grid and
// physical square size in meters.
type Board struct {
	// Cols and Rows count inner corners per row and per column.
	Cols int `json:"cols"`
	Rows int `json:"rows"`
	// SquareSize is the side length of one square, in meters.
	SquareSize float64 `json:"square_size"`
}

// Validate rejects geometries that cannot anchor a pose.
func (b Board) Validate() error {
	if b.Cols < 2 || b.Rows < 2 {
		return fmt.Errorf("board grid %dx%d too small, need at least 2x2 inner corners", b.Cols, b.Rows)
	}
	if b.Cols == b.Rows {
		return fmt.Errorf("board grid %dx%d is square; corner ordering would be ambiguous", b.Cols, b.Rows)
	}
	if b.SquareSize <= 0 {
		return fmt.Errorf("board square size %v must be positive", b.SquareSize)
	}
	return nil
}

// Corners returns the number of inner corners.
func (b Board) Corners() int { return b.Cols * b.Rows }

// ObjectPoints lays the board into the world frame: the first detected
// corner at the origin, x along rows, y along columns, z = 0. The order
// matches the row-major order corner detectors report.
func (b Board) ObjectPoints() [][3]float64 {
	pts := make([][3]float64, 0, b.Corners())
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			pts = append(pts, [3]float64{float64(c) * b.SquareSize, float64(r) * b.SquareSize, 0})
		}
	}
	return pts
}
