// Package sim implements the moving neo-cell simulation engine: a square grid
// of weight-sharing cells that each read a 3x3 window of image pixels at a
// movable anchor plus a 3x3 neighborhood of shared state, accumulate the
// update function's output into persistent state, and step their windows
// across the image. The engine runs a fixed number of synchronous iterations
// per classification, for a single sample or a whole batch.
package sim

// Image is an HxW single-channel image with values in [0,1]. The engine only
// ever reads it; normalization is the supplier's job.
type Image struct {
	H, W int
	Pix  []float64 // row-major, len H*W
}

// NewImage returns a zeroed HxW image.
func NewImage(h, w int) Image {
	return Image{H: h, W: w, Pix: make([]float64, h*w)}
}

// At returns the pixel at (r, c).
func (im Image) At(r, c int) float64 {
	return im.Pix[r*im.W+c]
}

// Set writes the pixel at (r, c).
func (im Image) Set(r, c int, v float64) {
	im.Pix[r*im.W+c] = v
}
