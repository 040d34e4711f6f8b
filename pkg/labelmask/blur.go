package labelmask

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// GaussianBlur convolves every z-plane of the mask (read as raw label
// values) with a 2D Gaussian of the given sigma and returns the result in
// the same z, y, x layout as Data. The blur is separable: rows then
// columns, each line filtered in the frequency domain.
//
// Outside the mask the image is treated as background, which suits sparse
// object masks better than edge replication.
func (m *Mask) GaussianBlur(sigma float64) []float64 {
	out := make([]float64, len(m.Data))
	for i, v := range m.Data {
		out[i] = float64(v)
	}
	if sigma <= 0 || len(out) == 0 {
		return out
	}

	rows := newLineFilter(m.Width, sigma)
	cols := newLineFilter(m.Height, sigma)
	plane := m.Width * m.Height

	line := make([]float64, max(m.Width, m.Height))
	for z := 0; z < m.Depth; z++ {
		base := z * plane
		for y := 0; y < m.Height; y++ {
			row := out[base+y*m.Width : base+(y+1)*m.Width]
			rows.apply(row)
		}
		for x := 0; x < m.Width; x++ {
			col := line[:m.Height]
			for y := 0; y < m.Height; y++ {
				col[y] = out[base+y*m.Width+x]
			}
			cols.apply(col)
			for y := 0; y < m.Height; y++ {
				out[base+y*m.Width+x] = col[y]
			}
		}
	}
	return out
}

// lineFilter holds the padded FFT plan and the kernel spectrum for one
// line length.
type lineFilter struct {
	n      int
	fft    *fourier.FFT
	kernel []complex128
	buf    []float64
	coeffs []complex128
}

// newLineFilter prepares a Gaussian filter for lines of length n. The
// padded length leaves room for the full kernel support so the circular
// convolution computed by the FFT equals the linear one on [0, n).
func newLineFilter(n int, sigma float64) *lineFilter {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	// Support beyond the line length contributes nothing to [0, n).
	radius = min(radius, n)
	size := n + 2*radius

	weights := make([]float64, size)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		weights[(i+size)%size] += w
		sum += w
	}
	for i := range weights {
		weights[i] /= sum
	}

	fft := fourier.NewFFT(size)
	return &lineFilter{
		n:      n,
		fft:    fft,
		kernel: fft.Coefficients(nil, weights),
		buf:    make([]float64, size),
		coeffs: make([]complex128, size/2+1),
	}
}

// apply filters line in place.
func (f *lineFilter) apply(line []float64) {
	copy(f.buf, line)
	for i := f.n; i < len(f.buf); i++ {
		f.buf[i] = 0
	}
	f.fft.Coefficients(f.coeffs, f.buf)
	for i := range f.coeffs {
		f.coeffs[i] *= f.kernel[i]
	}
	f.fft.Sequence(f.buf, f.coeffs)
	// Sequence is unnormalized
	scale := 1 / float64(len(f.buf))
	for i := 0; i < f.n; i++ {
		line[i] = f.buf[i] * scale
	}
}
