// Package visualization renders clustering results for inspection as
// images and HTML chart reports.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"fociclust/pkg/clustering"
	"fociclust/pkg/labelmask"
)

// Viewer renders one clustering result.
type Viewer struct {
	// clusters holds the cluster id of every object voxel
	clusters *labelmask.Mask

	// result is the clustering behind clusters, used for centroids
	result *clustering.Result

	// palette has one color per cluster id, index 0 unused
	palette []color.RGBA
}

// NewViewer creates a viewer for result
func NewViewer(result *clustering.Result) *Viewer {
	return &Viewer{
		clusters: result.Clusters,
		result:   result,
		palette:  generatePalette(result.K),
	}
}

// NewMaskViewer creates a viewer for a bare label mask, such as an input
// mask or a basic clustering. PlotCentroids is not available on it.
func NewMaskViewer(m *labelmask.Mask) *Viewer {
	return &Viewer{
		clusters: m,
		palette:  generatePalette(m.MaxLabel()),
	}
}

// RenderClusters paints z-plane z of the cluster mask, one color per
// cluster on a black background.
func (v *Viewer) RenderClusters(z int) (image.Image, error) {
	m := v.clusters
	if z < 0 || z >= m.Depth {
		return nil, fmt.Errorf("position %d exceeds depth %d", z, m.Depth)
	}

	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := color.RGBA{A: 255}
			if id := m.At(x, y, z); id > 0 && id < len(v.palette) {
				c = v.palette[id]
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

// RenderAnnotated renders z-plane z like RenderClusters and writes each
// cluster's id at its centroid. Only clusters whose centroid lies in the
// plane are labelled.
func (v *Viewer) RenderAnnotated(z int) (image.Image, error) {
	if v.result == nil {
		return nil, fmt.Errorf("no clustering result to annotate")
	}
	img, err := v.RenderClusters(z)
	if err != nil {
		return nil, err
	}

	rgba := img.(*image.RGBA)
	face := basicfont.Face7x13
	for _, cl := range v.result.Assignment.Clusters {
		if len(cl.Objects) == 0 || int(math.Round(cl.Centroid.Z)) != z {
			continue
		}
		cx, cy := int(math.Round(cl.Centroid.X)), int(math.Round(cl.Centroid.Y))
		drawCenteredText(rgba, face, strconv.Itoa(cl.ID), cx, cy, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	}
	return rgba, nil
}

// drawCenteredText draws s with its baseline centered on (cx, cy)
func drawCenteredText(img *image.RGBA, face font.Face, s string, cx, cy int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}
	d.Dot = fixed.P(cx-d.MeasureString(s).Round()/2, cy+face.Metrics().Ascent.Round()/2)
	d.DrawString(s)
}

// SaveImage saves a rendered plane as a PNG image
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSequence renders and saves every z-plane into outputDir
func (v *Viewer) SaveSequence(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for z := 0; z < v.clusters.Depth; z++ {
		img, err := v.RenderClusters(z)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("clusters_z_%03d.png", z))
		if err := v.SaveImage(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// PlotCentroids writes a scatter plot of the object centroids, one series
// per cluster, with the cluster centroids marked as crosses. The image
// format follows the file extension.
func (v *Viewer) PlotCentroids(filename string) error {
	if v.result == nil {
		return fmt.Errorf("no clustering result to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Object centroids (%d clusters)", v.result.K)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	a := v.result.Assignment
	centers := make(plotter.XYs, 0, a.K())
	for _, cl := range a.Clusters {
		if len(cl.Objects) == 0 {
			continue
		}
		pts := make(plotter.XYs, 0, len(cl.Objects))
		for _, o := range cl.Objects {
			c := a.Objects[o].Centroid
			// image rows grow downwards
			pts = append(pts, plotter.XY{X: c.X, Y: -c.Y})
		}
		centers = append(centers, plotter.XY{X: cl.Centroid.X, Y: -cl.Centroid.Y})

		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		if cl.ID < len(v.palette) {
			scatter.GlyphStyle.Color = v.palette[cl.ID]
		}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("cluster %d", cl.ID), scatter)
	}

	if len(centers) > 0 {
		marks, err := plotter.NewScatter(centers)
		if err != nil {
			return err
		}
		marks.GlyphStyle.Shape = draw.CrossGlyph{}
		marks.GlyphStyle.Radius = vg.Points(5)
		p.Add(marks)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// generatePalette returns n+1 colors spread evenly around the hue circle,
// index 0 reserved for background.
func generatePalette(n int) []color.RGBA {
	palette := make([]color.RGBA, n+1)
	for i := 1; i <= n; i++ {
		hue := float64(i-1) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		palette[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return palette
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	rf := hueToRGB(p, q, h+1.0/3)
	gf := hueToRGB(p, q, h)
	bf := hueToRGB(p, q, h-1.0/3)
	return uint8(math.Round(rf * 255)), uint8(math.Round(gf * 255)), uint8(math.Round(bf * 255))
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
