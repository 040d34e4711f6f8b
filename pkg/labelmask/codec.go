package labelmask

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// FromImage converts a grayscale label image into a single-plane mask. The
// 16-bit gray value of each pixel is taken as its label.
func FromImage(img image.Image) *Mask {
	bounds := img.Bounds()
	m := New(bounds.Dx(), bounds.Dy(), 1)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			m.Data[y*m.Width+x] = int(g.Y)
		}
	}
	return m
}

// FromImages stacks equally sized label images into a 3D mask, one image per z-plane.
func FromImages(images []image.Image) (*Mask, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to stack")
	}
	first := FromImage(images[0])
	m := New(first.Width, first.Height, len(images))
	copy(m.Data, first.Data)
	plane := m.Width * m.Height
	for z := 1; z < len(images); z++ {
		slice := FromImage(images[z])
		if slice.Width != m.Width || slice.Height != m.Height {
			return nil, fmt.Errorf("%w: plane %d is %dx%d, expected %dx%d",
				ErrSizeMismatch, z, slice.Width, slice.Height, m.Width, m.Height)
		}
		copy(m.Data[z*plane:], slice.Data)
	}
	return m, nil
}

// ToImage renders z-plane z as a 16-bit grayscale image. Labels above
// 65535 are clamped.
func (m *Mask) ToImage(z int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			v := min(max(m.At(x, y, z), 0), 0xffff)
			img.SetGray16(x, y, color.Gray16{Y: uint16(v)})
		}
	}
	return img
}

// ReadPNG loads a single-plane label mask from a PNG file
func ReadPNG(path string) (*Mask, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// WritePNG saves z-plane 0 of the mask as a 16-bit grayscale PNG, creating
// the parent directory if needed.
func (m *Mask) WritePNG(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, m.ToImage(0)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
