// Package labelmask implements the label grid shared by the segmentation
// front end and the clustering engine. A Mask is a dense 2D or 3D grid of
// integer labels where 0 is background and positive values are region ids.
package labelmask

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNonDenseLabels is returned when a mask's labels are not the
	// consecutive range 1..n.
	ErrNonDenseLabels = errors.New("labels are not dense 1..n")

	// ErrSizeMismatch is returned when two masks that must share a shape do not.
	ErrSizeMismatch = errors.New("mask dimensions do not match")
)

// Mask represents a label grid stored as a 1D array in z, y, x order.
type Mask struct {
	Width  int
	Height int
	Depth  int

	// Data holds the labels, index = z*Width*Height + y*Width + x
	Data []int
}

// Box is a region of interest with inclusive minimum and exclusive maximum
// coordinates.
type Box struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// Empty reports whether the box contains no voxels
func (b Box) Empty() bool {
	return b.MaxX <= b.MinX || b.MaxY <= b.MinY || b.MaxZ <= b.MinZ
}

// Width returns the x extent of the box
func (b Box) Width() int { return b.MaxX - b.MinX }

// Height returns the y extent of the box
func (b Box) Height() int { return b.MaxY - b.MinY }

// Depth returns the z extent of the box
func (b Box) Depth() int { return b.MaxZ - b.MinZ }

// extend grows the box to include the voxel (x, y, z).
func (b *Box) extend(x, y, z int) {
	if b.Empty() {
		*b = Box{x, y, z, x + 1, y + 1, z + 1}
		return
	}
	b.MinX = min(b.MinX, x)
	b.MinY = min(b.MinY, y)
	b.MinZ = min(b.MinZ, z)
	b.MaxX = max(b.MaxX, x+1)
	b.MaxY = max(b.MaxY, y+1)
	b.MaxZ = max(b.MaxZ, z+1)
}

// New creates an all-background mask. A depth of zero is treated as one.
func New(width, height, depth int) *Mask {
	if depth < 1 {
		depth = 1
	}
	return &Mask{
		Width:  width,
		Height: height,
		Depth:  depth,
		Data:   make([]int, width*height*depth),
	}
}

// Bounds returns the box covering the whole mask
func (m *Mask) Bounds() Box {
	return Box{0, 0, 0, m.Width, m.Height, m.Depth}
}

// Index returns the offset of (x, y, z) in Data
func (m *Mask) Index(x, y, z int) int {
	return z*m.Width*m.Height + y*m.Width + x
}

// Contains reports whether (x, y, z) lies inside the mask
func (m *Mask) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < m.Width && y < m.Height && z < m.Depth
}

// At returns the label at (x, y, z). Coordinates outside the mask read as background.
func (m *Mask) At(x, y, z int) int {
	if !m.Contains(x, y, z) {
		return 0
	}
	return m.Data[m.Index(x, y, z)]
}

// Set stores label v at (x, y, z). Writes outside the mask are ignored.
func (m *Mask) Set(x, y, z, v int) {
	if !m.Contains(x, y, z) {
		return
	}
	m.Data[m.Index(x, y, z)] = v
}

// SameShape reports whether m and o have identical dimensions
func (m *Mask) SameShape(o *Mask) bool {
	return m.Width == o.Width && m.Height == o.Height && m.Depth == o.Depth
}

// ForEach calls fn for every voxel in the mask in z, y, x order.
func (m *Mask) ForEach(fn func(x, y, z, v int)) {
	m.ForEachIn(m.Bounds(), fn)
}

// ForEachIn calls fn for every voxel inside box, clipped to the mask.
func (m *Mask) ForEachIn(box Box, fn func(x, y, z, v int)) {
	minX, minY, minZ := max(box.MinX, 0), max(box.MinY, 0), max(box.MinZ, 0)
	maxX, maxY, maxZ := min(box.MaxX, m.Width), min(box.MaxY, m.Height), min(box.MaxZ, m.Depth)
	for z := minZ; z < maxZ; z++ {
		for y := minY; y < maxY; y++ {
			row := z*m.Width*m.Height + y*m.Width
			for x := minX; x < maxX; x++ {
				fn(x, y, z, m.Data[row+x])
			}
		}
	}
}

// Clone returns a deep copy of the mask
func (m *Mask) Clone() *Mask {
	c := &Mask{Width: m.Width, Height: m.Height, Depth: m.Depth}
	c.Data = append([]int(nil), m.Data...)
	return c
}

// Crop copies the voxels inside box into a new mask whose origin is the
// box minimum.
func (m *Mask) Crop(box Box) *Mask {
	out := New(box.Width(), box.Height(), box.Depth())
	m.ForEachIn(box, func(x, y, z, v int) {
		out.Set(x-box.MinX, y-box.MinY, z-box.MinZ, v)
	})
	return out
}

// Fill sets every voxel to v
func (m *Mask) Fill(v int) {
	for i := range m.Data {
		m.Data[i] = v
	}
}

// MaxLabel returns the largest label present (0 for an all-background mask)
func (m *Mask) MaxLabel() int {
	maxLabel := 0
	for _, v := range m.Data {
		if v > maxLabel {
			maxLabel = v
		}
	}
	return maxLabel
}

// Labels returns the distinct non-zero labels in ascending order
func (m *Mask) Labels() []int {
	seen := make(map[int]struct{})
	for _, v := range m.Data {
		if v != 0 {
			seen[v] = struct{}{}
		}
	}
	labels := make([]int, 0, len(seen))
	for v := range seen {
		labels = append(labels, v)
	}
	sort.Ints(labels)
	return labels
}

// ValidateDense checks that the labels form the consecutive range 1..n with
// no negative values and returns n.
func (m *Mask) ValidateDense() (int, error) {
	labels := m.Labels()
	for i, v := range labels {
		if v < 0 {
			return 0, fmt.Errorf("%w: negative label %d", ErrNonDenseLabels, v)
		}
		if v != i+1 {
			return 0, fmt.Errorf("%w: expected label %d, found %d", ErrNonDenseLabels, i+1, v)
		}
	}
	return len(labels), nil
}

// Relabel maps the non-zero labels onto 1..k preserving their ascending
// order and returns k. Background stays 0.
func (m *Mask) Relabel() int {
	labels := m.Labels()
	mapping := make(map[int]int, len(labels))
	for i, v := range labels {
		mapping[v] = i + 1
	}
	for i, v := range m.Data {
		if v != 0 {
			m.Data[i] = mapping[v]
		}
	}
	return len(labels)
}

// Binarize returns a mask holding 1 wherever m is non-zero
func (m *Mask) Binarize() *Mask {
	out := New(m.Width, m.Height, m.Depth)
	for i, v := range m.Data {
		if v != 0 {
			out.Data[i] = 1
		}
	}
	return out
}

// BoundingBoxes returns the bounding box of every label, keyed by label.
func (m *Mask) BoundingBoxes() map[int]Box {
	boxes := make(map[int]Box)
	m.ForEach(func(x, y, z, v int) {
		if v == 0 {
			return
		}
		b := boxes[v]
		b.extend(x, y, z)
		boxes[v] = b
	})
	return boxes
}

// Count returns the number of voxels carrying each non-zero label.
func (m *Mask) Count() map[int]int {
	counts := make(map[int]int)
	for _, v := range m.Data {
		if v != 0 {
			counts[v]++
		}
	}
	return counts
}
