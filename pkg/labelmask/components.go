package labelmask

// Components labels the connected foreground regions of the mask. Any
// non-zero voxel is foreground; neighbours are the 4-connected in-plane
// voxels plus the voxels directly above and below. Regions are numbered
// 1..n in scan order.
func (m *Mask) Components() (*Mask, int) {
	out := New(m.Width, m.Height, m.Depth)
	label := 0
	queue := make([]int, 0, 64)
	plane := m.Width * m.Height

	for start, v := range m.Data {
		if v == 0 || out.Data[start] != 0 {
			continue
		}
		label++
		out.Data[start] = label
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			z := idx / plane
			y := (idx % plane) / m.Width
			x := idx % m.Width

			for _, d := range neighbourOffsets {
				nx, ny, nz := x+d[0], y+d[1], z+d[2]
				if !m.Contains(nx, ny, nz) {
					continue
				}
				n := m.Index(nx, ny, nz)
				if m.Data[n] != 0 && out.Data[n] == 0 {
					out.Data[n] = label
					queue = append(queue, n)
				}
			}
		}
	}
	return out, label
}

var neighbourOffsets = [][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Threshold returns a binary mask of the voxels whose value is at least
// level. values must share the mask's layout.
func (m *Mask) Threshold(values []float64, level float64) *Mask {
	out := New(m.Width, m.Height, m.Depth)
	for i, v := range values {
		if i < len(out.Data) && v >= level {
			out.Data[i] = 1
		}
	}
	return out
}
