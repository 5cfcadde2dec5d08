package thermal

import "image"

const minHalfBox = 2

// HotspotROI is the region around the frame's thermal maximum
type HotspotROI struct {
	Box    image.Rectangle // clipped to the frame, Max is exclusive
	Center image.Point     // smoothed maximum
	Stats                  // over the metric values inside Box
}

// Locate finds the hottest point of the frame after a 3x3 Gaussian blur and
// returns the box of boxSize pixels centered on it. The box is clipped to the
// frame bounds instead of being shifted, so it shrinks at the edges. Ties are
// resolved in raster order.
func Locate(m *Metric, boxSize int) HotspotROI {
	if m == nil || m.Width == 0 || m.Height == 0 {
		return HotspotROI{}
	}

	smoothed := smooth3x3(m)

	var cx, cy int
	best := smoothed[0]
	for i, v := range smoothed {
		if v > best {
			best = v
			cx, cy = i%m.Width, i/m.Width
		}
	}

	half := max(minHalfBox, boxSize/2)
	box := image.Rect(
		max(0, cx-half),
		max(0, cy-half),
		min(m.Width, cx+half),
		min(m.Height, cy+half),
	)

	return HotspotROI{
		Box:    box,
		Center: image.Pt(cx, cy),
		Stats:  m.RegionStats(box),
	}
}

var gaussian3x3 = [3][3]float64{
	{1, 2, 1},
	{2, 4, 2},
	{1, 2, 1},
}

func smooth3x3(m *Metric) []float64 {
	out := make([]float64, len(m.Pix))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			var acc float64
			for ky := -1; ky <= 1; ky++ {
				sy := reflect101(y+ky, m.Height)
				for kx := -1; kx <= 1; kx++ {
					sx := reflect101(x+kx, m.Width)
					acc += gaussian3x3[ky+1][kx+1] * float64(m.At(sx, sy))
				}
			}
			out[y*m.Width+x] = acc / 16
		}
	}
	return out
}

// reflect101 mirrors i into [0, n) without repeating the border pixel.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - i - 2
	}
	return i
}
