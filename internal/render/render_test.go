package render

import (
	"image"
	"image/color"
	"testing"
)

func TestColorMapper_Endpoints(t *testing.T) {
	tests := []struct {
		name  Colormap
		first color.RGBA
		last  color.RGBA
	}{
		{JET, color.RGBA{0, 0, 128, 255}, color.RGBA{128, 0, 0, 255}},
		{HOT, color.RGBA{0, 0, 0, 255}, color.RGBA{255, 255, 255, 255}},
		{INFERNO, color.RGBA{0, 0, 4, 255}, color.RGBA{252, 255, 164, 255}},
		{PLASMA, color.RGBA{13, 8, 135, 255}, color.RGBA{240, 249, 33, 255}},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			cm, err := NewColorMapper(tt.name)
			if err != nil {
				t.Fatalf("NewColorMapper failed: %v", err)
			}
			if got := cm.Color(0); got != tt.first {
				t.Errorf("expected first color %v, got %v", tt.first, got)
			}
			if got := cm.Color(255); got != tt.last {
				t.Errorf("expected last color %v, got %v", tt.last, got)
			}
		})
	}
}

func TestColorMapper_AllRotationEntries(t *testing.T) {
	for _, name := range DefaultRotation {
		if _, err := NewColorMapper(name); err != nil {
			t.Errorf("colormap %s: %v", name, err)
		}
	}
}

func TestParseColormap(t *testing.T) {
	if c, err := ParseColormap(" turbo "); err != nil || c != TURBO {
		t.Errorf("expected TURBO, got %q (%v)", c, err)
	}
	if _, err := ParseColormap("viridis"); err == nil {
		t.Error("expected error for unknown colormap")
	}
}

func TestColorMapper_Colorize(t *testing.T) {
	cm, err := NewColorMapper(HOT)
	if err != nil {
		t.Fatalf("NewColorMapper failed: %v", err)
	}

	gray := image.NewGray(image.Rect(0, 0, 3, 2))
	gray.SetGray(2, 1, color.Gray{Y: 255})

	img := cm.Colorize(gray)
	if img.Bounds() != gray.Bounds() {
		t.Fatalf("expected bounds %v, got %v", gray.Bounds(), img.Bounds())
	}
	if got := img.RGBAAt(2, 1); got != cm.Color(255) {
		t.Errorf("expected %v, got %v", cm.Color(255), got)
	}
	if got := img.RGBAAt(0, 0); got != cm.Color(0) {
		t.Errorf("expected %v, got %v", cm.Color(0), got)
	}
}

func TestColorMapper_Scaled(t *testing.T) {
	cm, err := NewColorMapper(JET)
	if err != nil {
		t.Fatalf("NewColorMapper failed: %v", err)
	}

	if got := cm.Scaled(-5, 0, 10); got != cm.Color(0) {
		t.Errorf("expected clamp to first color, got %v", got)
	}
	if got := cm.Scaled(50, 0, 10); got != cm.Color(255) {
		t.Errorf("expected clamp to last color, got %v", got)
	}
	if got := cm.Scaled(3, 3, 3); got != cm.Color(0) {
		t.Errorf("expected first color for an empty range, got %v", got)
	}
}

func TestAnnotator(t *testing.T) {
	a, err := NewAnnotator()
	if err != nil {
		t.Fatalf("NewAnnotator failed: %v", err)
	}
	defer a.Close()

	img := image.NewRGBA(image.Rect(0, 0, 160, 120))

	if err = a.DrawHUD(img, "FPS:8.7 Min:20.00C Max:35.50C Avg:22.10C  [JET] (Radiometric)"); err != nil {
		t.Fatalf("DrawHUD failed: %v", err)
	}
	if countLit(img, image.Rect(0, 0, 160, 16)) == 0 {
		t.Error("expected HUD text in the top band")
	}
	if countLit(img, image.Rect(0, 40, 160, 120)) != 0 {
		t.Error("HUD text leaked below the top band")
	}

	box := image.Rect(60, 50, 84, 74)
	if err = a.DrawROI(img, box, "31.20C"); err != nil {
		t.Fatalf("DrawROI failed: %v", err)
	}
	for _, p := range []image.Point{{60, 50}, {83, 50}, {60, 73}, {83, 73}} {
		if got := img.RGBAAt(p.X, p.Y); got != (color.RGBA{255, 255, 255, 255}) {
			t.Errorf("expected outline at %v, got %v", p, got)
		}
	}
	if got := img.RGBAAt(70, 60); got != (color.RGBA{}) {
		t.Errorf("box interior must stay untouched, got %v", got)
	}
}

func countLit(img *image.RGBA, r image.Rectangle) int {
	var n int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y).A != 0 {
				n++
			}
		}
	}
	return n
}
