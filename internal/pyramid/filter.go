package pyramid

import "github.com/MeKo-Tech/goklt/internal/gray"

// Downsample blurs img with a separable [1 2 1]/4 kernel and keeps every
// factor-th pixel. Borders are extended.
func Downsample(img *gray.Image, factor int) *gray.Image {
	w, h := img.Width, img.Height
	ow, oh := w/factor, h/factor

	// Horizontal pass only on the rows that survive subsampling.
	tmp := gray.New(ow, h)
	defer tmp.Release()
	for y := range h {
		src := img.Row(y)
		dst := tmp.Row(y)
		for ox := range ow {
			x := ox * factor
			l := src[clamp(x-1, w)]
			r := src[clamp(x+1, w)]
			dst[ox] = (l + 2*src[x] + r) * 0.25
		}
	}

	out := gray.New(ow, oh)
	for oy := range oh {
		y := oy * factor
		up := tmp.Row(clamp(y-1, h))
		mid := tmp.Row(y)
		down := tmp.Row(clamp(y+1, h))
		dst := out.Row(oy)
		for x := range ow {
			dst[x] = (up[x] + 2*mid[x] + down[x]) * 0.25
		}
	}
	return out
}

// Gradient computes the horizontal and vertical Sobel derivatives divided
// by 8, so a unit intensity ramp yields a unit gradient. Borders are extended.
func Gradient(img *gray.Image) (dx, dy *gray.Image) {
	w, h := img.Width, img.Height
	dx = gray.New(w, h)
	dy = gray.New(w, h)
	for y := range h {
		up := img.Row(clamp(y-1, h))
		mid := img.Row(y)
		down := img.Row(clamp(y+1, h))
		ox := dx.Row(y)
		oy := dy.Row(y)
		for x := range w {
			xl := clamp(x-1, w)
			xr := clamp(x+1, w)
			gx := (up[xr] + 2*mid[xr] + down[xr]) - (up[xl] + 2*mid[xl] + down[xl])
			gy := (down[xl] + 2*down[x] + down[xr]) - (up[xl] + 2*up[x] + up[xr])
			ox[x] = gx * 0.125
			oy[x] = gy * 0.125
		}
	}
	return dx, dy
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
