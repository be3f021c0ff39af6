//go:build gocv

package detect

import (
	"math"
	"unsafe"

	"gocv.io/x/gocv"
)

const goodFeaturesLinked = true

// Detect returns up to limit corners of in.Image, strongest first. OpenCV
// does not report the corner response, so Score holds the rank: the first
// corner has the highest score.
func (d GoodFeatures) Detect(in Input, exclude []Point, limit int) []Corner {
	img := in.Image
	if limit <= 0 || img.Empty() {
		return nil
	}

	// The Mat borrows the pixel buffer, which stays alive until Close.
	pix := img.Pix[:img.Width*img.Height]
	src, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV32F,
		unsafe.Slice((*byte)(unsafe.Pointer(&pix[0])), len(pix)*4))
	if err != nil {
		return nil
	}
	defer src.Close()

	points := gocv.NewMat()
	defer points.Close()
	gocv.GoodFeaturesToTrack(src, &points, d.request(limit, exclude), d.QualityLevel, d.MinDistance)

	n := points.Rows()
	raw := make([]Corner, 0, n)
	for i := range n {
		v := points.GetVecfAt(i, 0)
		x := clampInt(int(math.Round(float64(v[0]))), img.Width)
		y := clampInt(int(math.Round(float64(v[1]))), img.Height)
		raw = append(raw, Corner{X: x, Y: y, Score: float64(n - i)})
	}
	return d.keep(raw, exclude, limit)
}

func clampInt(v, n int) int {
	return max(0, min(v, n-1))
}
