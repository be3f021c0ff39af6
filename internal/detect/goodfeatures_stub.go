//go:build !gocv

package detect

const goodFeaturesLinked = false

// Detect finds nothing without OpenCV. Config.New refuses this backend in
// such builds, so it is only reached by direct use.
func (d GoodFeatures) Detect(_ Input, _ []Point, _ int) []Corner {
	return nil
}
