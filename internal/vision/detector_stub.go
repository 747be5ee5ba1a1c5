//go:build !gocv
// +build !gocv

package vision

// Available reports whether a real backend is compiled in.
const Available = false

// NewDetector returns ErrUnavailable without the gocv build tag.
func NewDetector(opts Options) (Detector, error) {
	_ = opts
	return nil, ErrUnavailable
}
