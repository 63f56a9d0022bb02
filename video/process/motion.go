package process

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// MotionDetector flags frames that differ noticeably from the previous frame.
// A pixel counts as changed when its grayscale value moved by more than
// ValueThreshold; motion is reported when more than PixelThreshold percent of
// the pixels changed.
type MotionDetector struct {
	pixelThreshold float64
	valueThreshold int

	base, gray, diff, mask gocv.Mat
	haveBase               bool

	l sync.Mutex
}

func NewMotionDetector(pixelThreshold float64, valueThreshold int) *MotionDetector {
	return &MotionDetector{
		pixelThreshold: pixelThreshold,
		valueThreshold: valueThreshold,

		base: gocv.NewMat(),
		gray: gocv.NewMat(),
		diff: gocv.NewMat(),
		mask: gocv.NewMat(),
	}
}

// SetThresholds updates the thresholds used by subsequent calls to Detect.
func (m *MotionDetector) SetThresholds(pixelThreshold float64, valueThreshold int) {
	m.l.Lock()
	defer m.l.Unlock()
	m.pixelThreshold = pixelThreshold
	m.valueThreshold = valueThreshold
}

func (m *MotionDetector) toGray(input gocv.Mat) {
	switch input.Channels() {
	case 1:
		input.CopyTo(&m.gray)
	case 4:
		gocv.CvtColor(input, &m.gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(input, &m.gray, gocv.ColorBGRToGray)
	}
}

// Detect compares input with the previous frame and reports whether motion
// occurred. The first frame, and any frame whose size differs from the
// previous one, counts as motion.
func (m *MotionDetector) Detect(input gocv.Mat) bool {
	m.l.Lock()
	defer m.l.Unlock()

	m.toGray(input)
	defer m.gray.CopyTo(&m.base)

	if !m.haveBase || m.base.Rows() != m.gray.Rows() || m.base.Cols() != m.gray.Cols() {
		m.haveBase = true
		return true
	}

	gocv.AbsDiff(m.gray, m.base, &m.diff)
	gocv.Threshold(m.diff, &m.mask, float32(m.valueThreshold), 255, gocv.ThresholdBinary)

	total := m.mask.Rows() * m.mask.Cols()
	if total == 0 {
		return false
	}
	changed := 100 * float64(gocv.CountNonZero(m.mask)) / float64(total)
	log.Debugf("Motion: %.2f%% of pixels changed (threshold %.2f%%)", changed, m.pixelThreshold)
	return changed > m.pixelThreshold
}

func (m *MotionDetector) Close() {
	m.base.Close()
	m.gray.Close()
	m.diff.Close()
	m.mask.Close()
}
