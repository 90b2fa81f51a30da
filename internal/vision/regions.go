package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// DefaultMinAreaRatio is the fraction of the page a bounding box must exceed
// to count as a figure candidate.
const DefaultMinAreaRatio = 0.03

// ContourDetector crops the bounding boxes of large dark regions on a page.
type ContourDetector struct {
	MinAreaRatio float64
}

func NewContourDetector(minAreaRatio float64) *ContourDetector {
	if minAreaRatio <= 0 {
		minAreaRatio = DefaultMinAreaRatio
	}
	return &ContourDetector{MinAreaRatio: minAreaRatio}
}

// DetectRegions thresholds the page at 200 (inverted), takes the external
// contours and returns every bounding box larger than MinAreaRatio of the
// page as a PNG.
func (d *ContourDetector) DetectRegions(pagePNG []byte) ([][]byte, error) {
	img, err := gocv.IMDecode(pagePNG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, errors.New("decode page: empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(gray, &thresh, 200, 255, gocv.ThresholdBinaryInv)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := d.MinAreaRatio * float64(img.Cols()*img.Rows())
	var crops [][]byte
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		if float64(rect.Dx()*rect.Dy()) <= minArea {
			continue
		}
		crop, err := encodeRegion(img, rect)
		if err != nil {
			return nil, err
		}
		crops = append(crops, crop)
	}
	return crops, nil
}

func encodeRegion(img gocv.Mat, rect image.Rectangle) ([]byte, error) {
	region := img.Region(rect)
	defer region.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, region)
	if err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases the native buffer, which Close frees.
	return append([]byte(nil), buf.GetBytes()...), nil
}
