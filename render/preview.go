package render

import (
	"github.com/BenCrafterRED/colortracker/segment"
	"gocv.io/x/gocv"
)

// ROIPreview converts everything outside of the region of interest to
// greyscale so the selected region stands out while it is being adjusted
func ROIPreview(img *gocv.Mat, roi segment.ROI) error {

	roi = roi.Resolve(img.Cols(), img.Rows())

	if err := roi.Validate(img.Cols(), img.Rows()); err != nil {
		return err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	out := gocv.NewMat()
	defer out.Close()
	gocv.CvtColor(gray, &out, gocv.ColorGrayToBGR)

	if roi.Width() > 0 && roi.Height() > 0 {
		// copy the colour ROI back over the grey frame
		src := img.Region(roi.Rect())
		dst := out.Region(roi.Rect())
		src.CopyTo(&dst)
		src.Close()
		dst.Close()
	}

	out.CopyTo(img)
	return nil
}
