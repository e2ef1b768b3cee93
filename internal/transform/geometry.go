package transform

import "image"

// deriveTarget fills in a zero Size component from the other one and the
// original aspect ratio, using truncating division. At least one component
// of size must be nonzero.
func deriveTarget(w, h int, size Size) (int, int) {
	askedW := size.Width
	if askedW == 0 {
		askedW = (w * size.Height) / h
	}
	askedH := size.Height
	if askedH == 0 {
		askedH = (h * size.Width) / w
	}
	return askedW, askedH
}

// cropWindow computes the largest window of (w, h) matching the target
// aspect ratio. At least one window dimension always equals the
// corresponding original dimension; the following resize reaches the exact
// target size. Ratio comparisons are cross-multiplied to stay in integers.
func cropWindow(w, h, askedW, askedH int, anchor Crop) image.Rectangle {
	var newW, newH int
	if w*askedH > h*askedW {
		newW, newH = w, (askedH*w)/askedW
	} else {
		newW, newH = (askedW*h)/askedH, h
	}

	// Rounding may overshoot the original bounds; rescale back in.
	if newW > w {
		newW, newH = w, (newH*w)/newW
	}
	if newH > h {
		newW, newH = (newW*h)/newH, h
	}

	x := (w - newW) / 2
	var y int
	switch anchor {
	case CropTop:
		y = 0
	case CropBottom:
		y = h - newH
	default:
		y = (h - newH) / 2
	}
	return image.Rect(x, y, x+newW, y+newH)
}

// fitWithin scales (w, h) down to fit inside (boundW, boundH) preserving the
// aspect ratio. Dimensions are never scaled up and never drop below 1.
func fitWithin(w, h, boundW, boundH int) (int, int) {
	if boundW >= w && boundH >= h {
		return w, h
	}

	var newW, newH int
	if w*boundH > h*boundW {
		newW = boundW
		newH = (h*boundW + w/2) / w
	} else {
		newW = (w*boundH + h/2) / h
		newH = boundH
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	if newW > w {
		newW = w
	}
	if newH > h {
		newH = h
	}
	return newW, newH
}
