package consumer

import (
	"fmt"
	"math"

	"github.com/Avataren/slidekiosk/internal/bridge"
)

const bytesPerPixel = 4

// resolved is the outcome of reconciling a frame's declared dimensions
// with its actual byte length.
type resolved struct {
	width  int
	height int
	// warn is a non-empty note when the declaration and the buffer
	// disagree but a best-effort interpretation was accepted.
	warn string
}

// resolveDimensions reconciles declared frame dimensions against the
// buffer length. DPI-scaled producers routinely declare a logical
// (CSS-space) size while the buffer holds device pixels, so the
// backing size, when present, is trusted over the logical one.
//
// Returns an error only when no consistent width/height/length triple
// can be found; a minor declared/actual mismatch resolves best-effort
// with a warning instead of dropping the frame.
func resolveDimensions(size bridge.Size, bufLen int, dpr float64) (resolved, error) {
	if bufLen == 0 || bufLen%bytesPerPixel != 0 {
		return resolved{}, fmt.Errorf("buffer length %d is not a whole number of pixels", bufLen)
	}

	// Case 1: a backing (device-pixel) size is declared. Trust it as
	// the buffer's true dimensions and verify against the byte length.
	if size.BackingWidth > 0 && size.BackingHeight > 0 {
		bw, bh := size.BackingWidth, size.BackingHeight
		if bw*bh*bytesPerPixel == bufLen {
			return resolved{width: bw, height: bh}, nil
		}

		// Length disagrees: infer height from the byte length and
		// accept only if the inference reproduces it exactly.
		inferred := int(math.Round(float64(bufLen) / float64(bw*bytesPerPixel)))
		if inferred >= 1 && bw*inferred*bytesPerPixel == bufLen {
			return resolved{
				width:  bw,
				height: inferred,
				warn: fmt.Sprintf("declared %dx%d does not match %d bytes, inferred height %d",
					bw, bh, bufLen, inferred),
			}, nil
		}

		// The buffer is not even a whole number of rows at this width.
		// Keep the declared backing height best-effort as long as at
		// least one full row exists; the copy-in truncates or
		// zero-fills the scratch buffer.
		if bufLen >= bw*bytesPerPixel {
			return resolved{
				width:  bw,
				height: bh,
				warn: fmt.Sprintf("declared %dx%d inconsistent with %d bytes, proceeding best-effort",
					bw, bh, bufLen),
			}, nil
		}
		return resolved{}, fmt.Errorf("no consistent dimensions for backing %dx%d and %d bytes", bw, bh, bufLen)
	}

	// Case 2: only a logical size. Try the candidate interpretations
	// in order.
	w, h := size.Width, size.Height
	if w <= 0 || h <= 0 {
		return resolved{}, fmt.Errorf("no usable declared size for %d bytes", bufLen)
	}

	// (a) the buffer matches the logical size directly
	if w*h*bytesPerPixel == bufLen {
		return resolved{width: w, height: h}, nil
	}

	// (b) the buffer matches the logical size scaled by the device
	// pixel ratio
	sw := int(math.Round(float64(w) * dpr))
	sh := int(math.Round(float64(h) * dpr))
	if sw >= 1 && sh >= 1 && sw*sh*bytesPerPixel == bufLen {
		return resolved{
			width:  sw,
			height: sh,
			warn:   fmt.Sprintf("logical %dx%d resolved to device pixels %dx%d (dpr %.2f)", w, h, sw, sh, dpr),
		}, nil
	}

	// (c) the buffer is consistent with the declared width and some
	// inferred height
	if bufLen%(w*bytesPerPixel) == 0 {
		inferred := bufLen / (w * bytesPerPixel)
		if inferred >= 1 {
			return resolved{
				width:  w,
				height: inferred,
				warn:   fmt.Sprintf("logical %dx%d with %d bytes, inferred height %d", w, h, bufLen, inferred),
			}, nil
		}
	}

	return resolved{}, fmt.Errorf("cannot reconcile declared %dx%d with %d bytes", w, h, bufLen)
}

// clampDimensions downscales width/height proportionally (floor,
// minimum 1px) so neither exceeds the platform's maximum image
// dimension.
func clampDimensions(width, height, maxDim int) (int, int) {
	if maxDim <= 0 || (width <= maxDim && height <= maxDim) {
		return width, height
	}
	longest := width
	if height > longest {
		longest = height
	}
	scale := float64(maxDim) / float64(longest)
	cw := int(float64(width) * scale)
	ch := int(float64(height) * scale)
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	return cw, ch
}
