package common

import (
	"fmt"
	"math"
	"strconv"
)

// HexToRGBA parses a "#rgb" or "#rrggbb" color string into a normalized RGBA.
// Each channel is rounded to two decimals and alpha is fixed at 1.
//
// Parameters:
//   - hex: the color string, including the leading '#'
//
// Returns:
//   - RGBA: the parsed color
//   - error: an error if the string is not a 4 or 7 character hex color
func HexToRGBA(hex string) (RGBA, error) {
	if len(hex) == 4 && hex[0] == '#' {
		hex = string([]byte{'#', hex[1], hex[1], hex[2], hex[2], hex[3], hex[3]})
	}
	if len(hex) != 7 || hex[0] != '#' {
		return RGBA{}, fmt.Errorf("invalid hex color %q", hex)
	}

	var channels [3]float32
	for i := range channels {
		v, err := strconv.ParseUint(hex[1+i*2:3+i*2], 16, 8)
		if err != nil {
			return RGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
		}
		channels[i] = float32(math.Round(float64(v)/255*100) / 100)
	}

	return RGBA{R: channels[0], G: channels[1], B: channels[2], A: 1}, nil
}
