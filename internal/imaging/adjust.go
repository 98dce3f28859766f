package imaging

import (
	"errors"
	"fmt"
	"math"
)

// PixelBuffer is decoded image data as RGBA-interleaved bytes in row-major
// order. Its length must be a multiple of 4.
type PixelBuffer []uint8

var (
	ErrBufferLength    = errors.New("pixel buffer length must be a multiple of 4")
	ErrAdjustmentRange = errors.New("adjustment value out of range")
)

// Adjustments holds one signed magnitude per color effect. The zero value is
// neutral for every effect; a neutral effect is skipped entirely, so an
// all-zero Adjustments leaves the buffer byte-identical.
type Adjustments struct {
	Brightness  float64 `json:"brightness,omitempty"`
	Contrast    float64 `json:"contrast,omitempty"`
	Saturation  float64 `json:"saturation,omitempty"`
	Exposure    float64 `json:"exposure,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Tint        float64 `json:"tint,omitempty"`
	Highlights  float64 `json:"highlights,omitempty"`
	Shadows     float64 `json:"shadows,omitempty"`
	Vibrance    float64 `json:"vibrance,omitempty"`
}

func (a Adjustments) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"brightness", a.Brightness},
		{"contrast", a.Contrast},
		{"saturation", a.Saturation},
		{"exposure", a.Exposure},
		{"temperature", a.Temperature},
		{"tint", a.Tint},
		{"highlights", a.Highlights},
		{"shadows", a.Shadows},
		{"vibrance", a.Vibrance},
	} {
		if f.value < -100 || f.value > 100 {
			return fmt.Errorf("%w: %s=%g, want [-100,100]", ErrAdjustmentRange, f.name, f.value)
		}
	}
	return nil
}

// IsNeutral reports whether every effect is at its neutral setting.
func (a Adjustments) IsNeutral() bool {
	return a == Adjustments{}
}

// stageFunc remaps one pixel's RGB channels. Inputs are the live channel
// values produced by the previous stage; outputs are clamped and rounded
// before the next stage sees them.
type stageFunc func(r, g, b float64) (float64, float64, float64)

// ApplyAdjustments remaps every pixel of buf in place according to adj.
// Effects run in a fixed order (brightness, contrast, saturation, exposure,
// temperature, tint, highlights, shadows, vibrance); each stage reads the
// channel values written by the stage before it. Alpha passes through
// untouched. Repeated calls on the same source bytes with the same
// adjustments produce the same output.
func ApplyAdjustments(buf PixelBuffer, adj Adjustments) error {
	if len(buf)%4 != 0 {
		return fmt.Errorf("%w: len=%d", ErrBufferLength, len(buf))
	}
	if err := adj.Validate(); err != nil {
		return err
	}

	stages := effectChain(adj)
	if len(stages) == 0 {
		return nil
	}

	for i := 0; i < len(buf); i += 4 {
		r := float64(buf[i])
		g := float64(buf[i+1])
		b := float64(buf[i+2])
		for _, stage := range stages {
			r, g, b = stage(r, g, b)
			r = clampChannel(r)
			g = clampChannel(g)
			b = clampChannel(b)
		}
		buf[i] = uint8(r)
		buf[i+1] = uint8(g)
		buf[i+2] = uint8(b)
	}
	return nil
}

// effectChain builds the ordered list of enabled stages for adj. Stage order
// is load-bearing for reproducibility; insert new effects at a deliberate
// position, not at the end by default.
func effectChain(adj Adjustments) []stageFunc {
	var stages []stageFunc
	if adj.Brightness != 0 {
		stages = append(stages, brightnessStage(adj.Brightness))
	}
	if adj.Contrast != 0 {
		stages = append(stages, contrastStage(adj.Contrast))
	}
	if adj.Saturation != 0 {
		stages = append(stages, saturationStage(adj.Saturation))
	}
	if adj.Exposure != 0 {
		stages = append(stages, exposureStage(adj.Exposure))
	}
	if adj.Temperature != 0 {
		stages = append(stages, temperatureStage(adj.Temperature))
	}
	if adj.Tint != 0 {
		stages = append(stages, tintStage(adj.Tint))
	}
	if adj.Highlights != 0 {
		stages = append(stages, toneStage(adj.Highlights, false))
	}
	if adj.Shadows != 0 {
		stages = append(stages, toneStage(adj.Shadows, true))
	}
	if adj.Vibrance != 0 {
		stages = append(stages, vibranceStage(adj.Vibrance))
	}
	return stages
}

func brightnessStage(amount float64) stageFunc {
	return func(r, g, b float64) (float64, float64, float64) {
		return r + amount, g + amount, b + amount
	}
}

func contrastStage(amount float64) stageFunc {
	// The factor formula has a singularity at amount=259. Validate() caps
	// the range at 100 well before that; the min guard keeps a direct
	// caller from dividing by zero anyway.
	if amount > 258 {
		amount = 258
	}
	factor := (259 * (amount + 255)) / (255 * (259 - amount))
	return func(r, g, b float64) (float64, float64, float64) {
		return factor*(r-128) + 128,
			factor*(g-128) + 128,
			factor*(b-128) + 128
	}
}

func saturationStage(amount float64) stageFunc {
	factor := 1 + amount/100
	return func(r, g, b float64) (float64, float64, float64) {
		gray := luma(r, g, b)
		return gray + factor*(r-gray),
			gray + factor*(g-gray),
			gray + factor*(b-gray)
	}
}

func exposureStage(amount float64) stageFunc {
	factor := math.Pow(2, amount/100)
	return func(r, g, b float64) (float64, float64, float64) {
		return r * factor, g * factor, b * factor
	}
}

func temperatureStage(amount float64) stageFunc {
	// Positive warms the image (red up, blue down), negative cools it.
	shift := amount * 0.6
	return func(r, g, b float64) (float64, float64, float64) {
		return r + shift, g, b - shift
	}
}

func tintStage(amount float64) stageFunc {
	// Positive shifts toward magenta, negative toward green.
	shift := amount * 0.6
	return func(r, g, b float64) (float64, float64, float64) {
		return r, g - shift, b
	}
}

// toneStage lifts or compresses one end of the tonal range. With
// shadowEnd=false it weights pixels above mid-gray (highlights); with
// shadowEnd=true it weights pixels below (shadows).
func toneStage(amount float64, shadowEnd bool) stageFunc {
	scale := amount * 0.6
	return func(r, g, b float64) (float64, float64, float64) {
		gray := luma(r, g, b)
		var weight float64
		if shadowEnd {
			weight = (128 - gray) / 128
		} else {
			weight = (gray - 128) / 127
		}
		if weight < 0 {
			weight = 0
		}
		shift := scale * weight
		return r + shift, g + shift, b + shift
	}
}

func vibranceStage(amount float64) stageFunc {
	return func(r, g, b float64) (float64, float64, float64) {
		gray := luma(r, g, b)
		spread := (max3(r, g, b) - min3(r, g, b)) / 255
		// Already-saturated pixels get proportionally less of the boost.
		factor := 1 + (amount/100)*(1-spread)
		return gray + factor*(r-gray),
			gray + factor*(g-gray),
			gray + factor*(b-gray)
	}
}

// luma is the broadcast-weighted brightness proxy used by the saturation,
// tone and vibrance stages.
func luma(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

func clampChannel(v float64) float64 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}
