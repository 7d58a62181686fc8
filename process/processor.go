package process

import (
	"fmt"

	"github.com/hupe1980/diffra/model"
)

// Config holds the transform parameters for one Processor. Each stage is
// independently optional.
type Config struct {
	// DetectorExtent is the expected extent of unprocessed input frames.
	DetectorExtent model.Extent2D

	// Crop slices each frame to a CropExtent window centered at CropCenter.
	CropEnabled bool
	CropCenter  model.Point2D
	CropExtent  model.Extent2D

	// Value filter zeroes pixels below LowerBound and/or at or above UpperBound.
	LowerBoundEnabled bool
	LowerBound        uint32
	UpperBoundEnabled bool
	UpperBound        uint32

	// Binning sums pixels in BinX x BinY blocks. The bin sizes must evenly
	// divide the (possibly cropped) frame extent.
	BinEnabled bool
	BinX       int
	BinY       int

	// Padding zero-pads each frame symmetrically by PadX columns and PadY rows.
	PadEnabled bool
	PadX       int
	PadY       int

	// Flips reverse the frame along Y, then along X.
	FlipYEnabled bool
	FlipXEnabled bool
}

// Processor applies the crop/filter/bin/pad/flip pipeline to raw frame
// batches. It is immutable after New and safe for concurrent use.
type Processor struct {
	cfg          Config
	inputExtent  model.Extent2D
	outputExtent model.Extent2D
}

// New validates cfg and returns an immutable Processor. All configuration
// errors surface here, never during Process.
func New(cfg Config) (*Processor, error) {
	if cfg.DetectorExtent.Width <= 0 || cfg.DetectorExtent.Height <= 0 {
		return nil, fmt.Errorf("process: invalid detector extent %s", cfg.DetectorExtent)
	}

	extent := cfg.DetectorExtent

	if cfg.CropEnabled {
		if cfg.CropExtent.Width <= 0 || cfg.CropExtent.Height <= 0 {
			return nil, &ErrCropWindow{Center: cfg.CropCenter, Window: cfg.CropExtent, Detector: cfg.DetectorExtent}
		}
		x0 := cfg.CropCenter.X - cfg.CropExtent.Width/2
		y0 := cfg.CropCenter.Y - cfg.CropExtent.Height/2
		if x0 < 0 || y0 < 0 ||
			x0+cfg.CropExtent.Width > cfg.DetectorExtent.Width ||
			y0+cfg.CropExtent.Height > cfg.DetectorExtent.Height {
			return nil, &ErrCropWindow{Center: cfg.CropCenter, Window: cfg.CropExtent, Detector: cfg.DetectorExtent}
		}
		extent = cfg.CropExtent
	}

	if cfg.BinEnabled {
		if cfg.BinX <= 0 || cfg.BinY <= 0 {
			return nil, fmt.Errorf("process: invalid bin size %dx%d", cfg.BinX, cfg.BinY)
		}
		if extent.Width%cfg.BinX != 0 {
			return nil, &ErrBinDivisor{Axis: "x", Extent: extent.Width, Bin: cfg.BinX}
		}
		if extent.Height%cfg.BinY != 0 {
			return nil, &ErrBinDivisor{Axis: "y", Extent: extent.Height, Bin: cfg.BinY}
		}
		extent.Width /= cfg.BinX
		extent.Height /= cfg.BinY
	}

	if cfg.PadEnabled {
		if cfg.PadX < 0 || cfg.PadY < 0 {
			return nil, fmt.Errorf("process: invalid pad size %dx%d", cfg.PadX, cfg.PadY)
		}
		extent.Width += 2 * cfg.PadX
		extent.Height += 2 * cfg.PadY
	}

	return &Processor{
		cfg:          cfg,
		inputExtent:  cfg.DetectorExtent,
		outputExtent: extent,
	}, nil
}

// InputExtent returns the expected per-frame extent of raw input.
func (p *Processor) InputExtent() model.Extent2D { return p.inputExtent }

// OutputExtent returns the per-frame extent after the full pipeline.
func (p *Processor) OutputExtent() model.Extent2D { return p.outputExtent }

// Process applies the pipeline to one batch. The input block is not
// modified; the returned block is freshly allocated unless every stage is
// disabled, in which case the input is returned as-is.
func (p *Processor) Process(raw *model.Block) (*model.Block, error) {
	if raw.W != p.inputExtent.Width || raw.H != p.inputExtent.Height {
		return nil, &ErrFrameShape{Expected: p.inputExtent, Actual: raw.Extent()}
	}

	out := raw

	if p.cfg.CropEnabled {
		out = p.crop(out)
	}
	if p.cfg.LowerBoundEnabled || p.cfg.UpperBoundEnabled {
		out = p.filter(out)
	}
	if p.cfg.BinEnabled {
		out = p.bin(out)
	}
	if p.cfg.PadEnabled {
		out = p.pad(out)
	}
	if p.cfg.FlipYEnabled {
		out = flipY(out)
	}
	if p.cfg.FlipXEnabled {
		out = flipX(out)
	}

	return out, nil
}

func (p *Processor) crop(b *model.Block) *model.Block {
	cw, ch := p.cfg.CropExtent.Width, p.cfg.CropExtent.Height
	x0 := p.cfg.CropCenter.X - cw/2
	y0 := p.cfg.CropCenter.Y - ch/2

	out := model.NewBlock(b.N, ch, cw)
	for n := 0; n < b.N; n++ {
		for y := 0; y < ch; y++ {
			src := b.Data[(n*b.H+y0+y)*b.W+x0:]
			dst := out.Data[(n*ch+y)*cw:]
			copy(dst[:cw], src[:cw])
		}
	}
	return out
}

func (p *Processor) filter(b *model.Block) *model.Block {
	out := b.Clone()
	for i, v := range out.Data {
		if p.cfg.LowerBoundEnabled && v < p.cfg.LowerBound {
			out.Data[i] = 0
		} else if p.cfg.UpperBoundEnabled && v >= p.cfg.UpperBound {
			out.Data[i] = 0
		}
	}
	return out
}

func (p *Processor) bin(b *model.Block) *model.Block {
	bx, by := p.cfg.BinX, p.cfg.BinY
	ow, oh := b.W/bx, b.H/by

	out := model.NewBlock(b.N, oh, ow)
	for n := 0; n < b.N; n++ {
		for y := 0; y < b.H; y++ {
			srcRow := b.Data[(n*b.H+y)*b.W:]
			dstRow := out.Data[(n*oh+y/by)*ow:]
			for x := 0; x < b.W; x++ {
				dstRow[x/bx] += srcRow[x]
			}
		}
	}
	return out
}

func (p *Processor) pad(b *model.Block) *model.Block {
	px, py := p.cfg.PadX, p.cfg.PadY
	ow, oh := b.W+2*px, b.H+2*py

	out := model.NewBlock(b.N, oh, ow)
	for n := 0; n < b.N; n++ {
		for y := 0; y < b.H; y++ {
			src := b.Data[(n*b.H+y)*b.W:]
			dst := out.Data[(n*oh+py+y)*ow+px:]
			copy(dst[:b.W], src[:b.W])
		}
	}
	return out
}

func flipY(b *model.Block) *model.Block {
	out := model.NewBlock(b.N, b.H, b.W)
	for n := 0; n < b.N; n++ {
		for y := 0; y < b.H; y++ {
			src := b.Data[(n*b.H+y)*b.W:]
			dst := out.Data[(n*b.H+(b.H-1-y))*b.W:]
			copy(dst[:b.W], src[:b.W])
		}
	}
	return out
}

func flipX(b *model.Block) *model.Block {
	out := model.NewBlock(b.N, b.H, b.W)
	for n := 0; n < b.N; n++ {
		for y := 0; y < b.H; y++ {
			src := b.Data[(n*b.H+y)*b.W:]
			dst := out.Data[(n*b.H+y)*b.W:]
			for x := 0; x < b.W; x++ {
				dst[x] = src[b.W-1-x]
			}
		}
	}
	return out
}
