package diffra_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/diffra"
	"github.com/hupe1980/diffra/model"
)

// Example_streaming demonstrates assembling live-pushed pattern arrays.
func Example_streaming() {
	detector := model.Extent2D{Width: 64, Height: 64}

	settings := diffra.DefaultSettings(detector)
	settings.Workers = 2

	session, err := diffra.New(settings)
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	ctx := context.Background()

	// Metadata arrives first and sizes the assembled buffer; frames stream
	// in afterwards.
	capacity := &model.SimpleDataset{
		Meta: model.Metadata{
			NumPatternsPerArray: 4,
			NumPatternsTotal:    8,
			DetectorExtent:      detector,
		},
	}
	if err := session.StartWith(ctx, capacity); err != nil {
		log.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		block := model.NewBlock(4, detector.Height, detector.Width)
		if err := session.AppendArray(model.NewSimpleArray("live", int64(i*4), block)); err != nil {
			log.Fatal(err)
		}
	}

	session.Stop() // drain, join workers, final assemble

	fmt.Println(len(session.AssembledIndexes()), "patterns assembled")
	// Output: 8 patterns assembled
}

// Example_binning demonstrates the transform pipeline reducing frame extent.
func Example_binning() {
	settings := diffra.DefaultSettings(model.Extent2D{Width: 128, Height: 128})
	settings.BinEnabled = true
	settings.BinX = 4
	settings.BinY = 4

	session, err := diffra.New(settings)
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	extent, err := session.ProcessedExtent()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("processed extent:", extent)
	// Output: processed extent: 32x32
}
