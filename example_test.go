package termatlas_test

import (
	"fmt"
	"image"
	"log"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/termatlas"
	"github.com/gogpu/termatlas/glyphdev"
)

// Example renders one empty frame headlessly on the noop backend. A real
// application would receive its device from the host (e.g. via
// termatlas.NewFromProvider with a gogpu device provider) and use a swap
// chain bound to a window surface.
func Example() {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		log.Fatal(err)
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		log.Fatal(err)
	}
	defer openDev.Device.Destroy()

	renderer, err := termatlas.New(
		openDev.Device,
		openDev.Queue,
		termatlas.NewOffscreenSwapChain(openDev.Device),
		termatlas.Config{Engine: glyphdev.NewEngine()},
	)
	if err != nil {
		log.Fatal(err)
	}
	defer renderer.Close()

	payload := &termatlas.RenderPayload{
		Generation:     1,
		FontGeneration: 1,
		MiscGeneration: 1,
		TargetSize:     image.Pt(640, 384),
		CellCount:      image.Pt(80, 24),
		Font: &termatlas.FontSettings{
			CellSize:       image.Pt(8, 16),
			Baseline:       12,
			Descender:      4,
			FontSize:       14,
			DPI:            96,
			UnderlinePos:   13,
			UnderlineWidth: 1,
			ThinLineWidth:  1,
		},
		Rows:                 emptyRows(24),
		ColorBitmap:          make([]uint32, 80*24*2),
		ColorBitmapRowStride: 80,
	}

	renderer.WaitUntilCanRender()
	if err := renderer.Render(payload); err != nil {
		log.Fatal(err)
	}
	fmt.Println("frame rendered")
	// Output: frame rendered
}

func emptyRows(n int) []*termatlas.ShapedRow {
	rows := make([]*termatlas.ShapedRow, n)
	for i := range rows {
		rows[i] = &termatlas.ShapedRow{}
	}
	return rows
}
