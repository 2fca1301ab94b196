package zarr

// A mapping of one item from chunk to output array. Can be used to extract
// items from the chunk array for loading into an output array. Can also be
// used to extract items from a value array for setting/updating in a chunk
// array.
type chunkProjection struct {
	// Selection of the item in the flat chunk array.
	ChunkSelection int
	// Selection of the item in the flat target (output) array.
	OutSelection int
}

// gridShape is the number of chunks along each dimension.
func gridShape(shape, chunks []int) []int {
	g := make([]int, len(shape))
	for i, n := range shape {
		g[i] = (n + chunks[i] - 1) / chunks[i]
	}
	return g
}

// eachChunk calls fn with the grid coordinates of every chunk in row-major
// order. A zero-dimensional array has a single chunk with empty coordinates.
func eachChunk(shape, chunks []int, fn func(ch []int) error) error {
	grid := gridShape(shape, chunks)
	if product(grid) == 0 {
		return nil
	}
	ch := make([]int, len(grid))
	for {
		if err := fn(append([]int(nil), ch...)); err != nil {
			return err
		}
		if !increment(ch, grid) {
			return nil
		}
	}
}

// projectChunk maps the items of chunk ch onto the output array. Edge chunks
// are stored padded to the full chunk shape, items past the array bounds are
// skipped.
func projectChunk(shape, chunks []int, ch []int) []chunkProjection {
	n := len(shape)
	local := make([]int, n)
	out := make([]chunkProjection, 0, product(chunks))

	for sel := 0; ; sel++ {
		outSel, inBounds := 0, true
		for d := 0; d < n; d++ {
			g := ch[d]*chunks[d] + local[d]
			if g >= shape[d] {
				inBounds = false
				break
			}
			outSel = outSel*shape[d] + g
		}
		if inBounds {
			out = append(out, chunkProjection{ChunkSelection: sel, OutSelection: outSel})
		}
		if !increment(local, chunks) {
			return out
		}
	}
}

// increment advances idx through the row-major positions of bounds,
// reporting false once every position has been visited.
func increment(idx, bounds []int) bool {
	for d := len(idx) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < bounds[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}
