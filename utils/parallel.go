package utils

import (
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
	quarterProcs := float64(ParallelFactor) * .25
	if quarterProcs > 8 {
		ParallelFactor = int(quarterProcs)
	}
}

// minRowsPerWorker keeps small images on the calling goroutine.
const minRowsPerWorker = 32

// ParallelForEachRow calls f once for every row in [0, height). Rows are split into contiguous
// bands and each band runs on its own goroutine; f must only write state owned by its row.
func ParallelForEachRow(height int, f func(y int)) {
	workers := ParallelFactor
	if height/minRowsPerWorker < workers {
		workers = height / minRowsPerWorker
	}
	if workers <= 1 {
		for y := 0; y < height; y++ {
			f(y)
		}
		return
	}

	band := (height + workers - 1) / workers
	var waitGroup sync.WaitGroup
	for start := 0; start < height; start += band {
		end := start + band
		if end > height {
			end = height
		}
		from, to := start, end
		waitGroup.Add(1)
		utils.PanicCapturingGo(func() {
			defer waitGroup.Done()
			for y := from; y < to; y++ {
				f(y)
			}
		})
	}
	waitGroup.Wait()
}
