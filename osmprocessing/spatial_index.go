package osmprocessing

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
)

// items covering more cells than this are kept aside and checked on
// every query
const maxCellsPerItem = 4096

type GridCell struct {
	LatIdx, LonIdx int
}

// SpatialIndex is a uniform grid over item bounds. Items are identified by
// the caller's integer ids.
type SpatialIndex struct {
	grid     map[GridCell][]int
	bounds   map[int]orb.Bound
	oversize []int
	cellSize float64 // in degrees
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &SpatialIndex{
		grid:     make(map[GridCell][]int),
		bounds:   make(map[int]orb.Bound),
		cellSize: cellSize,
	}
}

func (si *SpatialIndex) getCell(lat, lon float64) GridCell {
	return GridCell{
		LatIdx: int(math.Floor(lat / si.cellSize)),
		LonIdx: int(math.Floor(lon / si.cellSize)),
	}
}

func (si *SpatialIndex) Insert(id int, b orb.Bound) {
	si.bounds[id] = b

	lo := si.getCell(b.Min.Lat(), b.Min.Lon())
	hi := si.getCell(b.Max.Lat(), b.Max.Lon())
	if (hi.LatIdx-lo.LatIdx+1)*(hi.LonIdx-lo.LonIdx+1) > maxCellsPerItem {
		si.oversize = append(si.oversize, id)
		return
	}

	for lat := lo.LatIdx; lat <= hi.LatIdx; lat++ {
		for lon := lo.LonIdx; lon <= hi.LonIdx; lon++ {
			cell := GridCell{LatIdx: lat, LonIdx: lon}
			si.grid[cell] = append(si.grid[cell], id)
		}
	}
}

// QueryPoint returns, in ascending order, the ids whose bound contains p.
func (si *SpatialIndex) QueryPoint(p orb.Point) []int {
	var results []int
	for _, id := range si.grid[si.getCell(p.Lat(), p.Lon())] {
		if si.bounds[id].Contains(p) {
			results = append(results, id)
		}
	}
	for _, id := range si.oversize {
		if si.bounds[id].Contains(p) {
			results = append(results, id)
		}
	}

	slices.Sort(results)
	return slices.Compact(results)
}

func (si *SpatialIndex) Len() int {
	return len(si.bounds)
}
