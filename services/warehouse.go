package services

import (
	"forklift-backend/models"
)

// Rack blocks are 2×2 and repeat every rackStride cells starting at rackOrigin.
const (
	rackOrigin = 2
	rackStride = 4
	rackMargin = 2
)

// InitializeWarehouse builds the warehouse layout for the given size.
//
// The layout is a pure function of (width, height): 2×2 rack blocks on a
// regular stride starting at (2,2), a dock on the left wall at every odd row,
// and path everywhere else.
func InitializeWarehouse(width, height int) *models.Grid {
	cells := make([][]models.CellKind, height)
	for y := range cells {
		cells[y] = make([]models.CellKind, width) // CellPath 기본값
	}

	// 랙 배치
	for y := rackOrigin; y < height-rackMargin; y += rackStride {
		for x := rackOrigin; x < width-rackMargin; x += rackStride {
			cells[y][x] = models.CellRack
			cells[y][x+1] = models.CellRack
			cells[y+1][x] = models.CellRack
			cells[y+1][x+1] = models.CellRack
		}
	}

	// 왼쪽 벽 도크
	if width > 0 {
		for y := 1; y < height; y += 2 {
			cells[y][0] = models.CellDock
		}
	}

	return &models.Grid{
		Width:  width,
		Height: height,
		Cells:  cells,
	}
}
