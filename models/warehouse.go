package models

import "time"

// ========================================
// 셀 종류
// ========================================

// CellKind - 창고 격자 셀 종류
type CellKind int

const (
	CellPath CellKind = iota // 통로
	CellRack                 // 랙 (선반)
	CellDock                 // 도크 (입출고)
)

func (k CellKind) String() string {
	switch k {
	case CellRack:
		return "rack"
	case CellDock:
		return "dock"
	default:
		return "path"
	}
}

// MarshalText lets cells render as "path" / "rack" / "dock" in JSON.
func (k CellKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ========================================
// 위치
// ========================================

// Position - 격자 좌표 (정수)
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// ========================================
// 창고 격자
// ========================================

// Grid is the static warehouse layout. It is generated once and never mutated.
type Grid struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Cells  [][]CellKind `json:"cells"` // Cells[y][x]
}

// InBounds - 좌표가 격자 내부인지 확인
func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.Width && p.Y < g.Height
}

// CellAt returns the kind at p, or CellPath when p is outside the grid.
func (g *Grid) CellAt(p Position) CellKind {
	if !g.InBounds(p) {
		return CellPath
	}
	return g.Cells[p.Y][p.X]
}

// Docks - 모든 도크 좌표 (y 오름차순)
func (g *Grid) Docks() []Position {
	return g.positionsOf(CellDock)
}

// Racks - 모든 랙 좌표 (행 우선)
func (g *Grid) Racks() []Position {
	return g.positionsOf(CellRack)
}

func (g *Grid) positionsOf(kind CellKind) []Position {
	out := make([]Position, 0)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Cells[y][x] == kind {
				out = append(out, Position{X: x, Y: y})
			}
		}
	}
	return out
}

// ========================================
// 배송 물품
// ========================================

// Item - 배송 요청 하나
//
// Delivered flips exactly once. EnergyScore is derived and only set on
// copies returned by the scheduler.
type Item struct {
	ID          string    `json:"id"`
	Weight      float64   `json:"weight"`
	Target      Position  `json:"target"`
	Aisle       string    `json:"aisle"`
	Delivered   bool      `json:"delivered"`
	EnergyScore *float64  `json:"energy_score,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ========================================
// 경로 / 기록 / 실행 상태
// ========================================

// PathNode - 경로 한 칸 (step은 1부터)
type PathNode struct {
	Position
	Step int `json:"step"`
}

// DeliveryRecord - 완료된 배송 기록 (append-only)
type DeliveryRecord struct {
	Sequence    int       `json:"sequence"`
	Item        Item      `json:"item"`
	Energy      float64   `json:"energy"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// RunState - 자동 배송 루프 상태
type RunState string

const (
	RunStopped RunState = "stopped"
	RunRunning RunState = "running"
)

// Progress - 진행 현황
type Progress struct {
	Total     int     `json:"total"`
	Delivered int     `json:"delivered"`
	Pending   int     `json:"pending"`
	Percent   float64 `json:"percent"`
}

// EnergyPoint is one bar of the per-delivery energy chart.
type EnergyPoint struct {
	Label  string  `json:"delivery"`
	Energy float64 `json:"energy"`
	Aisle  string  `json:"aisle"`
	Weight float64 `json:"weight"`
}

// EnergySummary - 에너지 사용 통계
type EnergySummary struct {
	TotalDeliveries int           `json:"total_deliveries"`
	TotalEnergy     float64       `json:"total_energy"`
	AverageEnergy   float64       `json:"average_energy"`
	Series          []EnergyPoint `json:"series"`
}
