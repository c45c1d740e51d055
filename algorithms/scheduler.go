package algorithms

import (
	"forklift-backend/models"
	"sort"
)

// ManhattanDistance - 두 격자 좌표 사이의 맨해튼 거리
func ManhattanDistance(a, b models.Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// EnergyScore is the cost proxy: weight × Manhattan distance.
func EnergyScore(weight float64, from, to models.Position) float64 {
	return weight * float64(ManhattanDistance(from, to))
}

// ComputeQueue orders undelivered items for delivery from carrier.
//
// Items are grouped by aisle, aisles are visited in lexicographic order and,
// within an aisle, items go by ascending energy score. Equal scores keep the
// input (insertion) order. The input slice is not modified; every returned
// item is a copy with EnergyScore set.
func ComputeQueue(items []models.Item, carrier models.Position) []models.Item {
	groups := make(map[string][]models.Item)
	aisles := make([]string, 0)

	for _, item := range items {
		if item.Delivered {
			continue
		}
		score := EnergyScore(item.Weight, carrier, item.Target)
		item.EnergyScore = &score

		if _, ok := groups[item.Aisle]; !ok {
			aisles = append(aisles, item.Aisle)
		}
		groups[item.Aisle] = append(groups[item.Aisle], item)
	}

	sort.Strings(aisles)

	queue := make([]models.Item, 0, len(items))
	for _, aisle := range aisles {
		group := groups[aisle]
		sort.SliceStable(group, func(i, j int) bool {
			return *group[i].EnergyScore < *group[j].EnergyScore
		})
		queue = append(queue, group...)
	}

	return queue
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
