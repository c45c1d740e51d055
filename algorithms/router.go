package algorithms

import "forklift-backend/models"

// ComputePath walks from one cell to another one unit step at a time,
// resolving the x axis completely before moving along y.
//
// It is a straight Manhattan walker and does not look at the grid, so rack
// cells are crossed like any other cell. The start cell is excluded and the
// target is the last node; from == to yields an empty path.
func ComputePath(from, to models.Position) []models.PathNode {
	path := make([]models.PathNode, 0, ManhattanDistance(from, to))
	current := from
	step := 0

	for current != to {
		switch {
		case current.X < to.X:
			current.X++
		case current.X > to.X:
			current.X--
		case current.Y < to.Y:
			current.Y++
		default:
			current.Y--
		}

		step++
		path = append(path, models.PathNode{Position: current, Step: step})
	}

	return path
}
