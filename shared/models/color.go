// shared/models/color.go
package models

// RouteColorCount is the number of route variants teams are spread across.
const RouteColorCount = 4

// RouteColor is the human-facing label of a route variant.
type RouteColor struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Hex   string `json:"hex"`
}

var routeColors = map[int]RouteColor{
	1: {Index: 1, Name: "Yellow", Hex: "#FCD34D"},
	2: {Index: 2, Name: "Red", Hex: "#EF4444"},
	3: {Index: 3, Name: "Green", Hex: "#10B981"},
	4: {Index: 4, Name: "Blue", Hex: "#3B82F6"},
}

// ColorFor returns the color for index 1..4, or Unknown for anything else.
func ColorFor(index int) RouteColor {
	if c, ok := routeColors[index]; ok {
		return c
	}
	return RouteColor{Index: index, Name: "Unknown", Hex: "#6B7280"}
}

// ColorFromSequence maps the n-th issued sequence value (starting at 1) onto 1..4.
func ColorFromSequence(seq int64) int {
	if seq < 1 {
		return 1
	}
	return int((seq-1)%RouteColorCount) + 1
}
