// hunt/service/cost.go
package service

import "fmt"

// CostRule returns the g-cost expected when a team has completed position nodes.
type CostRule func(position int) (int, error)

// CostTable looks the position up in a fixed table.
func CostTable(table []int) CostRule {
	t := append([]int(nil), table...)
	return func(position int) (int, error) {
		if position < 0 || position >= len(t) {
			return 0, fmt.Errorf("%w: %d (table has %d entries)", ErrCostUndefined, position, len(t))
		}
		return t[position], nil
	}
}

// LinearCost expects (position+1)*step.
func LinearCost(step int) CostRule {
	return func(position int) (int, error) {
		if position < 0 {
			return 0, fmt.Errorf("%w: %d", ErrCostUndefined, position)
		}
		return (position + 1) * step, nil
	}
}

// FixedCost expects the same value at every position.
func FixedCost(value int) CostRule {
	return func(position int) (int, error) {
		if position < 0 {
			return 0, fmt.Errorf("%w: %d", ErrCostUndefined, position)
		}
		return value, nil
	}
}

// NewCostRule builds the rule named by mode: "table", "linear" or "fixed".
func NewCostRule(mode string, table []int, step, fixed int) (CostRule, error) {
	switch mode {
	case "table":
		if len(table) == 0 {
			return nil, fmt.Errorf("cost table is empty")
		}
		return CostTable(table), nil
	case "linear":
		return LinearCost(step), nil
	case "fixed":
		return FixedCost(fixed), nil
	default:
		return nil, fmt.Errorf("unknown cost mode %q", mode)
	}
}
