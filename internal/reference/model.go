package reference

import (
	"slices"
	"time"
)

// EnumDirectory описывает один справочник типа enum
type EnumDirectory struct {
	Name  string     `yaml:"name" json:"name"`
	Items []EnumItem `yaml:"items" json:"items"`
}

type EnumItem struct {
	Code      string `yaml:"code" json:"code"`
	Name      string `yaml:"name" json:"name"`
	Order     int    `yaml:"order,omitempty" json:"order,omitempty"`
	ValidFrom string `yaml:"valid_from,omitempty" json:"valid_from,omitempty"`
	ValidTo   string `yaml:"valid_to,omitempty" json:"valid_to,omitempty"`
}

// ActiveOn: пустые границы не ограничивают; неразборчивая дата считается пустой.
func (it EnumItem) ActiveOn(day time.Time) bool {
	d := day.Format(time.DateOnly)
	if from, err := time.Parse(time.DateOnly, it.ValidFrom); err == nil && d < from.Format(time.DateOnly) {
		return false
	}
	if to, err := time.Parse(time.DateOnly, it.ValidTo); err == nil && d > to.Format(time.DateOnly) {
		return false
	}
	return true
}

// Codes — коды элементов, действующих на day, в порядке order (затем как в файле).
func (d EnumDirectory) Codes(day time.Time) []string {
	items := slices.Clone(d.Items)
	slices.SortStableFunc(items, func(a, b EnumItem) int { return a.Order - b.Order })
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.ActiveOn(day) {
			out = append(out, it.Code)
		}
	}
	return out
}
