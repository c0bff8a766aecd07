package rules

import (
	"fmt"

	"drinkpoint-api/internal/model"
)

// metricFunc extracts one numeric stat. ok is false when the stat is absent (weekly rank
// for a user with no points this week).
type metricFunc func(model.UserStatsSnapshot) (value float64, ok bool)

var metrics = map[string]metricFunc{
	"total_points": func(s model.UserStatsSnapshot) (float64, bool) {
		return float64(s.TotalPoints), true
	},
	"total_consumptions": func(s model.UserStatsSnapshot) (float64, bool) {
		return float64(s.TotalConsumptions), true
	},
	"consecutive_days": func(s model.UserStatsSnapshot) (float64, bool) {
		return float64(s.ConsecutiveDays), true
	},
	"unique_products": func(s model.UserStatsSnapshot) (float64, bool) {
		return float64(s.UniqueProductCount), true
	},
	"total_volume_ml": func(s model.UserStatsSnapshot) (float64, bool) {
		return float64(s.TotalVolumeML), true
	},
	"days_since_joined": func(s model.UserStatsSnapshot) (float64, bool) {
		return float64(s.DaysSinceJoined), true
	},
	"weekly_rank": func(s model.UserStatsSnapshot) (float64, bool) {
		if s.WeeklyRank == nil {
			return 0, false
		}
		return float64(*s.WeeklyRank), true
	},
}

var comparators = map[string]func(a, b float64) bool{
	">=": func(a, b float64) bool { return a >= b },
	">":  func(a, b float64) bool { return a > b },
	"==": func(a, b float64) bool { return a == b },
	"<=": func(a, b float64) bool { return a <= b },
	"<":  func(a, b float64) bool { return a < b },
}

// Threshold builds a condition comparing a named stat against value.
func Threshold(metric, op string, value float64) (func(model.UserStatsSnapshot) bool, error) {
	get, ok := metrics[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	if op == "" {
		op = ">="
	}
	cmp, ok := comparators[op]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", op)
	}
	return func(s model.UserStatsSnapshot) bool {
		v, present := get(s)
		return present && cmp(v, value)
	}, nil
}

// HourBetween holds when any recent activity sample falls in [from, to). A window with
// from > to wraps past midnight.
func HourBetween(from, to int) (func(model.UserStatsSnapshot) bool, error) {
	if from < 0 || from > 23 || to < 0 || to > 24 || from == to {
		return nil, fmt.Errorf("invalid hour window [%d, %d)", from, to)
	}
	return func(s model.UserStatsSnapshot) bool {
		for _, a := range s.RecentActivity {
			if from < to {
				if a.Hour >= from && a.Hour < to {
					return true
				}
			} else if a.Hour >= from || a.Hour < to {
				return true
			}
		}
		return false
	}, nil
}

// HasCategory holds when any recent activity sample is of category c.
func HasCategory(c model.Category) func(model.UserStatsSnapshot) bool {
	return func(s model.UserStatsSnapshot) bool {
		for _, a := range s.RecentActivity {
			if a.Category == c {
				return true
			}
		}
		return false
	}
}

func mustThreshold(metric string, value float64) func(model.UserStatsSnapshot) bool {
	cond, err := Threshold(metric, ">=", value)
	if err != nil {
		panic(err)
	}
	return cond
}

func mustHourBetween(from, to int) func(model.UserStatsSnapshot) bool {
	cond, err := HourBetween(from, to)
	if err != nil {
		panic(err)
	}
	return cond
}
