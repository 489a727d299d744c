package achievement

type CriteriaType string

const (
	CriteriaCurrentStreak CriteriaType = "current_streak"
	CriteriaLongestStreak CriteriaType = "longest_streak"
	CriteriaRecordHolder  CriteriaType = "record_holder"
)

type Achievement struct {
	Key           string       `json:"key"`
	Icon          string       `json:"icon"`
	Label         string       `json:"label"`
	CriteriaType  CriteriaType `json:"criteria_type"`
	CriteriaValue int          `json:"criteria_value"`
}

// Catalog is ordered by threshold so Unlocked returns badges in display order.
var Catalog = []Achievement{
	{Key: "bronze", Icon: "🥉", Label: "3-Period Warrior", CriteriaType: CriteriaCurrentStreak, CriteriaValue: 3},
	{Key: "silver", Icon: "🥈", Label: "6-Period Hero", CriteriaType: CriteriaCurrentStreak, CriteriaValue: 6},
	{Key: "gold", Icon: "🥇", Label: "12-Period Legend", CriteriaType: CriteriaCurrentStreak, CriteriaValue: 12},
	{Key: "diamond", Icon: "💎", Label: "24-Period Champion", CriteriaType: CriteriaLongestStreak, CriteriaValue: 24},
	{Key: "record", Icon: "📈", Label: "Record Holder", CriteriaType: CriteriaRecordHolder, CriteriaValue: 3},
}

func (a Achievement) satisfiedBy(current, longest int) bool {
	switch a.CriteriaType {
	case CriteriaCurrentStreak:
		return current >= a.CriteriaValue
	case CriteriaLongestStreak:
		return longest >= a.CriteriaValue
	case CriteriaRecordHolder:
		return current == longest && current >= a.CriteriaValue
	}
	return false
}

func Unlocked(current, longest int) []Achievement {
	out := make([]Achievement, 0, len(Catalog))
	for _, a := range Catalog {
		if a.satisfiedBy(current, longest) {
			out = append(out, a)
		}
	}
	return out
}

// NewlyUnlocked returns the threshold badges reached by moving from the
// before counters to the after counters. Record Holder is excluded: it is held
// continuously rather than crossed.
func NewlyUnlocked(beforeCurrent, beforeLongest, afterCurrent, afterLongest int) []Achievement {
	var out []Achievement
	for _, a := range Catalog {
		if a.CriteriaType == CriteriaRecordHolder {
			continue
		}
		if a.satisfiedBy(afterCurrent, afterLongest) && !a.satisfiedBy(beforeCurrent, beforeLongest) {
			out = append(out, a)
		}
	}
	return out
}

// Message is the encouragement line shown next to the streak counter.
func Message(current int) string {
	switch {
	case current >= 12:
		return "🎉 Amazing! Twelve periods in a row!"
	case current >= 6:
		return "💪 Six in a row - you're unstoppable!"
	case current >= 3:
		return "🌟 Three strong - keep it up!"
	case current >= 1:
		return "🔥 Great start! Keep meeting to grow your streak!"
	default:
		return "Start a streak by scheduling your first meetup!"
	}
}
