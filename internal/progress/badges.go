package progress

import "github.com/verte-zerg/frametype/internal/model"

// Badge describes an achievement. A zero MinWPM means completion alone earns it.
type Badge struct {
	ID          string
	Title       string
	Description string
	MinWPM      int
}

const (
	BadgeCompletionist = "completionist"
	BadgeSteady        = "steady"
	BadgeSwift         = "swift"
	BadgeVelocity      = "velocity"
	BadgeVirtuoso      = "virtuoso"
)

// Badges is the catalog, in display order.
var Badges = []Badge{
	{ID: BadgeCompletionist, Title: "Completionist", Description: "Complete all lessons"},
	{ID: BadgeSteady, Title: "Steady Hands", Description: "10+ WPM on all lessons", MinWPM: 10},
	{ID: BadgeSwift, Title: "Swift Fingers", Description: "20+ WPM on all lessons", MinWPM: 20},
	{ID: BadgeVelocity, Title: "Velocity", Description: "40+ WPM on all lessons", MinWPM: 40},
	{ID: BadgeVirtuoso, Title: "Virtuoso", Description: "60+ WPM on all lessons", MinWPM: 60},
}

// LookupBadge returns the catalog entry for id.
func LookupBadge(id string) (Badge, bool) {
	for _, b := range Badges {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// EvaluateBadges returns the badge set earned by p over the given lessons.
// Badges already held are always kept.
func EvaluateBadges(p model.UserProgress, lessonIDs []int) model.StringSet {
	out := p.Badges.Clone()
	if len(lessonIDs) == 0 {
		return out
	}
	for _, id := range lessonIDs {
		if !p.CompletedLevels.Has(id) {
			return out
		}
	}
	slowest := -1
	for _, id := range lessonIDs {
		score, ok := p.LessonScores[id]
		wpm := 0
		if ok && score.Best != nil {
			wpm = score.Best.WPM
		}
		if slowest < 0 || wpm < slowest {
			slowest = wpm
		}
	}
	for _, b := range Badges {
		if slowest >= b.MinWPM {
			out[b.ID] = struct{}{}
		}
	}
	return out
}

// NewlyEarned lists badges present in after but not in before, in catalog order.
func NewlyEarned(before, after model.StringSet) []Badge {
	var out []Badge
	for _, b := range Badges {
		if after.Has(b.ID) && !before.Has(b.ID) {
			out = append(out, b)
		}
	}
	return out
}
