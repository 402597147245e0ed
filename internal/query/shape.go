package query

import (
	"time"

	"github.com/tipgate/tipgate/internal/prediction"
)

// kickoffTimeFallback stands in for fixtures whose local kickoff time the
// feed has not published yet.
const kickoffTimeFallback = "TBD"

// TeamView is the display shape for a fixture side.
type TeamView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Rank *int   `json:"rank,omitempty"`
}

// LeagueView is the display shape for a competition.
type LeagueView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// View is the response shape the query service hands to callers. All
// default/fallback substitution lives here: the engine stores only
// validated explicit values, and presentation layers must not invent
// their own fallbacks.
type View struct {
	MatchID     int64                 `json:"matchId"`
	Sport       string                `json:"sport"`
	Category    string                `json:"category"`
	Tip         string                `json:"tip"`
	Confidence  int                   `json:"confidence"`
	HomeTeam    TeamView              `json:"homeTeam"`
	AwayTeam    TeamView              `json:"awayTeam"`
	League      LeagueView            `json:"league"`
	KickoffDate string                `json:"kickoffDate"`
	KickoffTime string                `json:"kickoffTime"`
	Reasoning   *prediction.Reasoning `json:"reasoning,omitempty"`
	LastUpdated time.Time             `json:"lastUpdated"`
}

func shape(p prediction.Prediction) View {
	kickoffTime := p.Fixture.Time
	if kickoffTime == "" {
		kickoffTime = kickoffTimeFallback
	}
	return View{
		MatchID:     p.MatchID,
		Sport:       string(p.Sport),
		Category:    string(p.Category),
		Tip:         p.Tip,
		Confidence:  p.Confidence,
		HomeTeam:    shapeTeam(p.HomeTeam),
		AwayTeam:    shapeTeam(p.AwayTeam),
		League:      LeagueView{ID: p.League.ID, Name: p.League.Name},
		KickoffDate: p.Fixture.Date.UTC().Format("2006-01-02"),
		KickoffTime: kickoffTime,
		Reasoning:   p.Reasoning,
		LastUpdated: p.LastUpdated,
	}
}

func shapeTeam(t prediction.Team) TeamView {
	view := TeamView{ID: t.ID, Name: t.Name}
	if t.Rank != nil {
		rank := *t.Rank
		view.Rank = &rank
	}
	return view
}
