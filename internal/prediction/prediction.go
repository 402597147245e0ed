package prediction

import "time"

// Sport enumerates the sports the engine accepts predictions for.
type Sport string

const (
	SportFootball   Sport = "football"
	SportBasketball Sport = "basketball"
)

// Known reports whether the sport is one the engine recognizes.
func (s Sport) Known() bool {
	switch s {
	case SportFootball, SportBasketball:
		return true
	}
	return false
}

// Category tags a prediction with its access classification. The category
// decides the default visibility tier enforced by the gate.
type Category string

const (
	CategoryBanker   Category = "banker"
	CategorySurprise Category = "surprise"
	CategoryVIP      Category = "vip"
)

// Known reports whether the category is a recognized classification.
func (c Category) Known() bool {
	switch c {
	case CategoryBanker, CategorySurprise, CategoryVIP:
		return true
	}
	return false
}

// Tier is the viewer access level supplied by the authentication
// collaborator. The engine trusts the claim verbatim.
type Tier string

const (
	TierAnonymous     Tier = "anonymous"
	TierAuthenticated Tier = "authenticated"
	TierVIP           Tier = "vip"
)

// Known reports whether the tier is a recognized viewer level.
func (t Tier) Known() bool {
	switch t {
	case TierAnonymous, TierAuthenticated, TierVIP:
		return true
	}
	return false
}

// Team identifies one side of a fixture. Rank is optional; nil means the
// upstream feed did not supply one.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Rank *int   `json:"rank,omitempty"`
}

// League identifies the competition a fixture belongs to.
type League struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Fixture carries the scheduled kickoff. Date orders predictions within a
// confidence tie; Time is a display-only local kickoff and may be empty.
type Fixture struct {
	Date time.Time `json:"date"`
	Time string    `json:"time,omitempty"`
}

// Reasoning holds the optional analyst notes attached to a prediction.
type Reasoning struct {
	Form       string            `json:"form,omitempty"`
	HeadToHead string            `json:"headToHead,omitempty"`
	Notes      map[string]string `json:"notes,omitempty"`
}

// Prediction is a single match's classified forecast. At most one live
// record exists per MatchID; writes for an existing MatchID replace the
// prior record whole.
type Prediction struct {
	MatchID     int64      `json:"matchId"`
	Sport       Sport      `json:"sport"`
	Category    Category   `json:"category"`
	Tip         string     `json:"tip"`
	Confidence  int        `json:"confidence"`
	HomeTeam    Team       `json:"homeTeam"`
	AwayTeam    Team       `json:"awayTeam"`
	League      League     `json:"league"`
	Fixture     Fixture    `json:"fixture"`
	Reasoning   *Reasoning `json:"reasoning,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// Clone returns a deep copy so callers never share pointer-backed fields
// with the store's view of the record.
func (p Prediction) Clone() Prediction {
	out := p
	if p.HomeTeam.Rank != nil {
		rank := *p.HomeTeam.Rank
		out.HomeTeam.Rank = &rank
	}
	if p.AwayTeam.Rank != nil {
		rank := *p.AwayTeam.Rank
		out.AwayTeam.Rank = &rank
	}
	if p.Reasoning != nil {
		reasoning := Reasoning{
			Form:       p.Reasoning.Form,
			HeadToHead: p.Reasoning.HeadToHead,
		}
		if len(p.Reasoning.Notes) > 0 {
			reasoning.Notes = make(map[string]string, len(p.Reasoning.Notes))
			for k, v := range p.Reasoning.Notes {
				reasoning.Notes[k] = v
			}
		}
		out.Reasoning = &reasoning
	}
	return out
}

// Stale reports whether the record's last write is older than maxAge at
// the supplied reference time. Staleness is informational; nothing in the
// engine purges on it.
func (p Prediction) Stale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(p.LastUpdated) > maxAge
}
