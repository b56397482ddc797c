package matching

import "github.com/campus-skillshare/backend/internal/models"

// ConnectionState is how a listed profile relates to the caller.
type ConnectionState string

const (
	StateNone      ConnectionState = "none"
	StatePending   ConnectionState = "pending"
	StateConnected ConnectionState = "connected"
)

// Filter narrows the explore list. Empty fields, or "all", match everything.
type Filter struct {
	University string `query:"university"`
	Teaches    string `query:"teaches"`
	Learns     string `query:"learns"`
}

// Profile is an explore entry annotated with its connection state.
type Profile struct {
	models.ProfileSnapshot
	ConnectionStatus ConnectionState `json:"connectionStatus"`
}

func (f Filter) matches(a *models.Account) bool {
	if !matchesAll(f.University) && normalize(a.University) != normalize(f.University) {
		return false
	}
	if !matchesAll(f.Teaches) && !contains(a.SkillsToTeach, f.Teaches) {
		return false
	}
	if !matchesAll(f.Learns) && !contains(a.SkillsToLearn, f.Learns) {
		return false
	}
	return true
}

// Explore lists every account except me that passes f. connected and pending hold the
// uids of my connections and of my pending outgoing requests; connected wins.
func Explore(me string, accounts []models.Account, f Filter, connected, pending map[string]bool) []Profile {
	out := make([]Profile, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		if a.UID == me || !f.matches(a) {
			continue
		}
		state := StateNone
		switch {
		case connected[a.UID]:
			state = StateConnected
		case pending[a.UID]:
			state = StatePending
		}
		out = append(out, Profile{ProfileSnapshot: a.Snapshot(), ConnectionStatus: state})
	}
	return out
}

func matchesAll(v string) bool {
	n := normalize(v)
	return n == "" || n == "all"
}

func contains(skills []string, want string) bool {
	w := normalize(want)
	for _, s := range skills {
		if normalize(s) == w {
			return true
		}
	}
	return false
}
