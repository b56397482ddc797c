// Package matching scores mutual-interest suggestions and filters the explore list.
// Everything here is a pure function of its arguments.
package matching

import (
	"sort"
	"strings"

	"github.com/campus-skillshare/backend/internal/models"
)

// Suggestion is a candidate who can teach something the caller wants to learn and
// wants to learn something the caller teaches.
type Suggestion struct {
	User             models.ProfileSnapshot `json:"user"`
	TeachesWhatINeed []string               `json:"teachesWhatINeed"`
	WantsWhatITeach  []string               `json:"wantsWhatITeach"`
	Score            int                    `json:"score"`
}

// Suggest scores every candidate against me. Skills compare case-insensitively and the
// candidate's spelling is kept in the result. Candidates with an empty intersection on
// either side are dropped, as is me. Ties keep the input order.
func Suggest(me models.Account, candidates []models.Account) []Suggestion {
	teach := skillSet(me.SkillsToTeach)
	learn := skillSet(me.SkillsToLearn)

	suggestions := make([]Suggestion, 0)
	for i := range candidates {
		c := &candidates[i]
		if c.UID == me.UID {
			continue
		}
		teachesWhatINeed := intersect(c.SkillsToTeach, learn)
		wantsWhatITeach := intersect(c.SkillsToLearn, teach)
		if len(teachesWhatINeed) == 0 || len(wantsWhatITeach) == 0 {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			User:             c.Snapshot(),
			TeachesWhatINeed: teachesWhatINeed,
			WantsWhatITeach:  wantsWhatITeach,
			Score:            len(teachesWhatINeed) + len(wantsWhatITeach),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	return suggestions
}

func normalize(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

func skillSet(skills []string) map[string]struct{} {
	set := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if n := normalize(s); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// intersect returns the skills present in set, once each, in the order they appear.
func intersect(skills []string, set map[string]struct{}) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, s := range skills {
		n := normalize(s)
		if _, ok := set[n]; !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, s)
	}
	return out
}
