package matching

import (
	"testing"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func account(uid string, teach, learn []string) models.Account {
	return models.Account{UID: uid, Name: uid, SkillsToTeach: teach, SkillsToLearn: learn}
}

func TestSuggestMutualInterest(t *testing.T) {
	me := account("me", []string{"X"}, []string{"Y"})
	got := Suggest(me, []models.Account{
		account("match", []string{"y"}, []string{"x"}),
		account("nope", []string{"Z"}, []string{"Z"}),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "match", got[0].User.UID)
	assert.Equal(t, 2, got[0].Score)
	assert.Equal(t, []string{"y"}, got[0].TeachesWhatINeed, "candidate spelling is kept")
	assert.Equal(t, []string{"x"}, got[0].WantsWhatITeach)
}

func TestSuggestNeedsBothDirections(t *testing.T) {
	me := account("me", []string{"Go"}, []string{"Rust"})
	got := Suggest(me, []models.Account{
		account("tutor-only", []string{"Rust"}, []string{"Python"}),
		account("learner-only", []string{"Java"}, []string{"Go"}),
		me,
	})
	assert.Empty(t, got)
}

func TestSuggestSortsByScoreAndKeepsTies(t *testing.T) {
	me := account("me", []string{"Go", "SQL"}, []string{"Rust", "Figma"})
	candidates := []models.Account{
		account("a", []string{"Rust"}, []string{"Go"}),
		account("b", []string{"Rust", "Figma"}, []string{"Go", "SQL"}),
		account("c", []string{"figma"}, []string{"sql"}),
		account("d", []string{"Rust", "RUST"}, []string{"Go", "go"}),
	}

	got := Suggest(me, candidates)
	require.Len(t, got, 4)
	uids := []string{got[0].User.UID, got[1].User.UID, got[2].User.UID, got[3].User.UID}
	assert.Equal(t, []string{"b", "a", "c", "d"}, uids)
	assert.Equal(t, 4, got[0].Score)
	assert.Equal(t, 2, got[3].Score, "duplicate skills count once")

	assert.Equal(t, got, Suggest(me, candidates), "same input, same output")
	assert.Equal(t, "a", candidates[0].UID, "input is not reordered")
}

func TestExploreFiltersAndAnnotates(t *testing.T) {
	accounts := []models.Account{
		{UID: "me", University: "NUST"},
		{UID: "bob", University: "NUST", SkillsToTeach: []string{"C++"}, SkillsToLearn: []string{"Photoshop"}},
		{UID: "carol", University: "LUMS", SkillsToTeach: []string{"C++"}},
		{UID: "dave", University: "NUST", SkillsToTeach: []string{"Piano"}},
	}
	connected := map[string]bool{"dave": true}
	pending := map[string]bool{"bob": true, "dave": true}

	all := Explore("me", accounts, Filter{University: "all"}, connected, pending)
	require.Len(t, all, 3)
	assert.Equal(t, StatePending, all[0].ConnectionStatus)
	assert.Equal(t, StateNone, all[1].ConnectionStatus)
	assert.Equal(t, StateConnected, all[2].ConnectionStatus)

	nust := Explore("me", accounts, Filter{University: "nust", Teaches: "c++"}, nil, nil)
	require.Len(t, nust, 1)
	assert.Equal(t, "bob", nust[0].UID)

	learners := Explore("me", accounts, Filter{Learns: "Photoshop"}, nil, nil)
	require.Len(t, learners, 1)
	assert.Equal(t, StateNone, learners[0].ConnectionStatus)
}
