package scoring

import (
	"math"
	"strings"

	"undergame/internal/game"
)

// Score is one participant's end-of-game breakdown. Standing in the
// simulation is worth 80% of the total, deducing the hidden plot 20%.
type Score struct {
	Name           string `json:"name"`
	FactionScore   int    `json:"faction_score"`
	UndergameScore int    `json:"undergame_score"`
	TotalScore     int    `json:"total_score"`
}

// CalculateFinalScores computes final scores for every participant.
// Faction scores are normalized against the highest victory-point total;
// plot-guess scores measure how much of the actual plot a guess captured.
// Participants with no guess on record score zero on the plot component.
func CalculateFinalScores(state *game.WorldState, guesses map[string]string, actualPlot string) map[string]Score {
	maxVP := 1
	for _, p := range state.Participants {
		if p.VictoryPoints > maxVP {
			maxVP = p.VictoryPoints
		}
	}

	lowered := make(map[string]string, len(guesses))
	for id, guess := range guesses {
		lowered[strings.ToLower(id)] = guess
	}

	scores := make(map[string]Score, len(state.Participants))
	for id, p := range state.Participants {
		faction := float64(p.VictoryPoints) / float64(maxVP) * 80
		undergame := GuessSimilarity(lowered[id], actualPlot) * 20
		scores[id] = Score{
			Name:           p.Name,
			FactionScore:   int(math.Round(faction)),
			UndergameScore: int(math.Round(undergame)),
			TotalScore:     int(math.Round(faction + undergame)),
		}
	}
	return scores
}

// GuessSimilarity scores a plot guess in [0,1]: the fraction of the actual
// plot's significant words that appear in the guess.
func GuessSimilarity(guess, actual string) float64 {
	if guess == "" || actual == "" {
		return 0
	}
	guessWords := make(map[string]bool)
	for _, w := range tokenize(guess) {
		guessWords[w] = true
	}

	significant := 0
	matched := 0
	for _, w := range tokenize(actual) {
		if stopwords[w] || len(w) < 3 {
			continue
		}
		significant++
		if guessWords[w] {
			matched++
		}
	}
	if significant == 0 {
		return 0
	}
	return float64(matched) / float64(significant)
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "was": true, "are": true, "has": true, "have": true,
	"will": true, "been": true, "its": true, "their": true, "who": true,
	"what": true, "all": true, "into": true, "from": true, "already": true,
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}
