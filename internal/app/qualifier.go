package app

import "itef-puzzle-service/internal/domain"

const (
	// WinningScore is the minimum percentage for any winner title.
	WinningScore = 90
	// DefaultCatalogSize is assumed when the catalog cannot be loaded.
	DefaultCatalogSize = 10
	// DefaultPassingScore applies to MCQ puzzles without their own threshold.
	DefaultPassingScore = 70
)

// QualifiesForPuzzleWin reports whether an attempt earns the per-puzzle title:
// first attempt, correct, no hints, and a score of at least WinningScore when present.
func QualifiesForPuzzleWin(a domain.Attempt) bool {
	if !a.IsCorrect || a.AttemptNumber != 1 || a.UsedHints {
		return false
	}
	return a.Score == nil || *a.Score >= WinningScore
}

// GlobalAverage returns the rounded average of maxScores over the catalog and
// whether every catalog puzzle has been attempted. With no catalog the raw key
// count is compared against DefaultCatalogSize.
func GlobalAverage(catalog []string, maxScores map[string]int) (int, bool) {
	total := len(catalog)
	attempted := 0
	sum := 0
	if total == 0 {
		total = DefaultCatalogSize
		attempted = len(maxScores)
		for _, s := range maxScores {
			sum += s
		}
	} else {
		for _, id := range catalog {
			if s, ok := maxScores[id]; ok {
				attempted++
				sum += s
			}
		}
	}
	if attempted < total {
		return 0, false
	}
	return RoundPercent(sum, total), true
}

// QualifiesForGlobal reports the champion average when the participant covered
// the whole catalog with a rounded average of at least WinningScore.
func QualifiesForGlobal(catalog []string, maxScores map[string]int) (int, bool) {
	avg, complete := GlobalAverage(catalog, maxScores)
	if !complete || avg < WinningScore {
		return 0, false
	}
	return avg, true
}

// RoundPercent divides sum by n rounding half up. Non-negative inputs only.
func RoundPercent(sum, n int) int {
	if n <= 0 {
		return 0
	}
	return (2*sum + n) / (2 * n)
}

// MaxScores maps each attempted puzzle to the best score seen.
func MaxScores(progress domain.UserProgress) map[string]int {
	out := make(map[string]int, len(progress.Attempts))
	for puzzleID, attempts := range progress.Attempts {
		if len(attempts) == 0 {
			continue
		}
		best := 0
		for _, a := range attempts {
			if s := a.ScoreValue(); s > best {
				best = s
			}
		}
		out[puzzleID] = best
	}
	return out
}

// ScoreQuiz returns the rounded percentage of correctly answered questions.
// answers maps question id to the selected choice id.
func ScoreQuiz(puzzle domain.Puzzle, answers map[string]string) int {
	if len(puzzle.Questions) == 0 {
		return 0
	}
	correct := 0
	for _, q := range puzzle.Questions {
		selected, ok := answers[q.ID]
		if !ok {
			continue
		}
		for _, c := range q.Choices {
			if c.IsCorrect {
				if c.ID == selected {
					correct++
				}
				break
			}
		}
	}
	return RoundPercent(correct*100, len(puzzle.Questions))
}

// QuizPassed compares a score against the puzzle's passing threshold.
func QuizPassed(score int, puzzle domain.Puzzle) bool {
	passing := puzzle.PassingScore
	if passing == 0 {
		passing = DefaultPassingScore
	}
	return score >= passing
}
