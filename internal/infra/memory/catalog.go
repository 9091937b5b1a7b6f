package memory

import "itef-puzzle-service/internal/domain"

// DefaultCatalog is the event's fixed puzzle line-up, in display order.
func DefaultCatalog() []domain.Puzzle {
	mcq := func(id, title, description, kind, difficulty string) domain.Puzzle {
		return domain.Puzzle{
			ID:           id,
			Title:        title,
			Description:  description,
			Type:         kind,
			Difficulty:   difficulty,
			TimeLimit:    600,
			PassingScore: 70,
		}
	}
	return []domain.Puzzle{
		{
			ID:          "engineering-wordle",
			Title:       "Engineering Wordle",
			Description: "Guess the 5-letter engineering term in 6 tries.",
			Type:        "engineering-wordle",
			Difficulty:  "medium",
			Hints:       []string{"Think about common engineering components and devices"},
		},
		mcq("electronics-fundamentals", "Electronics Fundamentals", "Core electronics concepts and components.", "scientific-mcq", "medium"),
		mcq("programming-logic", "Programming & Logic", "Reason about code, algorithms and logic.", "code-debug", "medium"),
		mcq("digital-electronics", "Digital Electronics", "Gates, flip-flops and number systems.", "circuit-logic", "hard"),
		mcq("mechanical-engineering", "Mechanical Engineering", "Statics, dynamics and machine elements.", "math-teasers", "hard"),
		mcq("thermodynamics", "Thermodynamics", "Energy, heat and the laws of thermodynamics.", "physics-problems", "hard"),
		mcq("materials-science", "Materials Science", "Properties and behaviour of engineering materials.", "pattern-recognition", "medium"),
		mcq("circuit-analysis", "Circuit Analysis", "Solve resistor networks and AC circuits.", "circuit-logic", "hard"),
		mcq("engineering-mathematics", "Engineering Mathematics", "Calculus, linear algebra and probability.", "math-teasers", "hard"),
		mcq("engineering-ethics", "Engineering Ethics & Safety", "Professional responsibility and safe practice.", "engineering-ethics", "medium"),
	}
}
