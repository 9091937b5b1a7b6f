package app

import (
	"time"

	"itef-puzzle-service/internal/domain"
)

// fromDocs maps remote attempt documents to canonical records. Merge logic only
// ever sees records, never the source shapes.
func fromDocs(docs []domain.AttemptDoc) []domain.AttemptRecord {
	out := make([]domain.AttemptRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDoc(doc))
	}
	return out
}

// fromProgressList maps local progress blobs to one record per (participant, puzzle).
func fromProgressList(list []domain.UserProgress) []domain.AttemptRecord {
	var out []domain.AttemptRecord
	for _, p := range list {
		out = append(out, fromProgress(p)...)
	}
	return out
}

func fromDoc(doc domain.AttemptDoc) domain.AttemptRecord {
	participant := doc.Email
	if participant == "" {
		participant = doc.UserID
	}
	count := doc.AttemptCount
	if len(doc.Scores) > count {
		count = len(doc.Scores)
	}
	if count < 1 {
		count = 1
	}
	best := 0
	for _, s := range doc.Scores {
		if s > best {
			best = s
		}
	}
	if doc.LastScore != nil && *doc.LastScore > best {
		best = *doc.LastScore
	}
	return domain.AttemptRecord{
		ParticipantID:       domain.NormalizeEmail(participant),
		Name:                doc.Name,
		PuzzleID:            doc.PuzzleID,
		AttemptCount:        count,
		MaxScore:            best,
		FirstAttemptSuccess: doc.FirstAttemptSuccess,
		LastAttemptAt:       doc.LastAttemptAt,
	}
}

func fromProgress(p domain.UserProgress) []domain.AttemptRecord {
	participant := domain.NormalizeEmail(p.UserID)
	out := make([]domain.AttemptRecord, 0, len(p.Attempts))
	for puzzleID, attempts := range p.Attempts {
		if len(attempts) == 0 {
			continue
		}
		out = append(out, fromAttempts(participant, p.UserName, puzzleID, attempts))
	}
	return out
}

func fromAttempts(participant, name, puzzleID string, attempts []domain.Attempt) domain.AttemptRecord {
	rec := domain.AttemptRecord{
		ParticipantID: participant,
		Name:          name,
		PuzzleID:      puzzleID,
		AttemptCount:  len(attempts),
	}
	var last int64
	for _, a := range attempts {
		if a.AttemptNumber > rec.AttemptCount {
			rec.AttemptCount = a.AttemptNumber
		}
		if s := a.ScoreValue(); s > rec.MaxScore {
			rec.MaxScore = s
		}
		if a.AttemptNumber == 1 && a.IsCorrect {
			rec.FirstAttemptSuccess = true
		}
		if a.Timestamp > last {
			last = a.Timestamp
		}
	}
	if last > 0 {
		rec.LastAttemptAt = time.UnixMilli(last)
	}
	return rec
}
