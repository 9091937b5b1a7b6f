package domain

import (
	"strings"
	"time"
)

// GlobalOverall is the puzzle id used for the cross-puzzle champion title.
const GlobalOverall = "global-overall"

// GuestID identifies a device that has not registered yet.
const GuestID = "guest"

// Identity is the participant acting on a device. ID is the normalized email.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// IsGuest reports whether the identity came from the unregistered fallback.
func (i Identity) IsGuest() bool {
	return i.ID == GuestID
}

// UserDetails is the persisted registration record for the current device.
type UserDetails struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Mobile         string `json:"mobile"`
	LoginTimestamp int64  `json:"loginTimestamp,omitempty"`
}

// NormalizeEmail lowercases and trims an email so it can be used as a participant key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Attempt is one completed play of one puzzle. Timestamp is epoch milliseconds.
type Attempt struct {
	PuzzleID      string `json:"puzzleId"`
	UserID        string `json:"userId"`
	AttemptNumber int    `json:"attemptNumber"`
	Timestamp     int64  `json:"timestamp"`
	IsCorrect     bool   `json:"isCorrect"`
	Score         *int   `json:"score,omitempty"`
	TimeSpent     *int   `json:"timeSpent,omitempty"`
	UsedHints     bool   `json:"usedHints"`
}

// ScoreValue returns the attempt score, treating a missing score as zero.
func (a Attempt) ScoreValue() int {
	if a.Score == nil {
		return 0
	}
	return *a.Score
}

// Time converts the millisecond timestamp.
func (a Attempt) Time() time.Time {
	return time.UnixMilli(a.Timestamp)
}

// AttemptInput is what a puzzle reports on completion.
type AttemptInput struct {
	PuzzleID         string
	IsCorrect        bool
	Score            *int
	TimeSpentSeconds int
	UsedHints        bool
}

// UserProgress is the per-participant local progress blob.
type UserProgress struct {
	UserID           string               `json:"userId"`
	UserName         string               `json:"userName"`
	Attempts         map[string][]Attempt `json:"attempts"`
	CompletedPuzzles []string             `json:"completedPuzzles"`
	WonPuzzles       []string             `json:"wonPuzzles"`
}

// WinnerRecord is a locally stored qualifying record. Timestamp is epoch milliseconds.
type WinnerRecord struct {
	PuzzleID  string `json:"puzzleId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Timestamp int64  `json:"timestamp"`
	Score     *int   `json:"score,omitempty"`
	TimeSpent *int   `json:"timeSpent,omitempty"`
}

// ScoreValue returns the record score, treating a missing score as zero.
func (w WinnerRecord) ScoreValue() int {
	if w.Score == nil {
		return 0
	}
	return *w.Score
}

// RecordResult is returned by the ledger after an attempt is stored.
type RecordResult struct {
	Attempt   Attempt       `json:"attempt"`
	PuzzleWin *WinnerRecord `json:"puzzleWin,omitempty"`
	GlobalWin *WinnerRecord `json:"globalWin,omitempty"`
}

// Winner is the leaderboard/remote shape of a winner.
type Winner struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PuzzleID    string    `json:"puzzleId"`
	CompletedAt time.Time `json:"completedAt"`
	Score       int       `json:"score"`
}

// Key is the upsert key used by the remote store.
func (w Winner) Key() string {
	return DocKey(w.Email, w.PuzzleID)
}

// IsGlobal reports whether the winner holds the cross-puzzle title.
func (w Winner) IsGlobal() bool {
	return w.PuzzleID == GlobalOverall
}

// DocKey builds the remote document id for a (participant, puzzle) pair.
func DocKey(participant, puzzleID string) string {
	return participant + "_" + puzzleID
}

// AttemptMirror is the payload sent to the remote store for each attempt.
type AttemptMirror struct {
	UserID    string
	PuzzleID  string
	IsCorrect bool
	Name      string
	Email     string
	Score     int
}

// AttemptDoc is the remote per-(participant, puzzle) attempt document.
type AttemptDoc struct {
	PuzzleID            string    `json:"puzzleId"`
	UserID              string    `json:"userId"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	AttemptCount        int       `json:"attemptCount"`
	FirstAttemptSuccess bool      `json:"firstAttemptSuccess"`
	Scores              []int     `json:"scores"`
	LastScore           *int      `json:"lastScore,omitempty"`
	LastAttemptAt       time.Time `json:"lastAttemptAt"`
}

// Registration is a remote registration record.
type Registration struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	AttemptCount int       `json:"attemptCount"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// AttendeeDoc is a registration joined with attempt documents.
type AttendeeDoc struct {
	UserID              string    `json:"userId"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	PuzzleID            string    `json:"puzzleId"`
	AttemptCount        int       `json:"attemptCount"`
	LastAttemptAt       time.Time `json:"lastAttemptAt"`
	FirstAttemptSuccess bool      `json:"firstAttemptSuccess"`
}

// AttemptRecord is the canonical attempt history for one (participant, puzzle) pair
// as observed by a single source.
type AttemptRecord struct {
	ParticipantID       string
	Name                string
	PuzzleID            string
	AttemptCount        int
	MaxScore            int
	FirstAttemptSuccess bool
	LastAttemptAt       time.Time
}

// AttendeeRow is one row of the attendees view.
type AttendeeRow struct {
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	TopicsAttended      int       `json:"topicsAttended"`
	TotalAttempts       int       `json:"totalAttempts"`
	FirstAttemptSuccess bool      `json:"firstAttemptSuccess"`
	LastAttemptAt       time.Time `json:"lastAttemptAt"`
}

// PuzzleStatus is the per-puzzle progress state for a participant.
type PuzzleStatus string

const (
	StatusNotStarted PuzzleStatus = "not-started"
	StatusInProgress PuzzleStatus = "in-progress"
	StatusCompleted  PuzzleStatus = "completed"
	StatusWon        PuzzleStatus = "won"
)

// UserStats summarizes local progress for the current participant.
type UserStats struct {
	TotalAttempts  int `json:"totalAttempts"`
	TotalCompleted int `json:"totalCompleted"`
	TotalWon       int `json:"totalWon"`
	SuccessRate    int `json:"successRate"`
	AverageScore   int `json:"averageScore"`
}

// Choice is a possible answer for an MCQ question.
type Choice struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question models an MCQ question with exactly one correct choice.
type Question struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Choices  []Choice `json:"choices"`
}

// Puzzle is one entry of the event catalog.
type Puzzle struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Type         string     `json:"type"`
	Difficulty   string     `json:"difficulty"`
	Questions    []Question `json:"questions,omitempty"`
	Hints        []string   `json:"hints,omitempty"`
	TimeLimit    int        `json:"timeLimit,omitempty"` // seconds
	PassingScore int        `json:"passingScore,omitempty"`
}
