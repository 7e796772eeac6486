package domain

import "time"

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption"`
}

// QuizDefinition is the immutable content of a single quiz. It is loaded
// once per attempt and never mutated.
type QuizDefinition struct {
	ID                string     `json:"id"`
	Questions         []Question `json:"questions"`
	TimeLimitSeconds  int        `json:"timeLimitSeconds"`
	PointsPerQuestion int        `json:"pointsPerQuestion"`
	ExpiresAt         int64      `json:"expiresAt"` // epoch milliseconds
}

// Expired reports whether the quiz availability window has closed. Expiry
// only gates starting a session; a running session is allowed to finish.
func (q QuizDefinition) Expired(now time.Time) bool {
	return q.ExpiresAt <= now.UnixMilli()
}

// QuizSummary is the public listing shape: quiz metadata without answers.
type QuizSummary struct {
	ID                string `json:"id"`
	TotalQuestions    int    `json:"totalQuestions"`
	TimeLimitSeconds  int    `json:"timeLimitSeconds"`
	PointsPerQuestion int    `json:"pointsPerQuestion"`
	ExpiresAt         int64  `json:"expiresAt"`
}

// Summary strips the question list (and with it the correct answers).
func (q QuizDefinition) Summary() QuizSummary {
	return QuizSummary{
		ID:                q.ID,
		TotalQuestions:    len(q.Questions),
		TimeLimitSeconds:  q.TimeLimitSeconds,
		PointsPerQuestion: q.PointsPerQuestion,
		ExpiresAt:         q.ExpiresAt,
	}
}

// QuizResult is the immutable snapshot produced when a session finishes.
type QuizResult struct {
	QuizID        string  `json:"quizId"`
	AnsweredCount int     `json:"answeredCount"`
	CorrectCount  int     `json:"correctCount"`
	PointsEarned  int     `json:"pointsEarned"`
	AccuracyRate  float64 `json:"accuracyRate"` // percentage, one decimal
	TimedOut      bool    `json:"timedOut"`
}

// UserProfile is the durable per-user document. It is created lazily at
// zero and mutated only through reconciliation transactions.
type UserProfile struct {
	UserID           string          `json:"userId"`
	Name             string          `json:"name,omitempty"`
	Score            int             `json:"score"`
	LeagueScore      int             `json:"leagueScore"`
	CompletedQuizIDs map[string]bool `json:"completedQuizIds,omitempty"`
	GlobalRank       int64           `json:"globalRank,omitempty"`
}

// Completed reports whether the user already banked points for the quiz.
func (p UserProfile) Completed(quizID string) bool {
	return p.CompletedQuizIDs[quizID]
}

// League is a user-created scoring group. JoinCode is non-empty iff the
// league is private, and unique among private leagues at any point in time.
type League struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	OwnerID         string    `json:"ownerId"`
	IsPrivate       bool      `json:"isPrivate"`
	JoinCode        string    `json:"joinCode,omitempty"`
	MemberCount     int       `json:"memberCount"`
	PointsAggregate int       `json:"pointsAggregate"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Membership records one user's participation in one league.
type Membership struct {
	UserID           string `json:"userId"`
	LeagueID         string `json:"leagueId"`
	IsOwner          bool   `json:"isOwner"`
	ContributedScore int    `json:"contributedScore"`
}

// LeaderboardEntry is one row of the observed global leaderboard.
type LeaderboardEntry struct {
	Rank   int64  `json:"rank"`
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Score  int64  `json:"score"`
}

// ScoreEvent is the fire-and-forget signal emitted after a successful
// reconciliation; the rank projector consumes it.
type ScoreEvent struct {
	UserID     string    `json:"userId"`
	QuizID     string    `json:"quizId"`
	Points     int       `json:"points"`
	TotalScore int       `json:"totalScore"`
	At         time.Time `json:"at"`
}
