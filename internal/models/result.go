package models

import "time"

// QueryResult is the answer to one question.
type QueryResult struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Matches  []*Match `json:"-"`
	Sources  []Source `json:"sources"`
	// Filtered is true when no match passed the similarity threshold and the fixed
	// no-match response was returned without calling the model.
	Filtered     bool  `json:"filtered"`
	PromptTokens int   `json:"prompt_tokens,omitempty"`
	QueryTime    int64 `json:"query_time_ms"`
}

// Role identifies the speaker of a chat turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Turn is one entry of a chat history.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}
