package model

import "time"

const (
	QuestionShortText    = "short-text"
	QuestionParagraph    = "paragraph"
	QuestionSingleChoice = "single-choice"
	QuestionMultiChoice  = "multi-choice"
)

type Credentials struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,min=1,max=100"`
}

type Form struct {
	ID        int        `json:"id,omitempty"`
	Title     string     `json:"title" validate:"required,max=100"`
	Questions []Question `json:"questions" validate:"dive"`
}

type Question struct {
	ID      int      `json:"id,omitempty"`
	Content string   `json:"content" validate:"required,max=500"`
	Type    string   `json:"type" validate:"required,oneof=short-text paragraph single-choice multi-choice"`
	Options []string `json:"options,omitempty"`
}

// Submission carries raw answer values keyed by question id.
// A value may be a single string or a list of strings; lists are
// flattened to a comma-joined string before storage.
type Submission struct {
	Answers map[string]any `json:"answers"`
}

type Response struct {
	ID         int       `json:"id"`
	Time       time.Time `json:"time"`
	Respondent string    `json:"respondent"`
	Answers    []Answer  `json:"answers"`
}

type Answer struct {
	Question string `json:"question"`
	Content  string `json:"content"`
}
