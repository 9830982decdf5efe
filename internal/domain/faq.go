package domain

// FAQ is a published question/answer pair exposed through semantic search.
type FAQ struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
