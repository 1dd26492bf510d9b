package questions

import "encoding/json"

// AnswerRequest represents the request body for POST /api/answer.
// QuestionID accepts both string and number forms, the frontend is
// not consistent about which one it sends.
type AnswerRequest struct {
	QuestionID json.Number `json:"question_id"`
	Text       string      `json:"text"`
}

// AnswerResponse represents the response for a successfully posted answer.
type AnswerResponse struct {
	QuestionID string `json:"question_id"`
	Status     string `json:"status"`
}

// ListResponse is the response for GET /api/questions: the raw question
// documents from the marketplace, newest first.
type ListResponse struct {
	Questions []json.RawMessage `json:"questions"`
}
