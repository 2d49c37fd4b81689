package protocol

// StatusSuccess is the status value the scoring backend sends on success.
const StatusSuccess = "success"

// Question is one interview prompt served by the backend.
type Question struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Text     string `json:"question"`
}

// StartResponse is the body of GET /interview/start.
type StartResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Questions []Question `json:"questions"`
}

// ScoreRequest is the body of POST /interview/score.
type ScoreRequest struct {
	QuestionID      int64   `json:"question_id"`
	Transcript      string  `json:"transcript"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ScoreResponse is the reply of POST /interview/score.
type ScoreResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Report  *ScoreReport `json:"report,omitempty"`
}

// ScoreReport is produced by the backend; the client only renders it.
type ScoreReport struct {
	QuestionID   int64         `json:"question_id,omitempty"`
	Transcript   string        `json:"transcript"`
	OverallScore float64       `json:"overall_score"`
	Content      ContentScore  `json:"content"`
	Fluency      FluencyReport `json:"fluency"`
}

type ContentScore struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type FluencyReport struct {
	Score           float64 `json:"score"`
	WPM             float64 `json:"wpm"`
	WordCount       int     `json:"word_count,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	FillerCount     int     `json:"filler_count"`
	FillerRate      float64 `json:"filler_rate"`
	Feedback        string  `json:"feedback"`
}
