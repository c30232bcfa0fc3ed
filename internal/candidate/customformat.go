package candidate

// CustomFormat is a user-defined release classification matched against a
// candidate, carrying the score it contributes.
type CustomFormat struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}
