package semantic

// TermVector is a single vocabulary term embedding to store in Qdrant.
type TermVector struct {
	TermID    string
	Label     string
	Embedding []float32
}

// Hit is a single nearest-neighbor result. Score is cosine similarity as
// reported by Qdrant; callers convert to distance as 1 - Score.
type Hit struct {
	TermID string  `json:"term_id"`
	Label  string  `json:"label"`
	Score  float32 `json:"score"`
}
