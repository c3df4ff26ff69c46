package client

// Wire types mirror the server's JSON responses.

type Chunk struct {
	SourceID      string  `json:"source_id"`
	SequenceIndex int     `json:"sequence_index"`
	StartOffset   int     `json:"start_offset"`
	Text          string  `json:"text"`
	Score         float32 `json:"score"`
}

type AskResult struct {
	Answer   string  `json:"answer"`
	Degraded bool    `json:"degraded"`
	Sources  []Chunk `json:"sources"`
}

type SearchResult struct {
	Results []Chunk `json:"results"`
}

type DocumentResult struct {
	ID      string `json:"id"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
}

type Job struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Label       string `json:"label"`
	Status      string `json:"status"`
	Retries     int32  `json:"retries"`
	Error       string `json:"error,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
	ArchiveURL  string `json:"archive_url,omitempty"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == "completed" || j.Status == "failed"
}

type Stats struct {
	Chunks    int `json:"chunks"`
	Dimension int `json:"dimension"`
}
