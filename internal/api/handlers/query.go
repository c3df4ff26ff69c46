package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/labelrag/internal/api"
	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/cloo-solutions/labelrag/internal/service"
)

type AnswerService interface {
	AnswerWithSources(ctx context.Context, question string) (*service.Answer, error)
}

type SearchService interface {
	RetrieveScored(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

type IndexStats interface {
	Len(ctx context.Context) (int, error)
	Dimension() int
}

type QueryHandler struct {
	answers  AnswerService
	searcher SearchService
	stats    IndexStats
}

func NewQueryHandler(answers AnswerService, searcher SearchService, stats IndexStats) *QueryHandler {
	return &QueryHandler{answers: answers, searcher: searcher, stats: stats}
}

type AskRequest struct {
	Question string `json:"question"`
}

type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type ChunkResponse struct {
	SourceID      string  `json:"source_id"`
	SequenceIndex int     `json:"sequence_index"`
	StartOffset   int     `json:"start_offset"`
	Text          string  `json:"text"`
	Score         float32 `json:"score"`
}

type AskResponse struct {
	Answer   string          `json:"answer"`
	Degraded bool            `json:"degraded"`
	Sources  []ChunkResponse `json:"sources"`
}

type SearchResponse struct {
	Results []ChunkResponse `json:"results"`
}

type StatsResponse struct {
	Chunks    int `json:"chunks"`
	Dimension int `json:"dimension"`
}

func scoredToResponse(scored []domain.ScoredChunk) []ChunkResponse {
	out := make([]ChunkResponse, len(scored))
	for i, s := range scored {
		out[i] = ChunkResponse{
			SourceID:      s.Chunk.SourceID,
			SequenceIndex: s.Chunk.SequenceIndex,
			StartOffset:   s.Chunk.StartOffset,
			Text:          s.Chunk.Text,
			Score:         s.Score,
		}
	}
	return out
}

// Ask answers a question from the indexed documents. A generation failure
// returns no answer text at all.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	answer, err := h.answers.AnswerWithSources(r.Context(), req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AskResponse{
		Answer:   answer.Text,
		Degraded: answer.Degraded,
		Sources:  scoredToResponse(answer.Sources),
	})
}

func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := h.searcher.RetrieveScored(r.Context(), req.Query, req.K)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: scoredToResponse(results)})
}

func (h *QueryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	n, err := h.stats.Len(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, StatsResponse{Chunks: n, Dimension: h.stats.Dimension()})
}
