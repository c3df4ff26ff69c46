package service

import (
	"context"
	"log"
	"strings"

	"github.com/cloo-solutions/labelrag/internal/domain"
	"github.com/cloo-solutions/labelrag/internal/telemetry"
)

// ContextDelimiter separates chunk texts inside the prompt context.
const ContextDelimiter = "\n\n"

// ChunkRetriever is the retrieval dependency of the Orchestrator.
type ChunkRetriever interface {
	RetrieveScored(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

// Answer is a generated answer together with the chunks it was grounded on.
type Answer struct {
	Text    string
	Sources []domain.ScoredChunk
	// Degraded is set when nothing was retrieved and the model answered without context.
	Degraded bool
}

// Orchestrator answers questions by retrieving context and calling a Generator.
// It keeps no state between calls.
type Orchestrator struct {
	retriever ChunkRetriever
	generator Generator
	k         int
}

// NewOrchestrator creates an Orchestrator. k == 0 uses the retriever's default.
func NewOrchestrator(retriever ChunkRetriever, generator Generator, k int) *Orchestrator {
	return &Orchestrator{retriever: retriever, generator: generator, k: k}
}

// Answer returns the generator's output for question, unmodified.
func (o *Orchestrator) Answer(ctx context.Context, question string) (string, error) {
	ans, err := o.AnswerWithSources(ctx, question)
	if err != nil {
		return "", err
	}
	return ans.Text, nil
}

// AnswerWithSources runs retrieval, then generation. Retrieval always
// completes before the generator is called.
func (o *Orchestrator) AnswerWithSources(ctx context.Context, question string) (*Answer, error) {
	ctx, span := telemetry.StartSpan(ctx, "Orchestrator.Answer", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()

	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	sources, err := o.retriever.RetrieveScored(ctx, question, o.k)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	degraded := len(sources) == 0
	if degraded {
		log.Printf("EmptyIndexWarning: no chunks retrieved for question, generating without context")
		telemetry.AddBreadcrumb(ctx, "rag", "empty retrieval, answering without context")
	}

	prompt := BuildPrompt(question, BuildContext(domain.Chunks(sources)))

	genCtx, genSpan := telemetry.StartSpan(ctx, "Generator.Generate", telemetry.SpanAttributes{
		Operation: domain.StageGeneration,
	})
	text, err := o.generator.Generate(genCtx, prompt)
	if err != nil {
		genSpan.SetError(err)
	}
	genSpan.End()
	if err != nil {
		span.SetError(err)
		return nil, domain.NewGenerationFailure(err)
	}

	return &Answer{Text: text, Sources: sources, Degraded: degraded}, nil
}

// BuildContext joins chunk texts in rank order so the best match comes first
// and survives prompt truncation.
func BuildContext(chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, ContextDelimiter)
}

// BuildPrompt formats the question and context under labelled sections.
func BuildPrompt(question, context string) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nContext: ")
	b.WriteString(context)
	b.WriteString("\nAnswer:")
	return b.String()
}
