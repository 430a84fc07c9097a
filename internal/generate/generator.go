package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Request is the prompt sent to the question generation service.
// PreviousQuestionTexts is a de-duplication hint so the generator avoids
// repeating recent questions for the same language and difficulty.
type Request struct {
	Language              string   `json:"language"`
	Difficulty            string   `json:"difficulty"`
	PreviousQuestionTexts []string `json:"previousQuestionTexts"`
}

// Payload is the structured question returned by the generation service.
// StartedAt is optional; when zero the caller stamps submission time.
type Payload struct {
	QuestionText       string    `json:"questionText"`
	CodeSample         string    `json:"codeSample,omitempty"`
	Options            []string  `json:"options"`
	CorrectAnswerIndex int       `json:"correctAnswerIndex"`
	Explanation        string    `json:"explanation,omitempty"`
	StartedAt          time.Time `json:"startedAt,omitempty"`
}

// Generator produces question content. Failures are transient and retryable;
// the caller owns the retry policy.
type Generator interface {
	Generate(ctx context.Context, req Request) (Payload, error)
}

// HTTPGenerator calls an external text-generation endpoint over HTTP.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (Payload, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal generation request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return Payload{}, fmt.Errorf("build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Payload{}, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Payload{}, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Payload{}, fmt.Errorf("decode generation payload: %w", err)
	}
	return payload, nil
}

// StaticGenerator serves canned questions keyed by language:difficulty
// (useful for tests/demos, same role the static quiz loader plays elsewhere).
type StaticGenerator struct {
	payloads map[string]Payload
}

func NewStaticGenerator(payloads map[string]Payload) *StaticGenerator {
	return &StaticGenerator{payloads: payloads}
}

func (g *StaticGenerator) Generate(_ context.Context, req Request) (Payload, error) {
	if p, ok := g.payloads[req.Language+":"+req.Difficulty]; ok {
		return p, nil
	}
	return Payload{}, fmt.Errorf("no canned question for %s/%s", req.Language, req.Difficulty)
}
