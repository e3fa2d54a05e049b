// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// NLIVerdict is a natural-language-inference classification of a citing
// sentence against the cited work's abstract.
type NLIVerdict struct {
	Label      string             `json:"label"` // "entailment", "contradiction", or "neutral"
	Confidence float64            `json:"confidence"`
	Probs      map[string]float64 `json:"probs,omitempty"`
}

// NLIClassifier scores a premise/hypothesis pair.
type NLIClassifier interface {
	Classify(ctx context.Context, premise, hypothesis string) (NLIVerdict, error)
}

// HTTPNLI calls an inference endpoint that serves an MNLI-style model.
type HTTPNLI struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPNLI builds a classifier for the given endpoint.
func NewHTTPNLI(endpoint string, client *http.Client) *HTTPNLI {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPNLI{Endpoint: endpoint, Client: client}
}

type nliRequest struct {
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
}

// Classify posts the pair and normalizes the response to the canonical MNLI
// labels, picking the highest-probability one.
func (n *HTTPNLI) Classify(ctx context.Context, premise, hypothesis string) (NLIVerdict, error) {
	body, err := json.Marshal(nliRequest{Premise: premise, Hypothesis: hypothesis})
	if err != nil {
		return NLIVerdict{}, fmt.Errorf("marshaling NLI request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Endpoint, bytes.NewReader(body))
	if err != nil {
		return NLIVerdict{}, fmt.Errorf("creating NLI request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return NLIVerdict{}, fmt.Errorf("calling NLI endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return NLIVerdict{}, fmt.Errorf("NLI endpoint returned %d: %s", resp.StatusCode, string(msg))
	}

	var payload struct {
		Probs map[string]float64 `json:"probs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return NLIVerdict{}, fmt.Errorf("decoding NLI response: %w", err)
	}

	probs := map[string]float64{
		"entailment":    payload.Probs["entailment"],
		"contradiction": payload.Probs["contradiction"],
		"neutral":       payload.Probs["neutral"],
	}
	best := "entailment"
	for _, label := range []string{"contradiction", "neutral"} {
		if probs[label] > probs[best] {
			best = label
		}
	}
	return NLIVerdict{Label: best, Confidence: probs[best], Probs: probs}, nil
}
