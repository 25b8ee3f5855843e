package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/balance"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/fingerprint"
	"github.com/dvloznov/statement-insights/internal/normalize"
)

// PipelineStep represents a single step applied to one document.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the per-document state shared across steps.
type PipelineState struct {
	Input        Input
	Raw          []domain.RawTransaction
	Diagnostics  extraction.Diagnostics
	Transactions []domain.Transaction
}

// Step 1: DecodeStep parses the model text into raw records.
type DecodeStep struct{}

func (s *DecodeStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Input.Err != nil {
		return fmt.Errorf("extraction: %w", state.Input.Err)
	}
	raws, diag, err := extraction.Decode(state.Input.RawText)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	state.Raw = raws
	state.Diagnostics = diag
	return nil
}

// Step 2: NormalizeStep coerces raw records into typed transactions.
type NormalizeStep struct {
	Normalizer *normalize.Normalizer
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Transactions = s.Normalizer.Normalize(state.Raw)
	for i := range state.Transactions {
		state.Transactions[i].DocumentID = state.Input.DocumentID
	}
	return nil
}

// Step 3: FingerprintStep hashes every transaction.
type FingerprintStep struct{}

func (s *FingerprintStep) Execute(ctx context.Context, state *PipelineState) error {
	fingerprint.Apply(state.Transactions)
	return nil
}

// Step 4: BalanceStep rebuilds the available-credit trail of the document.
type BalanceStep struct{}

func (s *BalanceStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Transactions = balance.Reconstruct(state.Transactions)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewDocumentPipeline creates the per-document pipeline: decode, normalize,
// fingerprint, then balance reconstruction.
func NewDocumentPipeline(n *normalize.Normalizer) *Pipeline {
	return NewPipeline(
		&DecodeStep{},
		&NormalizeStep{Normalizer: n},
		&FingerprintStep{},
		&BalanceStep{},
	)
}
