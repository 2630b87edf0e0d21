package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProofSubmitter is the chain-facing half of the proof bridge: it anchors a
// settlement digest under the configured contract and returns the resulting
// transaction hash.
type ProofSubmitter interface {
	SubmitProof(ctx context.Context, contractAddress string, chainID int64, payment Payment) (string, error)
}

// BridgeProofRecorder records settlement proofs through a submitter. It is
// strictly best effort: the payment lifecycle never depends on its result.
type BridgeProofRecorder struct {
	config    ProofConfig
	submitter ProofSubmitter
	now       func() time.Time
}

func NewBridgeProofRecorder(config ProofConfig, submitter ProofSubmitter) (*BridgeProofRecorder, error) {
	if submitter == nil {
		return nil, fmt.Errorf("core: proof submitter is required")
	}
	if config.Enabled && strings.TrimSpace(config.ContractAddress) == "" {
		return nil, fmt.Errorf("core: proof contract address is required")
	}
	return &BridgeProofRecorder{
		config:    config,
		submitter: submitter,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// IsEligible gates recording to confirmed, settled payments. A payment
// without an on-chain transaction hash has nothing to anchor.
func (r *BridgeProofRecorder) IsEligible(payment Payment) bool {
	if r == nil || !r.config.Enabled {
		return false
	}
	if payment.Status != PaymentStatusConfirmed {
		return false
	}
	return strings.TrimSpace(payment.TxHash) != ""
}

func (r *BridgeProofRecorder) RecordProof(ctx context.Context, payment Payment) (ProofReference, error) {
	if r == nil || r.submitter == nil {
		return ProofReference{}, fmt.Errorf("core: proof recorder is not configured")
	}
	if !r.IsEligible(payment) {
		return ProofReference{}, fmt.Errorf("core: payment %s is not eligible for proof recording", payment.ID)
	}
	txHash, err := r.submitter.SubmitProof(ctx, r.config.ContractAddress, r.config.ChainID, payment)
	if err != nil {
		return ProofReference{}, fmt.Errorf("core: proof submission failed for payment %s: %w", payment.ID, err)
	}
	return ProofReference{
		TxHash:     strings.TrimSpace(txHash),
		ChainID:    r.config.ChainID,
		RecordedAt: r.now(),
	}, nil
}

var _ ProofRecorder = (*BridgeProofRecorder)(nil)
