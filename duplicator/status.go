package duplicator

import (
	"context"

	"github.com/tnqbao/gau-ads-orchestrator/batch"
	"github.com/tnqbao/gau-ads-orchestrator/provider"
)

// BatchStatus is the progress of one tracking id, plus the created object once it finished.
type BatchStatus struct {
	provider.BatchStatus
	CreatedObjectID string `json:"created_object_id,omitempty"`
}

// GetBatchStatus fetches progress counts for a tracking id. When the batch is complete the
// per-request results are read to find the object the first successful request created.
func (d *Duplicator) GetBatchStatus(ctx context.Context, batchID, token string) (*BatchStatus, error) {
	status, err := d.graph.GetAsyncBatchStatus(ctx, batchID, token)
	if err != nil {
		return nil, err
	}
	out := &BatchStatus{BatchStatus: status}
	if !status.IsCompleted || status.SuccessCount == 0 {
		return out, nil
	}

	results, err := d.graph.GetAsyncBatchResults(ctx, batchID, token)
	if err != nil {
		d.logger.WarningWithContextf(ctx, "[Duplicator] Batch %s finished but its results are unavailable: %v", batchID, err)
		return out, nil
	}
	for _, r := range results {
		if r.Error != nil || r.Result == nil {
			continue
		}
		if id, ok := batch.CopiedObjectID(r.Result); ok {
			out.CreatedObjectID = id
			break
		}
	}
	return out, nil
}
