package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tnqbao/gau-ads-orchestrator/batch"
)

// BatchStatus is the progress of one async batch request.
type BatchStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsCompleted  bool   `json:"is_completed"`
	TotalCount   int    `json:"total_count"`
	SuccessCount int    `json:"success_count"`
	ErrorCount   int    `json:"error_count"`
	InitialCount int    `json:"initial_count"`
	Status       string `json:"status"`
}

// BatchRequestResult is one operation result of a finished async batch.
type BatchRequestResult struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Status string         `json:"status"`
	Result map[string]any `json:"result"`
	Error  map[string]any `json:"error"`
}

// SubmitAsyncBatch posts the operations to the async batch endpoint and returns the raw response
// so the caller can run the tracking id extraction chain over it.
func (g *GraphClient) SubmitAsyncBatch(ctx context.Context, accountID, token, name string, ops []batch.Operation) (map[string]any, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	if len(ops) > batch.MaxOperationsPerBatch {
		return nil, fmt.Errorf("batch of %d operations exceeds the cap of %d", len(ops), batch.MaxOperationsPerBatch)
	}

	payload, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	var resp map[string]any
	err = g.do(ctx, request{
		op:        "submit_async_batch",
		method:    http.MethodPost,
		path:      AccountPath(accountID) + "/async_batch_requests",
		accountID: accountID,
		token:     token,
		form: url.Values{
			"name":    {name},
			"adbatch": {string(payload)},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ListAsyncBatchRequests returns the pending async requests of the account.
func (g *GraphClient) ListAsyncBatchRequests(ctx context.Context, accountID, token string) ([]map[string]any, error) {
	return listEdge[map[string]any](ctx, g, "list_async_batch_requests", AccountPath(accountID)+"/async_batch_requests", accountID, token,
		url.Values{"fields": {"id,name,is_completed,total_count"}})
}

func (g *GraphClient) GetAsyncBatchStatus(ctx context.Context, batchID, token string) (BatchStatus, error) {
	var status BatchStatus
	err := g.do(ctx, request{
		op:     "get_async_batch_status",
		method: http.MethodGet,
		path:   batchID,
		token:  token,
		query:  url.Values{"fields": {"id,name,is_completed,total_count,success_count,error_count,initial_count,status"}},
	}, &status)
	return status, err
}

func (g *GraphClient) GetAsyncBatchResults(ctx context.Context, batchID, token string) ([]BatchRequestResult, error) {
	raw, err := listEdge[map[string]any](ctx, g, "get_async_batch_results", batchID+"/requests", "", token,
		url.Values{"fields": {"id,name,status,result,error"}})
	if err != nil {
		return nil, err
	}

	results := make([]BatchRequestResult, 0, len(raw))
	for _, entry := range raw {
		r := BatchRequestResult{}
		r.ID, _ = entry["id"].(string)
		r.Name, _ = entry["name"].(string)
		r.Status, _ = entry["status"].(string)
		r.Result = asObject(entry["result"])
		r.Error = asObject(entry["error"])
		results = append(results, r)
	}
	return results, nil
}

// asObject accepts a nested object or the JSON string the batch API sometimes returns.
func asObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		var obj map[string]any
		if err := decodeJSON([]byte(t), &obj); err == nil {
			return obj
		}
	}
	return nil
}
