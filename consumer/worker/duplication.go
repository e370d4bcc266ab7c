package worker

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/tnqbao/gau-ads-orchestrator/infra/produce"
)

type JobPoller interface {
	PollJob(ctx context.Context, msg produce.BatchPollMessage) error
}

// BatchPollHandler advances a duplication job by one poll. The next poll is scheduled by PollJob.
func BatchPollHandler(poller JobPoller) Handler {
	return func(ctx context.Context, body []byte) error {
		var msg produce.BatchPollMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return poison("invalid batch poll message: %v", err)
		}
		if msg.JobID == "" {
			return poison("batch poll message without job id")
		}
		return poller.PollJob(ctx, msg)
	}
}
