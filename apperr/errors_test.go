package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"user message wins", &RemoteUploadError{Payload: GraphError{Message: "raw", ErrorUserTitle: "title", ErrorUserMsg: "Image too small"}}, "Image too small"},
		{"title fallback", &RemoteUploadError{Payload: GraphError{Message: "raw", ErrorUserTitle: "Invalid image"}}, "Invalid image"},
		{"message fallback", &RemoteUploadError{Payload: GraphError{Message: "(#100) Invalid parameter"}}, "(#100) Invalid parameter"},
		{"empty payload", &RemoteUploadError{Err: errors.New("dial tcp: timeout")}, GenericUserMessage},
		{"wrapped remote", fmt.Errorf("upload: %w", &RemoteUploadError{Payload: GraphError{ErrorUserMsg: "nope"}}), "nope"},
		{"circuit open", &CircuitOpenError{Service: "facebook_api"}, "facebook_api is temporarily unavailable. Please try again in a minute."},
		{"rate limited", &RateLimitedError{AdAccountID: "act_1"}, "Facebook rate limit reached for this ad account. Please try again later."},
		{"io", NewIOError("open", "/tmp/x", errors.New("permission denied")), "Failed to read or store the uploaded file."},
		{"structure fetch", &DuplicationStructureFetchError{SourceID: "1", Err: errors.New("boom")}, "Failed to read the structure of the source entity."},
		{"structure fetch with remote cause", &DuplicationStructureFetchError{SourceID: "1", Err: &RemoteUploadError{Payload: GraphError{ErrorUserMsg: "No permission"}}}, "No permission"},
		{"internal", errors.New("pq: connection refused"), GenericUserMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, UserMessage(tc.err))
		})
	}
}

func TestRemoteUploadErrorRateLimitCodes(t *testing.T) {
	assert := require.New(t)
	for _, code := range []int{4, 17, 32, 613, 80000, 80004, 80014} {
		assert.True((&RemoteUploadError{Payload: GraphError{Code: code}}).IsRateLimited(), code)
	}
	for _, code := range []int{0, 100, 190, 80015} {
		assert.False((&RemoteUploadError{Payload: GraphError{Code: code}}).IsRateLimited(), code)
	}
}

func TestRemoteUploadErrorString(t *testing.T) {
	err := &RemoteUploadError{
		Service:    "facebook_api",
		Operation:  "adimages",
		StatusCode: 400,
		Payload:    GraphError{Code: 100, ErrorSubcode: 1487242, Message: "Invalid image"},
	}
	require.Equal(t, "facebook_api adimages failed (status 400, code 100/1487242): Invalid image", err.Error())
}

func TestPartialBatchFailure(t *testing.T) {
	assert := require.New(t)

	var nilPartial *PartialBatchFailure
	assert.False(nilPartial.HasFailures())

	p := &PartialBatchFailure{}
	assert.False(p.HasFailures())

	p.AddChunkError("ads", 2, []string{"a", "b"}, &RemoteUploadError{Payload: GraphError{ErrorUserMsg: "bad"}})
	p.AddSkipped("c")
	assert.True(p.HasFailures())
	assert.Equal("bad", p.ChunkErrors[0].Message)
	assert.Equal(2, p.ChunkErrors[0].ChunkIndex)
	assert.Equal([]string{"c"}, p.Skipped)

	untracked := &PartialBatchFailure{}
	untracked.AddUntracked("d")
	assert.True(untracked.HasFailures())
	assert.Empty(untracked.ChunkErrors)
}
