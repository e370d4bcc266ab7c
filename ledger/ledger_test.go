package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra"
	"github.com/tnqbao/gau-ads-orchestrator/repository/repositorytest"
)

func TestRecordAndLookup(t *testing.T) {
	require := require.New(t)
	l := New(repositorytest.NewMemoryAccountUploadRepository(), infra.NewNopLogger())
	ctx := context.Background()
	creativeID := uuid.New()

	uploaded, err := l.IsUploaded(ctx, creativeID, "111")
	require.NoError(err)
	require.False(uploaded)

	require.NoError(l.RecordUpload(ctx, creativeID, "111", entity.RemoteIDs{ImageHash: "h1"}))

	// "111" and "act_111" are the same account.
	record, err := l.GetRecord(ctx, creativeID, "act_111")
	require.NoError(err)
	require.NotNil(record)
	assert.Equal(t, "act_111", record.AdAccountID)
	assert.Equal(t, entity.RemoteIDs{ImageHash: "h1"}, record.RemoteIDs())

	other, err := l.IsUploaded(ctx, creativeID, "222")
	require.NoError(err)
	assert.False(t, other)
}

func TestRecordUploadReplaces(t *testing.T) {
	repo := repositorytest.NewMemoryAccountUploadRepository()
	l := New(repo, infra.NewNopLogger())
	ctx := context.Background()
	creativeID := uuid.New()

	require.NoError(t, l.RecordUpload(ctx, creativeID, "act_1", entity.RemoteIDs{VideoID: "v1"}))
	require.NoError(t, l.RecordUpload(ctx, creativeID, "act_1", entity.RemoteIDs{VideoID: "v2"}))

	record, err := l.GetRecord(ctx, creativeID, "act_1")
	require.NoError(t, err)
	assert.Equal(t, entity.RemoteIDs{VideoID: "v2"}, record.RemoteIDs())
	assert.Equal(t, 1, repo.Count())
}

func TestRecordUploadRequiresRemoteID(t *testing.T) {
	repo := repositorytest.NewMemoryAccountUploadRepository()
	l := New(repo, infra.NewNopLogger())

	err := l.RecordUpload(context.Background(), uuid.New(), "act_1", entity.RemoteIDs{})
	assert.ErrorIs(t, err, ErrNoRemoteIDs)
	assert.Equal(t, 0, repo.Count())
}

func TestAccounts(t *testing.T) {
	l := New(repositorytest.NewMemoryAccountUploadRepository(), infra.NewNopLogger())
	ctx := context.Background()
	creativeID := uuid.New()

	require.NoError(t, l.RecordUpload(ctx, creativeID, "1", entity.RemoteIDs{ImageHash: "a"}))
	require.NoError(t, l.RecordUpload(ctx, creativeID, "2", entity.RemoteIDs{ImageHash: "b"}))
	require.NoError(t, l.RecordUpload(ctx, uuid.New(), "3", entity.RemoteIDs{ImageHash: "c"}))

	records, err := l.Accounts(ctx, creativeID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
