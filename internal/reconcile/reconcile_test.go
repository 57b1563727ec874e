package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakearena/arena-backend/internal/apperror"
	"github.com/stakearena/arena-backend/internal/entity"
)

func strPtr(s string) *string { return &s }

func update(seq int64) *entity.StateUpdate {
	return &entity.StateUpdate{Seq: seq}
}

func TestReplica_Apply(t *testing.T) {
	t.Run("MergesPartialUpdate", func(t *testing.T) {
		// Given: a fresh replica
		replica := NewReplica()

		// When: a partial update sets only the turn
		up := update(1)
		up.Turn = strPtr(entity.PlayerO)

		require.NoError(t, replica.Apply(up))

		// Then: the turn is overwritten, everything else preserved
		state := replica.State()
		assert.Equal(t, entity.PlayerO, state.Turn)
		assert.Equal(t, entity.StatusWaiting, state.Status)
		assert.Equal(t, int64(1), replica.Seq())
	})

	t.Run("AbsentFieldsDoNotEraseState", func(t *testing.T) {
		// Given: an update already set the winner
		replica := NewReplica()

		first := update(1)
		first.Winner = strPtr(entity.PlayerX)
		first.Status = strPtr(entity.StatusFinished)
		require.NoError(t, replica.Apply(first))

		// When: a later thin update carries no winner field
		second := update(2)
		second.Turn = strPtr("")
		require.NoError(t, replica.Apply(second))

		// Then: the winner survives the merge
		assert.Equal(t, entity.PlayerX, replica.State().Winner)
		assert.Equal(t, entity.StatusFinished, replica.State().Status)
	})

	t.Run("DuplicateDeliveryIsIdempotent", func(t *testing.T) {
		// Given: an applied update
		replica := NewReplica()

		up := update(1)
		up.Turn = strPtr(entity.PlayerO)
		require.NoError(t, replica.Apply(up))

		stateAfterFirst := replica.State()

		// When: the same update arrives again
		require.NoError(t, replica.Apply(up))

		// Then: nothing changes
		assert.Equal(t, stateAfterFirst, replica.State())
		assert.Equal(t, int64(1), replica.Seq())
	})

	t.Run("StaleUpdateIsIgnored", func(t *testing.T) {
		replica := NewReplica()

		require.NoError(t, replica.Apply(update(1)))
		require.NoError(t, replica.Apply(update(2)))

		// When: an older update arrives late
		late := update(1)
		late.Turn = strPtr(entity.PlayerX)
		require.NoError(t, replica.Apply(late))

		// Then: the replica keeps the newer state
		assert.Equal(t, int64(2), replica.Seq())
	})

	t.Run("SequenceGapFlagsDivergence", func(t *testing.T) {
		// Given: a replica at seq 1
		replica := NewReplica()
		require.NoError(t, replica.Apply(update(1)))

		// When: seq 3 arrives without seq 2
		err := replica.Apply(update(3))

		// Then: divergence is flagged and the update is not merged
		require.ErrorIs(t, err, apperror.ErrDivergenceDetected)
		assert.True(t, replica.Diverged())
		assert.Equal(t, int64(1), replica.Seq())
	})

	t.Run("DivergedReplicaRejectsFurtherMerges", func(t *testing.T) {
		replica := NewReplica()
		require.NoError(t, replica.Apply(update(1)))
		require.ErrorIs(t, replica.Apply(update(3)), apperror.ErrDivergenceDetected)

		// When: even the missing update shows up afterwards
		err := replica.Apply(update(2))

		// Then: it is refused until a full resync
		require.ErrorIs(t, err, apperror.ErrDivergenceDetected)
	})
}

func TestReplica_MarkDiverged(t *testing.T) {
	// Given: a healthy replica
	replica := NewReplica()
	require.NoError(t, replica.Apply(update(1)))

	// When: local validation disagrees with the server
	replica.MarkDiverged()

	// Then: incremental merging is off
	assert.True(t, replica.Diverged())
	require.ErrorIs(t, replica.Apply(update(2)), apperror.ErrDivergenceDetected)
}

func TestReplica_Replace(t *testing.T) {
	// Given: a diverged replica
	replica := NewReplica()
	require.NoError(t, replica.Apply(update(1)))
	require.ErrorIs(t, replica.Apply(update(5)), apperror.ErrDivergenceDetected)

	// When: a full snapshot is installed
	snapshot := entity.NewGame()
	snapshot.Status = entity.StatusOngoing
	snapshot.Turn = entity.PlayerO
	snapshot.Board[4] = entity.PlayerX
	snapshot.Seq = 6

	replica.Replace(snapshot)

	// Then: the replica matches the snapshot and merging resumes
	assert.False(t, replica.Diverged())
	assert.Equal(t, int64(6), replica.Seq())
	assert.Equal(t, *snapshot, replica.State())

	next := update(7)
	next.Turn = strPtr(entity.PlayerX)
	require.NoError(t, replica.Apply(next))
	assert.Equal(t, entity.PlayerX, replica.State().Turn)
}
