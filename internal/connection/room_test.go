package connection

import (
	"testing"

	"mentorbridge/backend/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomID_OrderIndependent(t *testing.T) {
	assert.Equal(t, "1_2", RoomID(1, 2))
	assert.Equal(t, "1_2", RoomID(2, 1))
	assert.Equal(t, "7_10", RoomID(10, 7))
}

func TestParseRoomID(t *testing.T) {
	a, b, err := ParseRoomID(RoomID(42, 3))
	require.NoError(t, err)
	assert.Equal(t, uint(3), a)
	assert.Equal(t, uint(42), b)

	for _, bad := range []string{"", "12", "2_1", "1_1", "a_b", "0_5", "1_2_3", "-1_2"} {
		_, _, err := ParseRoomID(bad)
		assert.ErrorIs(t, err, apperrors.ErrValidation, bad)
	}
}

func TestPairLocks_ReleasesEntries(t *testing.T) {
	locks := newPairLocks()

	unlock := locks.Lock(1, 2)
	assert.Equal(t, 1, locks.size())
	unlock()
	assert.Equal(t, 0, locks.size())
}
