package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPaid, false},
		{StatusApproved, StatusPaid, true},
		{StatusApproved, StatusRejected, true},
		{StatusApproved, StatusCancelled, false},
		{StatusPaid, StatusRejected, false},
		{StatusPaid, StatusPending, false},
		{StatusRejected, StatusApproved, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Paid ")
	assert.NoError(t, err)
	assert.Equal(t, StatusPaid, s)

	_, err = ParseStatus("settled")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
