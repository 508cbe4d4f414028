package remittance

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPDF(t *testing.T) {
	out, err := New().Render(context.Background(), Advice{
		Issuer:       "royalti",
		PayoutID:     "1234",
		UserID:       "artist-1",
		Method:       "bank_transfer",
		Currency:     "USD",
		Amount:       "150.00",
		PaidAt:       "2024-02-01",
		Lines:        []Line{{Label: "Payout 1234", Amount: "150.00"}},
		Withdrawable: "0.00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRequiresPayout(t *testing.T) {
	_, err := New().Render(context.Background(), Advice{})
	assert.ErrorIs(t, err, ErrEmptyAdvice)
}
