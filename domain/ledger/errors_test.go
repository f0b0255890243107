package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		code Code
	}{
		{ErrInsufficientStake, CodeInsufficientStake},
		{fmt.Errorf("%w: need more", ErrInsufficientStake), CodeInsufficientStake},
		{ErrUnauthorized, CodeUnauthorized},
		{fmt.Errorf("%w: %w", ErrTransferFailed, errors.New("boom")), CodeTransferFailed},
		{ErrNoEntrants, CodeNoEntrants},
		{ErrPoolOverflow, CodePoolOverflow},
		{fmt.Errorf("failed to enter: %w", ErrInsufficientFunds), CodeInsufficientFunds},
		{ErrAccountNotFound, CodeAccountNotFound},
		{ErrNotDeployed, CodeLedgerNotDeployed},
		{ErrOperatorMismatch, CodeOperatorMismatch},
		{ErrDrawNotFound, CodeDrawNotFound},
		{fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount), CodeInvalidAmount},
		{errors.New("database unavailable"), CodeUnknown},
		{nil, CodeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, CodeOf(tt.err), "error: %v", tt.err)
	}
}
