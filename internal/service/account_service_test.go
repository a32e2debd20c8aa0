package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegister_Validation(t *testing.T) {
	// Validation runs before any store access, so a zero service suffices.
	svc := &AccountService{}
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "hunter22")
	assert.ErrorIs(t, err, ErrUsernameRequired)

	_, err = svc.Register(ctx, "alice", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = svc.Register(ctx, "alice", "")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
