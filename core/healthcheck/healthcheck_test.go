package healthcheck_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrymomot/cyre/core/healthcheck"
	"github.com/stretchr/testify/assert"
)

func TestAll_NilWhenEveryCheckPasses(t *testing.T) {
	t.Parallel()

	err := healthcheck.All(context.Background(),
		func(context.Context) error { return nil },
		func(context.Context) error { return nil },
	)
	assert.NoError(t, err)
}

func TestAll_JoinsFailingChecks(t *testing.T) {
	t.Parallel()

	errA := errors.New("a down")
	errB := errors.New("b down")

	err := healthcheck.All(context.Background(),
		func(context.Context) error { return errA },
		func(context.Context) error { return nil },
		func(context.Context) error { return errB },
	)
	require := assert.New(t)
	require.Error(err)
	require.ErrorIs(err, errA)
	require.ErrorIs(err, errB)
}

func TestAll_SkipsNilChecks(t *testing.T) {
	t.Parallel()

	err := healthcheck.All(context.Background(), nil, func(context.Context) error { return nil }, nil)
	assert.NoError(t, err)
}
