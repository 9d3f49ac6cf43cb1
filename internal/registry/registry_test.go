package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func train(t *testing.T, assignee string) *model.Model {
	t.Helper()
	m, err := trainer.Train([]model.TicketRecord{
		{Title: "login error", Assignee: assignee},
	}, trainer.WithClock(func() time.Time { return time.Unix(0, 0) }))
	require.NoError(t, err)
	return m
}

func TestRegistry_Empty(t *testing.T) {
	r := New(nil)
	assert.False(t, r.Loaded())
	assert.Nil(t, r.Current())

	_, err := r.Scorer().Predict("login")
	assert.ErrorIs(t, err, common.ErrModelNotLoaded)
}

func TestRegistry_Swap(t *testing.T) {
	alice := train(t, "alice")
	bob := train(t, "bob")

	r := New(alice)
	require.True(t, r.Loaded())
	assert.Same(t, alice, r.Current())

	before := r.Scorer()

	prev := r.Swap(bob)
	assert.Same(t, alice, prev)
	assert.Same(t, bob, r.Current())

	got, err := before.Predict("login")
	require.NoError(t, err)
	assert.Equal(t, "alice", got, "a scorer keeps the model it was created with")

	got, err = r.Scorer().Predict("login")
	require.NoError(t, err)
	assert.Equal(t, "bob", got)
}

func TestRegistry_ConcurrentSwapAndRead(t *testing.T) {
	models := []*model.Model{train(t, "alice"), train(t, "bob")}
	r := New(models[0])

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Swap(models[i%2])
		}(i)
		go func() {
			defer wg.Done()
			got, err := r.Scorer().Predict("login")
			assert.NoError(t, err)
			assert.Contains(t, []string{"alice", "bob"}, got)
		}()
	}
	wg.Wait()
}
