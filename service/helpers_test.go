package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"forum/models"
	"forum/repository/memory"

	"github.com/stretchr/testify/require"
)

// stepClock returns a time that advances by one second on every call.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func addUser(t *testing.T, store *memory.Store, id, name string) {
	t.Helper()
	require.NoError(t, store.CreateUser(context.Background(), &models.User{
		ID: id, Email: id + "@example.com", Name: name, Bio: "bio of " + name,
	}))
}
