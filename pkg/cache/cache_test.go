package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestSetAndGet(t *testing.T) {
	c := New[string]()
	c.Set("acl.tp.iv-1", "tok-1", time.Second)
	val, ok := c.Get("acl.tp.iv-1")
	assert.True(t, ok)
	assert.Equal(t, "tok-1", val)
}

func TestExpiration(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c := NewWithClock[string](clk.now)
	c.Set("k", "v", time.Minute)

	clk.t = clk.t.Add(time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry is live at exactly its expiry instant")

	clk.t = clk.t.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestOverwriteRefreshesTTL(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c := NewWithClock[string](clk.now)
	c.Set("k", "old", time.Minute)
	clk.t = clk.t.Add(50 * time.Second)
	c.Set("k", "new", time.Minute)
	clk.t = clk.t.Add(30 * time.Second)

	val, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", val)
}

func TestDelete(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", time.Second)
	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	c := NewWithClock[int](clk.now)
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	clk.t = clk.t.Add(time.Minute)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 0, c.Sweep())

	val, ok := c.Get("long")
	assert.True(t, ok)
	assert.Equal(t, 2, val)
}
