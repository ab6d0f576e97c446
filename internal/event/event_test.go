package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeed_PublishReachesSubscribersInOrder(t *testing.T) {
	var f Feed[int]
	var got []string

	f.Subscribe(func(v int) { got = append(got, "a") })
	f.Subscribe(func(v int) { got = append(got, "b") })

	n := f.Publish(1)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestFeed_Unsubscribe(t *testing.T) {
	var f Feed[string]
	count := 0

	unsubscribe := f.Subscribe(func(string) { count++ })
	f.Publish("x")
	unsubscribe()
	unsubscribe()
	f.Publish("y")

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, f.Len())
}

func TestFeed_Clear(t *testing.T) {
	var f Feed[string]
	f.Subscribe(func(string) {})
	f.Subscribe(func(string) {})
	assert.Equal(t, 2, f.Len())

	f.Clear()
	assert.Equal(t, 0, f.Publish("ignored"))
}

func TestFeed_HandlerMaySubscribeDuringPublish(t *testing.T) {
	var f Feed[int]
	calls := 0
	f.Subscribe(func(int) {
		calls++
		f.Subscribe(func(int) { calls++ })
	})

	f.Publish(1)
	assert.Equal(t, 1, calls)
}
