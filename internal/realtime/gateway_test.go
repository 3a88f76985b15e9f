package realtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records every event written to it.
type fakeConn struct {
	events []Event
	failed bool
	closed bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.failed {
		return errors.New("broken pipe")
	}
	c.events = append(c.events, v.(Event))
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestGateway_EmitRoom_OnlyMembersReceive(t *testing.T) {
	g := NewGateway()
	member := &fakeConn{}
	outsider := &fakeConn{}

	g.Join(member, "neg-1")
	g.Join(outsider, "neg-2")

	g.EmitRoom("neg-1", "bidUpdate", map[string]string{"id": "b1"})

	require.Len(t, member.events, 1)
	assert.Equal(t, "bidUpdate", member.events[0].Event)
	assert.Empty(t, outsider.events)
}

func TestGateway_EmitRoom_NoListeners_Silent(t *testing.T) {
	g := NewGateway()
	// No one joined; must not panic or error.
	g.EmitRoom("neg-404", "negotiationClosed", nil)
}

func TestGateway_Leave_StopsDelivery(t *testing.T) {
	g := NewGateway()
	c := &fakeConn{}
	g.Join(c, "neg-1")
	g.Leave(c, "neg-1")

	g.EmitRoom("neg-1", "bidUpdate", nil)
	assert.Empty(t, c.events)
	assert.Equal(t, 0, g.RoomSize("neg-1"))
}

func TestGateway_EmitUser_PersonalChannel(t *testing.T) {
	g := NewGateway()
	farmer := &fakeConn{}
	buyer := &fakeConn{}
	g.Register(farmer, "farmer-1")
	g.Register(buyer, "buyer-1")

	g.EmitUser("farmer-1", "bidNotification", map[string]string{"type": "new_bid"})

	require.Len(t, farmer.events, 1)
	assert.Equal(t, "bidNotification", farmer.events[0].Event)
	assert.Empty(t, buyer.events)
}

func TestGateway_Register_MovesChannel(t *testing.T) {
	g := NewGateway()
	c := &fakeConn{}
	g.Register(c, "user-a")
	g.Register(c, "user-b")

	g.EmitUser("user-a", "bidNotification", nil)
	assert.Empty(t, c.events)
	g.EmitUser("user-b", "bidNotification", nil)
	assert.Len(t, c.events, 1)
}

func TestGateway_DeadConnection_DroppedOnWriteFailure(t *testing.T) {
	g := NewGateway()
	dead := &fakeConn{failed: true}
	alive := &fakeConn{}
	g.Join(dead, "neg-1")
	g.Join(alive, "neg-1")

	g.EmitRoom("neg-1", "newBid", nil)

	assert.True(t, dead.closed)
	assert.Equal(t, 1, g.RoomSize("neg-1"))
	// Subsequent emits reach only the surviving member.
	g.EmitRoom("neg-1", "newBid", nil)
	assert.Len(t, alive.events, 2)
}

func TestGateway_Drop_RemovesAllMemberships(t *testing.T) {
	g := NewGateway()
	c := &fakeConn{}
	g.Join(c, "neg-1")
	g.Join(c, "neg-2")
	g.Register(c, "user-1")

	g.Drop(c)

	assert.True(t, c.closed)
	g.EmitRoom("neg-1", "x", nil)
	g.EmitRoom("neg-2", "x", nil)
	g.EmitUser("user-1", "x", nil)
	assert.Empty(t, c.events)
}
