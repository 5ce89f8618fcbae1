package talker

import (
	"testing"
	"time"
)

func TestNewTalkerStartsVisible(t *testing.T) {
	tk := New(1)
	if !tk.Visible() {
		t.Error("new talker should be visible by default")
	}
}

func TestSetVisibleFalseClearsState(t *testing.T) {
	tk := New(1)
	tk.OnPacket(0, 0, []byte{1, 2, 3})
	tk.SetVisible(false)

	if tk.Visible() {
		t.Error("Visible() should be false after SetVisible(false)")
	}
	if stats := tk.JitterStats(); stats.QueuedPackets != 0 {
		t.Errorf("QueuedPackets = %d, want 0 after SetVisible(false)", stats.QueuedPackets)
	}
}

func TestOnPacketIgnoredWhenInvisible(t *testing.T) {
	tk := New(1)
	tk.SetVisible(false)
	tk.OnPacket(0, 0, []byte{1, 2, 3})

	if stats := tk.JitterStats(); stats.QueuedPackets != 0 {
		t.Errorf("QueuedPackets = %d, want 0 for packet received while invisible", stats.QueuedPackets)
	}
}

func TestTickDrainsJitterBufferIntoRing(t *testing.T) {
	tk := New(1)
	for i := uint16(0); i < 10; i++ {
		tk.OnPacket(i, i*20, make([]byte, 4))
	}
	// The jitter buffer gates playout on elapsed time since arrival, not
	// queue depth, so give the default minimum delay time to pass.
	time.Sleep(60 * time.Millisecond)
	for i := 0; i < 10; i++ {
		tk.Tick()
	}

	if _, ok := tk.ReadFrame(); !ok {
		t.Error("expected at least one decoded or concealed frame after ticking")
	}
}

func TestTickWhenInvisibleDoesNothing(t *testing.T) {
	tk := New(1)
	tk.SetVisible(false)
	tk.Tick() // should not panic or push frames

	if _, ok := tk.ReadFrame(); ok {
		t.Error("no frame should be produced while invisible")
	}
}

func TestIsSpeakingFollowsRecentPackets(t *testing.T) {
	tk := New(1)
	if tk.IsSpeaking() {
		t.Error("talker should not be speaking before any packet arrives")
	}
	tk.OnPacket(0, 0, []byte{1})
	tk.Tick()
	if !tk.IsSpeaking() {
		t.Error("talker should be speaking right after a packet and a tick")
	}
}
