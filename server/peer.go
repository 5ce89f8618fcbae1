package server

import (
	"net"

	"github.com/voicecraft/voicecraft-core/netstats"
	"github.com/voicecraft/voicecraft-core/security"
)

// peer is the relay's server-side state for one connected entity.
type peer struct {
	entityId int32
	addr     net.Addr
	session  *security.Session
	name     string

	muted    bool
	deafened bool
	position [3]float32
	rotation [2]float32

	stats *netstats.Tracker
}
