package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "inbound", DirInbound.String())
	assert.Equal(t, "outbound", DirOutbound.String())
	assert.Equal(t, "unknown", DirUnknown.String())
	assert.Equal(t, "unknown", Direction(42).String())
	assert.Equal(t, "unknown", Direction(-1).String())
}

func TestReachability_String(t *testing.T) {
	assert.Equal(t, "public", ReachabilityPublic.String())
	assert.Equal(t, "private", ReachabilityPrivate.String())
	assert.Equal(t, "unknown", Reachability(7).String())
}
