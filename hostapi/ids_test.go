package hostapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDsToOwnIdQualifiesBareId(t *testing.T) {
	ids := IDs{InstancePrefix: "msghub.0"}
	assert.Equal(t, "msghub.0.rooms.kitchen", ids.ToOwnId("rooms.kitchen"))
}

func TestIDsToOwnIdIsIdempotent(t *testing.T) {
	ids := IDs{InstancePrefix: "msghub.0"}
	qualified := ids.ToOwnId("rooms.kitchen")
	assert.Equal(t, qualified, ids.ToOwnId(qualified))
}

func TestIDsToFullIdQualifiesUnderForeignInstance(t *testing.T) {
	ids := IDs{InstancePrefix: "msghub.0"}
	assert.Equal(t, "hm-rpc.0.device1.state", ids.ToFullId("hm-rpc.0", "device1.state"))
}
