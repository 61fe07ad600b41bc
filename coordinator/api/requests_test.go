package api

import (
	"testing"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fedmesh/fedmesh/coordinator"
	"github.com/stretchr/testify/assert"
)

func TestStartRoundReqValidate(t *testing.T) {
	cases := []struct {
		desc string
		req  startRoundReq
		err  error
	}{
		{
			desc: "valid request",
			req:  startRoundReq{RoundConfig: coordinator.RoundConfig{Algorithm: "fedavg", MaxParticipants: 5, Quorum: 3}},
		},
		{
			desc: "defaults",
			req:  startRoundReq{},
		},
		{
			desc: "negative max participants",
			req:  startRoundReq{RoundConfig: coordinator.RoundConfig{MaxParticipants: -1}},
			err:  apiutil.ErrValidation,
		},
		{
			desc: "negative quorum",
			req:  startRoundReq{RoundConfig: coordinator.RoundConfig{Quorum: -1}},
			err:  apiutil.ErrValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.ErrorIs(t, tc.req.validate(), tc.err)
		})
	}
}

func TestStatusActionReqValidate(t *testing.T) {
	req := statusActionReq{Reason: "poor behavior"}
	assert.ErrorIs(t, req.validate(), apiutil.ErrMissingID)

	req.id = "node-1"
	assert.NoError(t, req.validate())
}
