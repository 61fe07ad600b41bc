package api

import (
	"testing"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/stretchr/testify/assert"
)

func TestConnectNodeReqValidate(t *testing.T) {
	cases := []struct {
		desc string
		req  connectNodeReq
		err  error
	}{
		{
			desc: "valid request",
			req:  connectNodeReq{Node: node.Node{Name: "edge-1", Address: "10.0.0.1:7070"}},
		},
		{
			desc: "missing name",
			req:  connectNodeReq{Node: node.Node{Address: "10.0.0.1:7070"}},
			err:  apiutil.ErrMissingName,
		},
		{
			desc: "missing address",
			req:  connectNodeReq{Node: node.Node{Name: "edge-1"}},
			err:  apiutil.ErrValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.ErrorIs(t, tc.req.validate(), tc.err)
		})
	}
}

func TestMessageReqValidateFillsDefaults(t *testing.T) {
	req := messageReq{Message: message.Message{
		Type:         message.TypeDirect,
		SourceNodeID: "node-1",
	}}

	assert.NoError(t, req.validate())
	assert.NotEmpty(t, req.ID)
	assert.False(t, req.Timestamp.IsZero())
}
