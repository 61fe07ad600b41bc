package api

import (
	"time"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/google/uuid"
)

type connectNodeReq struct {
	node.Node `json:",inline"`
}

func (r *connectNodeReq) validate() error {
	if r.Name == "" {
		return apiutil.ErrMissingName
	}
	if r.Address == "" {
		return apiutil.ErrValidation
	}

	return nil
}

type entityReq struct {
	id string
}

func (r *entityReq) validate() error {
	if r.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (r *listEntityReq) validate() error {
	return nil
}

type messageReq struct {
	message.Message `json:",inline"`
}

func (r *messageReq) validate() error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	return r.Message.Validate()
}
