package api

import (
	"net/http"

	"github.com/absmach/supermq"
	"github.com/fedmesh/fedmesh/federation"
	"github.com/fedmesh/fedmesh/node"
)

var (
	_ supermq.Response = (*nodeResponse)(nil)
	_ supermq.Response = (*listNodeResponse)(nil)
	_ supermq.Response = (*messageResponse)(nil)
	_ supermq.Response = (*metricsResponse)(nil)
)

type nodeResponse struct {
	node.Node
	created bool
	deleted bool
}

func (n nodeResponse) Code() int {
	if n.created {
		return http.StatusCreated
	}
	if n.deleted {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (n nodeResponse) Headers() map[string]string {
	if n.created {
		return map[string]string{
			"Location": "/nodes/" + n.ID,
		}
	}

	return map[string]string{}
}

func (n nodeResponse) Empty() bool {
	return n.deleted
}

type listNodeResponse struct {
	node.NodePage
}

func (l listNodeResponse) Code() int {
	return http.StatusOK
}

func (l listNodeResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listNodeResponse) Empty() bool {
	return false
}

type messageResponse struct {
	ID string `json:"id"`
}

func (m messageResponse) Code() int {
	return http.StatusAccepted
}

func (m messageResponse) Headers() map[string]string {
	return map[string]string{}
}

func (m messageResponse) Empty() bool {
	return false
}

type metricsResponse struct {
	federation.Metrics
}

func (m metricsResponse) Code() int {
	return http.StatusOK
}

func (m metricsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (m metricsResponse) Empty() bool {
	return false
}
