package api

import (
	"net/http"

	"github.com/absmach/supermq"
	"github.com/fedmesh/fedmesh/participant"
	"github.com/fedmesh/fedmesh/pkg/fl"
)

var (
	_ supermq.Response = (*roundResponse)(nil)
	_ supermq.Response = (*listRoundsResponse)(nil)
	_ supermq.Response = (*modelResponse)(nil)
	_ supermq.Response = (*submissionResponse)(nil)
	_ supermq.Response = (*participantResponse)(nil)
	_ supermq.Response = (*listParticipantResponse)(nil)
)

type roundResponse struct {
	fl.Round
	created bool
}

func (r roundResponse) Code() int {
	if r.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (r roundResponse) Headers() map[string]string {
	if r.created {
		return map[string]string{
			"Location": "/rounds/" + r.RoundID,
		}
	}

	return map[string]string{}
}

func (r roundResponse) Empty() bool {
	return false
}

type listRoundsResponse struct {
	Rounds []string `json:"rounds"`
}

func (l listRoundsResponse) Code() int {
	return http.StatusOK
}

func (l listRoundsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRoundsResponse) Empty() bool {
	return false
}

type modelResponse struct {
	fl.Model
}

func (m modelResponse) Code() int {
	return http.StatusOK
}

func (m modelResponse) Headers() map[string]string {
	return map[string]string{}
}

func (m modelResponse) Empty() bool {
	return false
}

type submissionResponse struct {
	RoundID string `json:"round_id"`
	NodeID  string `json:"node_id,omitempty"`
}

func (s submissionResponse) Code() int {
	return http.StatusAccepted
}

func (s submissionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s submissionResponse) Empty() bool {
	return false
}

type participantResponse struct {
	participant.Participant
	created bool
	deleted bool
}

func (p participantResponse) Code() int {
	if p.created {
		return http.StatusCreated
	}
	if p.deleted {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (p participantResponse) Headers() map[string]string {
	if p.created {
		return map[string]string{
			"Location": "/participants/" + p.NodeID,
		}
	}

	return map[string]string{}
}

func (p participantResponse) Empty() bool {
	return p.deleted
}

type listParticipantResponse struct {
	participant.Page
}

func (l listParticipantResponse) Code() int {
	return http.StatusOK
}

func (l listParticipantResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listParticipantResponse) Empty() bool {
	return false
}
