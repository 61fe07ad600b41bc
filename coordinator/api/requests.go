package api

import (
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fedmesh/fedmesh/coordinator"
	"github.com/fedmesh/fedmesh/participant"
	"github.com/fedmesh/fedmesh/pkg/fl"
)

type startRoundReq struct {
	coordinator.RoundConfig `json:",inline"`
}

func (r *startRoundReq) validate() error {
	if r.MaxParticipants < 0 || r.Quorum < 0 {
		return apiutil.ErrValidation
	}

	return nil
}

type gradientReq struct {
	fl.GradientUpdate `json:",inline"`
}

func (r *gradientReq) validate() error {
	if r.RoundID == "" || r.NodeID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type modelReq struct {
	fl.ModelUpdate `json:",inline"`
}

func (r *modelReq) validate() error {
	if r.RoundID == "" || r.NodeID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type cborReq struct {
	data []byte
}

func (r *cborReq) validate() error {
	if len(r.data) == 0 {
		return apiutil.ErrEmptyList
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

type modelVersionReq struct {
	version uint64
}

func (r *modelVersionReq) validate() error {
	return nil
}

type registerParticipantReq struct {
	participant.Participant `json:",inline"`
}

func (r *registerParticipantReq) validate() error {
	if r.NodeID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type reputationReq struct {
	id     string
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

func (r *reputationReq) validate() error {
	if r.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type statusActionReq struct {
	id     string
	Reason string `json:"reason"`
}

func (r *statusActionReq) validate() error {
	if r.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}
