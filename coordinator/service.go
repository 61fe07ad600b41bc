package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/fedmesh/fedmesh/participant"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/fl"
	"github.com/fedmesh/fedmesh/pkg/privacy"
)

const (
	defMaxParticipants = 10
	defMinReputation   = 0.5
	defTimeout         = 5 * time.Minute
	defClipNorm        = 1.0
	defEpsilon         = 1.0
	defDelta           = 1e-5
	defSensitivity     = 1.0

	// Reputation deltas applied by the round lifecycle.
	rewardDelta    = 0.05
	poisoningDelta = -0.05
)

var (
	errRoundNotActive     = errors.New("round is not active")
	errNotSelected        = errors.New("node was not selected for this round")
	errNoEligible         = errors.New("no eligible participants")
	errUnknownAlgorithm   = errors.New("unknown aggregation algorithm")
	errNothingToAggregate = errors.New("round has no submissions to aggregate")
)

// roundState is the in-memory ledger of one active round. Submissions
// are an unordered set keyed by node ID; duplicates are no-ops.
type roundState struct {
	round     fl.Round
	cfg       RoundConfig
	gradients map[string]fl.GradientUpdate
	models    map[string]fl.ModelUpdate
	timer     *time.Timer
}

func (rs *roundState) submitted(nodeID string) bool {
	if _, ok := rs.gradients[nodeID]; ok {
		return true
	}
	_, ok := rs.models[nodeID]

	return ok
}

func (rs *roundState) submissions() int {
	distinct := make(map[string]struct{}, len(rs.gradients)+len(rs.models))
	for id := range rs.gradients {
		distinct[id] = struct{}{}
	}
	for id := range rs.models {
		distinct[id] = struct{}{}
	}

	return len(distinct)
}

type service struct {
	mu           sync.Mutex
	rounds       map[string]*roundState
	participants *participant.Manager
	budgets      *privacy.BudgetManager
	store        *fl.PersistentStorage
	aggregators  map[string]fl.Aggregator
	events       *Emitter
	logger       *slog.Logger
}

func NewService(
	participants *participant.Manager,
	budgets *privacy.BudgetManager,
	store *fl.PersistentStorage,
	aggregators map[string]fl.Aggregator,
	events *Emitter,
	logger *slog.Logger,
) Service {
	return &service{
		rounds:       make(map[string]*roundState),
		participants: participants,
		budgets:      budgets,
		store:        store,
		aggregators:  aggregators,
		events:       events,
		logger:       logger,
	}
}

func (svc *service) StartRound(ctx context.Context, cfg RoundConfig) (fl.Round, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "fedavg"
	}
	if _, ok := svc.aggregators[cfg.Algorithm]; !ok {
		return fl.Round{}, errors.Join(pkgerrors.ErrInvalidMessage, errUnknownAlgorithm)
	}
	if cfg.MaxParticipants <= 0 {
		cfg.MaxParticipants = defMaxParticipants
	}
	if cfg.MinReputation <= 0 {
		cfg.MinReputation = defMinReputation
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defTimeout
	}

	eligible, err := svc.participants.EligibleParticipants(ctx, cfg.MinReputation)
	if err != nil {
		return fl.Round{}, err
	}
	if len(eligible) == 0 {
		return fl.Round{}, errors.Join(pkgerrors.ErrNodeUnavailable, errNoEligible)
	}
	if len(eligible) > cfg.MaxParticipants {
		eligible = eligible[:cfg.MaxParticipants]
	}

	selected := make([]string, len(eligible))
	for i, p := range eligible {
		selected[i] = p.NodeID
	}
	if cfg.Quorum <= 0 || cfg.Quorum > len(selected) {
		cfg.Quorum = len(selected)
	}

	version, err := svc.store.LatestVersion()
	if err != nil {
		return fl.Round{}, err
	}

	round := fl.Round{
		RoundID:      uuid.NewString(),
		Algorithm:    cfg.Algorithm,
		Participants: selected,
		ModelVersion: version,
		StartTime:    time.Now(),
		Status:       fl.RoundActive,
	}
	if err := svc.store.SaveRound(round); err != nil {
		return fl.Round{}, err
	}

	rs := &roundState{
		round:     round,
		cfg:       cfg,
		gradients: make(map[string]fl.GradientUpdate),
		models:    make(map[string]fl.ModelUpdate),
	}
	rs.timer = time.AfterFunc(cfg.Timeout, func() {
		svc.failRound(round.RoundID)
	})

	svc.mu.Lock()
	svc.rounds[round.RoundID] = rs
	svc.mu.Unlock()

	svc.events.Emit(EventRoundStarted, round.RoundID, "")
	svc.logger.Info("aggregation round started",
		slog.String("round_id", round.RoundID),
		slog.String("algorithm", cfg.Algorithm),
		slog.Int("participants", len(selected)),
		slog.Int("quorum", cfg.Quorum))

	return round, nil
}

func (svc *service) SubmitGradient(ctx context.Context, update fl.GradientUpdate) error {
	if update.RoundID == "" || update.NodeID == "" {
		return errors.Join(pkgerrors.ErrInvalidMessage, errors.New("round id and node id are required"))
	}
	if len(update.Gradients) == 0 {
		return errors.Join(pkgerrors.ErrInvalidMessage, errors.New("gradient update is empty"))
	}

	svc.mu.Lock()
	rs, err := svc.admit(update.RoundID, update.NodeID)
	if err != nil {
		svc.mu.Unlock()

		return err
	}
	if _, dup := rs.gradients[update.NodeID]; dup {
		svc.mu.Unlock()

		return nil
	}
	cfg := rs.cfg
	svc.mu.Unlock()

	clipNorm := cfg.ClipNorm
	if clipNorm <= 0 {
		clipNorm = defClipNorm
	}
	clipped, err := privacy.ClipGradients(privacy.Gradients(update.Gradients), clipNorm)
	if err != nil {
		return err
	}

	if cfg.ApplyDP {
		eps := cfg.Epsilon
		if eps <= 0 {
			eps = defEpsilon
		}
		delta := cfg.Delta
		if delta <= 0 {
			delta = defDelta
		}
		sensitivity := cfg.Sensitivity
		if sensitivity <= 0 {
			sensitivity = defSensitivity
		}

		if err := svc.participants.CanContribute(ctx, update.NodeID, eps); err != nil {
			return err
		}
		noised, err := privacy.GaussianNoise(clipped, eps, delta, sensitivity)
		if err != nil {
			return err
		}
		if err := svc.budgets.Spend(update.NodeID, eps); err != nil {
			return err
		}
		clipped = noised
	}

	update.Gradients = fl.Tensors(clipped)
	update.ReceivedAt = time.Now()

	svc.mu.Lock()
	// Recheck under the lock: the round may have completed meanwhile.
	rs, err = svc.admit(update.RoundID, update.NodeID)
	if err != nil {
		svc.mu.Unlock()

		return err
	}
	if _, dup := rs.gradients[update.NodeID]; !dup {
		rs.gradients[update.NodeID] = update
	}
	svc.mu.Unlock()

	if err := svc.participants.RecordContribution(ctx, update.NodeID); err != nil {
		svc.logger.Warn("failed to record contribution", slog.Any("error", err))
	}
	svc.events.Emit(EventGradientUpdateReceived, update.RoundID, update.NodeID)

	svc.checkRoundCompletion(ctx, update.RoundID)

	return nil
}

func (svc *service) SubmitGradientCBOR(ctx context.Context, data []byte) error {
	var update fl.GradientUpdate
	if err := cbor.Unmarshal(data, &update); err != nil {
		return errors.Join(pkgerrors.ErrInvalidMessage, fmt.Errorf("failed to decode CBOR update: %w", err))
	}

	return svc.SubmitGradient(ctx, update)
}

func (svc *service) SubmitModel(ctx context.Context, update fl.ModelUpdate) error {
	if update.RoundID == "" || update.NodeID == "" {
		return errors.Join(pkgerrors.ErrInvalidMessage, errors.New("round id and node id are required"))
	}

	var reference fl.Tensors
	if latest, err := svc.store.LatestVersion(); err == nil && latest > 0 {
		if model, err := svc.store.LoadModel(latest); err == nil {
			reference = model.Weights
		}
	}
	if res := fl.ValidateUpdate(update, reference); !res.IsValid {
		return errors.Join(pkgerrors.ErrInvalidMessage, errors.New(res.Reason))
	}

	update.ReceivedAt = time.Now()

	svc.mu.Lock()
	rs, err := svc.admit(update.RoundID, update.NodeID)
	if err != nil {
		svc.mu.Unlock()

		return err
	}
	if _, dup := rs.models[update.NodeID]; dup {
		svc.mu.Unlock()

		return nil
	}
	rs.models[update.NodeID] = update
	pending := make([]fl.ModelUpdate, 0, len(rs.models))
	for _, u := range rs.models {
		pending = append(pending, u)
	}
	svc.mu.Unlock()

	// Poisoning detection is advisory: flagged updates feed reputation
	// and alerting, ingestion proceeds regardless.
	for _, res := range fl.DetectPoisoning(pending, 0) {
		if !res.IsPoisoned {
			continue
		}
		svc.logger.Warn("poisoning suspected",
			slog.String("round_id", update.RoundID),
			slog.String("node_id", res.NodeID),
			slog.Float64("confidence", res.Confidence),
			slog.String("method", res.Method))
		if res.NodeID == update.NodeID {
			if _, err := svc.participants.UpdateReputation(ctx, res.NodeID, poisoningDelta, "poisoning suspected"); err != nil {
				svc.logger.Warn("failed to penalize reputation", slog.Any("error", err))
			}
		}
	}

	if err := svc.participants.RecordContribution(ctx, update.NodeID); err != nil {
		svc.logger.Warn("failed to record contribution", slog.Any("error", err))
	}
	svc.events.Emit(EventModelUpdateReceived, update.RoundID, update.NodeID)

	svc.checkRoundCompletion(ctx, update.RoundID)

	return nil
}

func (svc *service) SubmitModelCBOR(ctx context.Context, data []byte) error {
	var update fl.ModelUpdate
	if err := cbor.Unmarshal(data, &update); err != nil {
		return errors.Join(pkgerrors.ErrInvalidMessage, fmt.Errorf("failed to decode CBOR update: %w", err))
	}

	return svc.SubmitModel(ctx, update)
}

func (svc *service) RoundStatus(_ context.Context, roundID string) (fl.Round, error) {
	svc.mu.Lock()
	rs, ok := svc.rounds[roundID]
	svc.mu.Unlock()
	if ok {
		return rs.round, nil
	}

	round, err := svc.store.LoadRound(roundID)
	if err != nil {
		return fl.Round{}, errors.Join(pkgerrors.ErrNotFound, err)
	}

	return round, nil
}

func (svc *service) ListRounds(_ context.Context) ([]string, error) {
	return svc.store.ListRounds()
}

func (svc *service) GlobalModel(_ context.Context, version uint64) (fl.Model, error) {
	if version == 0 {
		latest, err := svc.store.LatestVersion()
		if err != nil {
			return fl.Model{}, err
		}
		if latest == 0 {
			return fl.Model{}, pkgerrors.ErrNotFound
		}
		version = latest
	}

	model, err := svc.store.LoadModel(version)
	if err != nil {
		return fl.Model{}, errors.Join(pkgerrors.ErrNotFound, err)
	}

	return model, nil
}

// admit returns the round state for a submission, enforcing that the
// round is active and the submitter was selected. Callers hold svc.mu.
func (svc *service) admit(roundID, nodeID string) (*roundState, error) {
	rs, ok := svc.rounds[roundID]
	if !ok {
		return nil, errors.Join(pkgerrors.ErrNotFound, errors.New("unknown round "+roundID))
	}
	if rs.round.Status != fl.RoundActive {
		return nil, errors.Join(pkgerrors.ErrInvalidMessage, errRoundNotActive)
	}

	for _, id := range rs.round.Participants {
		if id == nodeID {
			return rs, nil
		}
	}

	return nil, errors.Join(pkgerrors.ErrAuthorizationFailed, errNotSelected)
}

// checkRoundCompletion completes the round once the count of distinct
// submitters reaches the quorum.
func (svc *service) checkRoundCompletion(ctx context.Context, roundID string) {
	svc.mu.Lock()
	rs, ok := svc.rounds[roundID]
	if !ok || rs.round.Status != fl.RoundActive || rs.submissions() < rs.cfg.Quorum {
		svc.mu.Unlock()

		return
	}
	// Mark completing under the lock so a concurrent submission or the
	// watchdog cannot race the aggregation.
	rs.round.Status = fl.RoundCompleted
	svc.mu.Unlock()

	if err := svc.completeRound(ctx, rs); err != nil {
		svc.mu.Lock()
		rs.round.Status = fl.RoundFailed
		rs.round.EndTime = time.Now()
		svc.mu.Unlock()
		if serr := svc.store.SaveRound(rs.round); serr != nil {
			svc.logger.Warn("failed to persist failed round", slog.Any("error", serr))
		}
		svc.logger.Warn("round aggregation failed",
			slog.String("round_id", roundID),
			slog.Any("error", err))
		svc.events.Emit(EventRoundFailed, roundID, "")
	}
}

func (svc *service) completeRound(ctx context.Context, rs *roundState) error {
	rs.timer.Stop()

	svc.mu.Lock()
	models := make([]fl.ModelUpdate, 0, len(rs.models))
	for _, u := range rs.models {
		models = append(models, u)
	}
	gradients := make([]fl.GradientUpdate, 0, len(rs.gradients))
	for _, u := range rs.gradients {
		gradients = append(gradients, u)
	}
	cfg := rs.cfg
	svc.mu.Unlock()

	version, err := svc.store.LatestVersion()
	if err != nil {
		return err
	}

	var model fl.Model
	switch {
	case len(models) > 0:
		weights := make([]float64, len(models))
		for i, u := range models {
			weights[i] = contributionWeight(u.Metadata.DatasetSize)
		}
		aggregator := svc.aggregators[cfg.Algorithm]
		model, err = aggregator.Aggregate(models, weights)
		if err != nil {
			return err
		}
	case len(gradients) > 0:
		weights := make([]float64, len(gradients))
		for i, u := range gradients {
			weights[i] = contributionWeight(u.Metadata.DatasetSize)
		}
		aggregated, aerr := fl.AggregateGradients(gradients, weights)
		if aerr != nil {
			return aerr
		}
		model = fl.Model{
			RoundID:   rs.round.RoundID,
			Weights:   aggregated,
			Algorithm: cfg.Algorithm,
			CreatedAt: time.Now(),
		}
	default:
		return errNothingToAggregate
	}

	model.Version = version + 1
	model.RoundID = rs.round.RoundID
	if err := svc.store.SaveModel(model); err != nil {
		return err
	}

	svc.mu.Lock()
	rs.round.Status = fl.RoundCompleted
	rs.round.EndTime = time.Now()
	rs.round.ModelVersion = model.Version
	rs.round.AggregatedModel = &model
	round := rs.round
	svc.mu.Unlock()

	if err := svc.store.SaveRound(round); err != nil {
		return err
	}

	// Every contributor earns a small positive reputation delta.
	for nodeID := range mergeSubmitters(models, gradients) {
		if _, err := svc.participants.UpdateReputation(ctx, nodeID, rewardDelta, "round completed"); err != nil {
			svc.logger.Warn("failed to reward reputation", slog.Any("error", err))
		}
	}

	svc.events.Emit(EventRoundCompleted, round.RoundID, "")
	svc.logger.Info("aggregation round completed",
		slog.String("round_id", round.RoundID),
		slog.Uint64("model_version", model.Version))

	return nil
}

// failRound transitions a round that never reached quorum to failed.
// There is no reputation penalty for a timed-out round.
func (svc *service) failRound(roundID string) {
	svc.mu.Lock()
	rs, ok := svc.rounds[roundID]
	if !ok || rs.round.Status != fl.RoundActive {
		svc.mu.Unlock()

		return
	}
	rs.round.Status = fl.RoundFailed
	rs.round.EndTime = time.Now()
	round := rs.round
	svc.mu.Unlock()

	if err := svc.store.SaveRound(round); err != nil {
		svc.logger.Warn("failed to persist failed round", slog.Any("error", err))
	}

	svc.events.Emit(EventRoundFailed, roundID, "")
	svc.logger.Warn("aggregation round timed out", slog.String("round_id", roundID))
}

// contributionWeight converts a reported dataset size into an
// aggregation weight, defaulting to one so metadata-less updates still
// count equally.
func contributionWeight(datasetSize int) float64 {
	if datasetSize <= 0 {
		return 1
	}

	return float64(datasetSize)
}

func mergeSubmitters(models []fl.ModelUpdate, gradients []fl.GradientUpdate) map[string]struct{} {
	out := make(map[string]struct{}, len(models)+len(gradients))
	for _, u := range models {
		out[u.NodeID] = struct{}{}
	}
	for _, u := range gradients {
		out[u.NodeID] = struct{}{}
	}

	return out
}
