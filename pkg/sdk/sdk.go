package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fedmesh/fedmesh/node"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/message"
)

const CTJSON string = "application/json"

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// SDK is the RPC channel client. High-priority messages and
// administrative calls go through it; bulk traffic uses the streaming
// channel.
type SDK interface {
	// SendMessage delivers a federation message over the RPC channel.
	//
	// example:
	//  msg, _ := message.New(message.TypeDirect, "node-1", payload)
	//  err := sdk.SendMessage(msg)
	SendMessage(msg message.Message) error

	// DeliverMessage hands a message to the remote node for local
	// ingestion. This is the peer-to-peer delivery path; the receiver
	// deduplicates and dispatches without routing onward.
	DeliverMessage(msg message.Message) error

	// GetNode gets a node's registration by id.
	//
	// example:
	//  n, _ := sdk.GetNode("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040")
	//  fmt.Println(n)
	GetNode(id string) (node.Node, error)

	// ListNodes lists registered nodes.
	//
	// example:
	//  page, _ := sdk.ListNodes(0, 10)
	//  fmt.Println(page)
	ListNodes(offset, limit uint64) (node.NodePage, error)

	// HealthCheck probes the remote instance.
	//
	// example:
	//  err := sdk.HealthCheck()
	HealthCheck() error

	// StartRound starts an aggregation round.
	//
	// example:
	//  round, _ := sdk.StartRound(sdk.RoundConfig{Algorithm: "fedavg"})
	StartRound(cfg RoundConfig) (RoundStatus, error)

	// GetRound gets a round's status by id.
	//
	// example:
	//  status, _ := sdk.GetRound("round-1")
	GetRound(roundID string) (RoundStatus, error)

	// ListParticipants lists registered learning participants.
	//
	// example:
	//  page, _ := sdk.ListParticipants(0, 10)
	ListParticipants(offset, limit uint64) (ParticipantPage, error)
}

type RoundConfig struct {
	Algorithm       string        `json:"algorithm"`
	MaxParticipants int           `json:"max_participants"`
	MinReputation   float64       `json:"min_reputation,omitempty"`
	Quorum          int           `json:"quorum,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
}

type RoundStatus struct {
	RoundID      string   `json:"round_id"`
	Algorithm    string   `json:"algorithm"`
	Status       string   `json:"status"`
	Participants []string `json:"participants"`
	Submissions  int      `json:"submissions"`
	ModelVersion int      `json:"model_version,omitempty"`
}

type Participant struct {
	NodeID            string  `json:"node_id"`
	ReputationScore   float64 `json:"reputation_score"`
	ContributionCount int     `json:"contribution_count"`
	Status            string  `json:"status"`
}

type ParticipantPage struct {
	Offset       uint64        `json:"offset"`
	Limit        uint64        `json:"limit"`
	Total        uint64        `json:"total"`
	Participants []Participant `json:"participants"`
}

type fedSDK struct {
	baseURL string
	token   string
	client  *http.Client
}

type Config struct {
	BaseURL         string
	Token           string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &fedSDK{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *fedSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)
	if sdk.token != "" {
		req.Header.Add("Authorization", "Bearer "+sdk.token)
	}

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, errors.Join(pkgerrors.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return []byte{}, pkgerrors.ErrAuthenticationFailed
		case http.StatusForbidden:
			return []byte{}, pkgerrors.ErrAuthorizationFailed
		case http.StatusNotFound:
			return []byte{}, pkgerrors.ErrNotFound
		default:
			return []byte{}, fmt.Errorf("unexpected response code %d: %s", resp.StatusCode, string(body))
		}
	}

	return body, nil
}

func (sdk *fedSDK) SendMessage(msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = sdk.processRequest(http.MethodPost, sdk.baseURL+"/messages", data, http.StatusAccepted)

	return err
}

func (sdk *fedSDK) DeliverMessage(msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = sdk.processRequest(http.MethodPost, sdk.baseURL+"/messages/inbound", data, http.StatusAccepted)

	return err
}

func (sdk *fedSDK) GetNode(id string) (node.Node, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.baseURL+"/nodes/"+id, nil, http.StatusOK)
	if err != nil {
		return node.Node{}, err
	}

	var n node.Node
	if err := json.Unmarshal(body, &n); err != nil {
		return node.Node{}, err
	}

	return n, nil
}

func (sdk *fedSDK) ListNodes(offset, limit uint64) (node.NodePage, error) {
	url := fmt.Sprintf("%s/nodes?offset=%d&limit=%d", sdk.baseURL, offset, limit)
	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return node.NodePage{}, err
	}

	var page node.NodePage
	if err := json.Unmarshal(body, &page); err != nil {
		return node.NodePage{}, err
	}

	return page, nil
}

func (sdk *fedSDK) HealthCheck() error {
	_, err := sdk.processRequest(http.MethodGet, sdk.baseURL+"/health", nil, http.StatusOK)

	return err
}

func (sdk *fedSDK) StartRound(cfg RoundConfig) (RoundStatus, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return RoundStatus{}, err
	}

	body, err := sdk.processRequest(http.MethodPost, sdk.baseURL+"/rounds", data, http.StatusCreated)
	if err != nil {
		return RoundStatus{}, err
	}

	var status RoundStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return RoundStatus{}, err
	}

	return status, nil
}

func (sdk *fedSDK) GetRound(roundID string) (RoundStatus, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.baseURL+"/rounds/"+roundID, nil, http.StatusOK)
	if err != nil {
		return RoundStatus{}, err
	}

	var status RoundStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return RoundStatus{}, err
	}

	return status, nil
}

func (sdk *fedSDK) ListParticipants(offset, limit uint64) (ParticipantPage, error) {
	url := fmt.Sprintf("%s/participants?offset=%d&limit=%d", sdk.baseURL, offset, limit)
	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return ParticipantPage{}, err
	}

	var page ParticipantPage
	if err := json.Unmarshal(body, &page); err != nil {
		return ParticipantPage{}, err
	}

	return page, nil
}
