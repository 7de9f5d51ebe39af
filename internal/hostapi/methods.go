package hostapi

import (
	"context"
	"encoding/json"
)

type spawnParams struct {
	AgentID string `json:"agentId,omitempty"`
	Cwd     string `json:"cwd,omitempty"`
}

type spawnResult struct {
	AgentID string `json:"agentId"`
}

func (s *Server) handleSpawn(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var p spawnParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	agentID, err := s.sup.Spawn(ctx, p.AgentID, p.Cwd)
	if err != nil {
		return nil, err
	}
	return json.Marshal(spawnResult{AgentID: agentID})
}

type listResult struct {
	AgentIDs []string `json:"agentIds"`
}

func (s *Server) handleList() (json.RawMessage, error) {
	return json.Marshal(listResult{AgentIDs: s.sup.List()})
}

type killParams struct {
	AgentID string `json:"agentId"`
}

func (s *Server) handleKill(raw json.RawMessage) (json.RawMessage, error) {
	var p killParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if err := s.sup.Kill(p.AgentID); err != nil {
		return nil, err
	}
	return json.Marshal(struct{}{})
}

type callOnParams struct {
	AgentID string          `json:"agentId"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (s *Server) handleCallOn(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var p callOnParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return s.sup.CallOn(ctx, p.AgentID, p.Method, p.Params)
}

type notifyOnParams struct {
	AgentID string          `json:"agentId"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (s *Server) handleNotifyOn(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var p notifyOnParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if err := s.sup.NotifyOn(ctx, p.AgentID, p.Method, p.Params); err != nil {
		return nil, err
	}
	return json.Marshal(struct{ Ok bool }{Ok: true})
}

type listPendingApprovalsResult struct {
	Keys []string `json:"keys"`
}

func (s *Server) handleListPendingApprovals() (json.RawMessage, error) {
	return json.Marshal(listPendingApprovalsResult{Keys: s.sup.ListPendingApprovals()})
}

type decideApprovalParams struct {
	Key      string          `json:"key"`
	Decision json.RawMessage `json:"decision"`
}

func (s *Server) handleDecideApproval(raw json.RawMessage) (json.RawMessage, error) {
	var p decideApprovalParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if err := s.sup.DecideApproval(p.Key, p.Decision); err != nil {
		return nil, err
	}
	return json.Marshal(struct{ Ok bool }{Ok: true})
}
