package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"
)

// NodeSource provides the nodes session queries fan out to. Satisfied
// by the fleet store.
type NodeSource interface {
	GetNode(nodeID int64) (*models.Node, error)
	ListNodes() ([]models.Node, error)
}

// Filters narrows a live session listing.
type Filters struct {
	NodeID   int64
	Protocol models.Protocol
	Path     string
}

// Registry aggregates live viewer sessions across the fleet and
// coordinates kicks. Sessions are read through to the nodes on every
// call; nothing is cached or persisted, so the answer is always
// current and a restart loses nothing.
type Registry struct {
	nodes  NodeSource
	client nodeclient.Client
}

// NewRegistry creates a session registry.
func NewRegistry(nodes NodeSource, client nodeclient.Client) *Registry {
	return &Registry{nodes: nodes, client: client}
}

// List fans out to the target nodes concurrently and returns the
// merged, filtered session set. Unreachable nodes do not fail the
// listing; their errors are reported per node alongside the sessions
// the reachable nodes returned.
func (r *Registry) List(ctx context.Context, filters Filters) (*models.SessionList, error) {
	targets, err := r.targets(filters.NodeID)
	if err != nil {
		return nil, err
	}

	type nodeResult struct {
		node     models.Node
		sessions []models.ViewerSession
		err      error
	}

	results := make([]nodeResult, len(targets))
	var wg sync.WaitGroup
	for i, node := range targets {
		wg.Add(1)
		go func(i int, node models.Node) {
			defer wg.Done()
			sessions, err := r.client.ListSessions(ctx, node)
			results[i] = nodeResult{node: node, sessions: sessions, err: err}
		}(i, node)
	}
	wg.Wait()

	list := &models.SessionList{
		Sessions: []models.ViewerSession{},
		Summary: models.SessionSummary{
			ByProtocol: map[string]int{},
			ByNode:     map[string]int{},
		},
	}

	for _, result := range results {
		if result.err != nil {
			log.Warn().Str("node", result.node.Name).Err(result.err).Msg("Failed to list sessions")
			if list.NodeErrors == nil {
				list.NodeErrors = map[string]string{}
			}
			list.NodeErrors[result.node.Name] = result.err.Error()
			continue
		}
		for _, session := range result.sessions {
			if filters.Protocol != "" && session.Protocol != filters.Protocol {
				continue
			}
			if filters.Path != "" && session.Path != filters.Path {
				continue
			}
			list.Sessions = append(list.Sessions, session)
		}
	}

	sort.Slice(list.Sessions, func(i, j int) bool {
		a, b := list.Sessions[i], list.Sessions[j]
		if a.NodeName != b.NodeName {
			return a.NodeName < b.NodeName
		}
		return a.ID < b.ID
	})

	for _, session := range list.Sessions {
		list.Summary.Total++
		list.Summary.ByProtocol[string(session.Protocol)]++
		list.Summary.ByNode[session.NodeName]++
	}
	return list, nil
}

// Kick terminates one viewer session. The protocol is validated before
// any node is contacted: an unsupported protocol never generates node
// traffic.
func (r *Registry) Kick(ctx context.Context, nodeID int64, protocol models.Protocol, sessionID string) error {
	if !models.KnownProtocol(protocol) {
		return fmt.Errorf("%w: %q", models.ErrUnsupportedProtocol, protocol)
	}
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", models.ErrValidation)
	}

	node, err := r.nodes.GetNode(nodeID)
	if err != nil {
		return err
	}

	if err := r.client.KickSession(ctx, *node, protocol, sessionID); err != nil {
		return err
	}

	log.Info().
		Str("session_id", sessionID).
		Str("protocol", string(protocol)).
		Str("node", node.Name).
		Msg("Viewer session kicked")
	return nil
}

func (r *Registry) targets(nodeID int64) ([]models.Node, error) {
	if nodeID > 0 {
		node, err := r.nodes.GetNode(nodeID)
		if err != nil {
			return nil, err
		}
		return []models.Node{*node}, nil
	}
	return r.nodes.ListNodes()
}
