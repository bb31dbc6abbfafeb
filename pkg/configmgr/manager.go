package configmgr

import (
	"context"
	"fmt"
	"sync"

	"streamctl/pkg/log"
	"streamctl/pkg/models"
	"streamctl/pkg/nodeclient"
)

// NodeSource provides the nodes a config apply pushes to. Satisfied by
// the fleet store.
type NodeSource interface {
	GetNode(nodeID int64) (*models.Node, error)
	ListNodes() ([]models.Node, error)
}

// Manager implements the config lifecycle: plan, apply, rollback over
// an append-only snapshot log. History is never edited: a rollback
// appends a new snapshot carrying the old body, so rollbacks are
// themselves auditable and rollback-able.
type Manager struct {
	store  *Store
	nodes  NodeSource
	client nodeclient.Client
	paths  PathChecker

	// applyLocks serializes apply per scope so two concurrent applies
	// cannot interleave their push and snapshot-mark steps. Key 0 is
	// the fleet-wide scope. Plan takes no lock.
	applyMu    sync.Mutex
	applyLocks map[int64]*sync.Mutex
}

// NewManager creates a config lifecycle manager.
func NewManager(store *Store, nodes NodeSource, client nodeclient.Client, paths PathChecker) *Manager {
	return &Manager{
		store:      store,
		nodes:      nodes,
		client:     client,
		paths:      paths,
		applyLocks: make(map[int64]*sync.Mutex),
	}
}

// Plan validates a proposed config body and diffs it against the most
// recent applied snapshot for the scope. Pure and lock-free; the
// result may be stale by the time an apply runs, which is why apply
// revalidates.
func (m *Manager) Plan(nodeID *int64, body string) (*models.ConfigPlan, error) {
	validation := Validate(body, m.paths)

	previous, err := m.store.LatestApplied(nodeID)
	if err != nil {
		return nil, err
	}

	diff := models.ConfigDiff{}
	if previous == nil {
		diff.HasChanges = Normalize(body) != ""
		diff.UnifiedDiff = UnifiedDiff("", body, "/dev/null", "proposed")
	} else {
		oldLabel := fmt.Sprintf("snapshot-%d", previous.ID)
		diff.UnifiedDiff = UnifiedDiff(previous.ConfigBody, body, oldLabel, "proposed")
		diff.HasChanges = HashBody(previous.ConfigBody) != HashBody(body)
	}

	return &models.ConfigPlan{
		Validation: validation,
		Diff:       diff,
		CanApply:   validation.Valid,
	}, nil
}

// Apply validates the body, appends a snapshot, pushes the config to
// the target scope and marks the snapshot applied once the push
// succeeds. On push failure the snapshot remains as an audit record
// with applied=false and the push error surfaces to the caller.
func (m *Manager) Apply(ctx context.Context, nodeID *int64, body, notes, appliedBy string) (*models.ConfigSnapshot, error) {
	lock := m.scopeLock(nodeID)
	lock.Lock()
	defer lock.Unlock()

	// Never trust a stale plan.
	validation := Validate(body, m.paths)
	if !validation.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, validation.Errors)
	}

	snapshot, err := m.store.Insert(models.ConfigSnapshot{
		NodeID:     nodeID,
		ConfigHash: HashBody(body),
		ConfigBody: body,
		Notes:      notes,
		AppliedBy:  appliedBy,
	})
	if err != nil {
		return nil, err
	}

	targets, err := m.targets(nodeID)
	if err != nil {
		return snapshot, err
	}

	for _, node := range targets {
		if err := m.client.PushConfig(ctx, node, body); err != nil {
			log.Warn().
				Int64("snapshot_id", snapshot.ID).
				Int64("node_id", node.ID).
				Err(err).
				Msg("Config push failed, snapshot kept unapplied")
			return snapshot, fmt.Errorf("push config to node %d: %w", node.ID, err)
		}
	}

	if err := m.store.MarkApplied(snapshot.ID); err != nil {
		return snapshot, err
	}
	snapshot.Applied = true

	log.Info().
		Int64("snapshot_id", snapshot.ID).
		Str("hash", snapshot.ConfigHash[:12]).
		Int("nodes", len(targets)).
		Str("applied_by", appliedBy).
		Msg("Config applied")
	return snapshot, nil
}

// Rollback re-applies the body of an earlier snapshot as a brand-new
// apply. The target snapshot's scope is inherited.
func (m *Manager) Rollback(ctx context.Context, snapshotID int64, appliedBy string) (*models.ConfigSnapshot, error) {
	target, err := m.store.Get(snapshotID)
	if err != nil {
		return nil, err
	}

	notes := fmt.Sprintf("rollback to snapshot %d", target.ID)
	return m.Apply(ctx, target.NodeID, target.ConfigBody, notes, appliedBy)
}

// ListSnapshots returns snapshot history, newest first.
func (m *Manager) ListSnapshots(nodeID *int64, limit int) ([]models.ConfigSnapshot, error) {
	return m.store.List(nodeID, limit)
}

// GetSnapshot returns one snapshot by id.
func (m *Manager) GetSnapshot(snapshotID int64) (*models.ConfigSnapshot, error) {
	return m.store.Get(snapshotID)
}

// targets resolves the scope to the node set a push goes to.
func (m *Manager) targets(nodeID *int64) ([]models.Node, error) {
	if nodeID != nil {
		node, err := m.nodes.GetNode(*nodeID)
		if err != nil {
			return nil, err
		}
		return []models.Node{*node}, nil
	}
	return m.nodes.ListNodes()
}

func (m *Manager) scopeLock(nodeID *int64) *sync.Mutex {
	key := int64(0)
	if nodeID != nil {
		key = *nodeID
	}

	m.applyMu.Lock()
	defer m.applyMu.Unlock()
	lock, ok := m.applyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.applyLocks[key] = lock
	}
	return lock
}
