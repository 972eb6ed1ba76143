// Package exectree records the hierarchy of tasks executed during one run
// and renders it as a terminal tree or a mermaid flow diagram.
package exectree

import (
	"fmt"
	"sync"
	"time"
)

// NodeStatus is the lifecycle state of one tree node.
type NodeStatus string

const (
	// StatusPending means the task has not started yet.
	StatusPending NodeStatus = "pending"
	// StatusRunning means the task is executing.
	StatusRunning NodeStatus = "running"
	// StatusCompleted means the task finished successfully.
	StatusCompleted NodeStatus = "completed"
	// StatusFailed means the task finished unsuccessfully.
	StatusFailed NodeStatus = "failed"
	// StatusSkipped means the task was never dispatched.
	StatusSkipped NodeStatus = "skipped"
)

// Node is one task in the execution tree.
type Node struct {
	TaskID      string
	Description string
	Status      NodeStatus
	DisplayID   int
	StartTime   time.Time
	EndTime     time.Time
	Result      string
	Children    []*Node
}

// Duration returns how long the node ran, or zero if it has not ended.
func (n *Node) Duration() time.Duration {
	if n.StartTime.IsZero() || n.EndTime.IsZero() {
		return 0
	}
	return n.EndTime.Sub(n.StartTime)
}

// Tree is the full execution record for one run. The root node is the user
// command; children are the sub-tasks each iteration dispatched. All
// mutation goes through the tree's methods, so renders see a consistent
// snapshot at any time.
type Tree struct {
	mu    sync.RWMutex
	root  *Node
	index map[string]*Node
}

// New creates a tree whose root describes the overall command.
func New(command string) *Tree {
	root := &Node{
		TaskID:      "root",
		Description: command,
		Status:      StatusRunning,
		StartTime:   time.Now(),
	}
	return &Tree{
		root:  root,
		index: map[string]*Node{root.TaskID: root},
	}
}

// AddTask adds a node under the given parent. An unknown or empty parent
// attaches the node to the root. Adding a task ID twice is a no-op so
// retried tasks keep their original node.
func (t *Tree) AddTask(parentID, taskID, description string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.index[taskID]; exists {
		return
	}

	parent, ok := t.index[parentID]
	if !ok {
		parent = t.root
	}

	node := &Node{
		TaskID:      taskID,
		Description: description,
		Status:      StatusPending,
	}
	parent.Children = append(parent.Children, node)
	t.index[taskID] = node
}

// Start marks a task running on the given display.
func (t *Tree) Start(taskID string, displayID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if node, ok := t.index[taskID]; ok {
		node.Status = StatusRunning
		node.DisplayID = displayID
		// Retried tasks keep their original start time.
		if node.StartTime.IsZero() {
			node.StartTime = time.Now()
		}
	}
}

// Finish records a task's terminal status and result text.
func (t *Tree) Finish(taskID string, success bool, result string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.index[taskID]
	if !ok {
		return
	}
	if success {
		node.Status = StatusCompleted
	} else {
		node.Status = StatusFailed
	}
	node.Result = result
	node.EndTime = time.Now()
}

// Skip marks a task that was planned but never dispatched.
func (t *Tree) Skip(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if node, ok := t.index[taskID]; ok && node.Status == StatusPending {
		node.Status = StatusSkipped
	}
}

// Close marks the root node terminal.
func (t *Tree) Close(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if success {
		t.root.Status = StatusCompleted
	} else {
		t.root.Status = StatusFailed
	}
	t.root.EndTime = time.Now()
}

// Node returns a copy of the named node, without its children.
func (t *Tree) Node(taskID string) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.index[taskID]
	if !ok {
		return Node{}, false
	}
	snapshot := *node
	snapshot.Children = nil
	return snapshot, true
}

// Size returns the number of nodes, root included.
func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// walk visits nodes depth-first under the read lock.
func (t *Tree) walk(visit func(node *Node, depth int)) {
	var rec func(n *Node, depth int)
	rec = func(n *Node, depth int) {
		visit(n, depth)
		for _, child := range n.Children {
			rec(child, depth+1)
		}
	}
	rec(t.root, 0)
}

func statusIcon(status NodeStatus) string {
	switch status {
	case StatusCompleted:
		return "[ok]"
	case StatusFailed:
		return "[fail]"
	case StatusRunning:
		return "[run]"
	case StatusSkipped:
		return "[skip]"
	default:
		return "[...]"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func nodeLabel(n *Node) string {
	return fmt.Sprintf("%s: %s", n.TaskID, truncate(n.Description, 40))
}
