package process

import (
	"fmt"
	"time"
)

// NodeKind enumerates the behaviors a node can have within a definition.
type NodeKind int

const (
	// Start is a plain start event. A definition has exactly one entry
	// node, which must be a Start, MessageStart or SignalStart.
	Start NodeKind = iota + 1

	// Task invokes the handler named by Node.Handler. A task with an empty
	// handler name is a pass-through, which is useful for link events that
	// exist only as asynchronous continuation points.
	Task

	// UserTask suspends the token until an external actor completes the
	// task via the engine.
	UserTask

	// ExclusiveGateway routes the token along the first outgoing edge
	// whose guard passes. Edges are evaluated in declared order; an edge
	// with a nil guard always passes.
	ExclusiveGateway

	// ParallelGateway forks the token across all outgoing edges, or joins
	// tokens arriving on multiple incoming edges.
	ParallelGateway

	// CallActivity spawns a child instance of another definition and
	// suspends the token until the child ends.
	CallActivity

	// ThrowError raises the named domain error when the token arrives.
	ThrowError

	// CatchError marks the entry point of an error-compensation path. It
	// is only ever reached via a Definition.ErrorCatches entry.
	CatchError

	// Timer suspends the token until a scheduled job fires after
	// Node.Delay has elapsed.
	Timer

	// MessageStart begins an instance when a matching message is
	// correlated and no instance is already waiting for it.
	MessageStart

	// MessageCatch suspends the token until a matching message arrives.
	MessageCatch

	// EventGateway suspends the token until one of the MessageCatch nodes
	// it targets receives a message. The winning branch consumes the
	// token; the other subscriptions are cancelled.
	EventGateway

	// MessageThrow publishes a message carrying the variables named by
	// Node.Payload, correlated by the instance's business key.
	MessageThrow

	// SignalStart begins an instance whenever a matching signal is
	// broadcast. Unlike messages, signals may start any number of
	// instances at once.
	SignalStart

	// SignalThrow broadcasts the named signal.
	SignalThrow

	// End consumes the token. The instance ends when its last token is
	// consumed.
	End

	// ErrorEnd ends the instance and raises the named domain error at the
	// parent's call-activity boundary. It never resolves against the
	// definition's own catches.
	ErrorEnd
)

// String returns a human-readable name for the node kind.
func (k NodeKind) String() string {
	switch k {
	case Start:
		return "start"
	case Task:
		return "task"
	case UserTask:
		return "user-task"
	case ExclusiveGateway:
		return "exclusive-gateway"
	case ParallelGateway:
		return "parallel-gateway"
	case CallActivity:
		return "call-activity"
	case ThrowError:
		return "throw-error"
	case CatchError:
		return "catch-error"
	case Timer:
		return "timer"
	case MessageStart:
		return "message-start"
	case MessageCatch:
		return "message-catch"
	case EventGateway:
		return "event-gateway"
	case MessageThrow:
		return "message-throw"
	case SignalStart:
		return "signal-start"
	case SignalThrow:
		return "signal-throw"
	case End:
		return "end"
	case ErrorEnd:
		return "error-end"
	default:
		return "unknown"
	}
}

// Node is a single step in a process definition.
//
// Only the fields relevant to the node's kind are consulted.
type Node struct {
	// ID uniquely identifies the node within its definition.
	ID string

	// Kind selects the node's behavior.
	Kind NodeKind

	// Handler is the name of the task handler to invoke (Task).
	Handler string

	// Async marks a Task or MessageThrow as an asynchronous continuation.
	// The token waits for an explicit job execution before the node runs.
	Async bool

	// TaskName is the human-facing name of a UserTask.
	TaskName string

	// Message is the message name (MessageStart, MessageCatch,
	// MessageThrow).
	Message string

	// Payload names the instance variables copied into a thrown message
	// or broadcast signal (MessageThrow, SignalThrow).
	Payload []string

	// Signal is the signal name (SignalStart, SignalThrow).
	Signal string

	// Error is the domain error code (ThrowError, ErrorEnd).
	Error string

	// Delay is the duration before a Timer fires.
	Delay time.Duration

	// Definition is the key of the child definition (CallActivity).
	Definition string

	// BusinessKey names the parent variable whose value becomes the
	// child's business key (CallActivity). The child inherits the
	// parent's business key when empty, or when the variable is unset.
	BusinessKey string

	// Inherit names the parent variables snapshotted into the child
	// (CallActivity).
	Inherit []string
}

// Edge is a directed sequence flow between two nodes.
type Edge struct {
	From string
	To   string

	// Guard gates the edge at an exclusive gateway. A nil guard always
	// passes.
	Guard Guard

	// Name labels the edge in validation errors and logs.
	Name string
}

// ErrorCatch routes a domain error raised within the definition to a
// compensation path. To must reference a CatchError node.
type ErrorCatch struct {
	Code string
	To   string
}

// Definition is a static process graph. Definitions are immutable once
// registered; the engine never mutates them.
type Definition struct {
	Key          string
	Nodes        []Node
	Edges        []Edge
	ErrorCatches []ErrorCatch

	nodes    map[string]Node
	outgoing map[string][]Edge
	incoming map[string][]Edge
	start    string
}

// Node returns the node with the given ID.
func (d *Definition) Node(id string) (Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Outgoing returns the edges leaving the given node, in declared order.
func (d *Definition) Outgoing(id string) []Edge {
	return d.outgoing[id]
}

// Incoming returns the edges entering the given node, in declared order.
func (d *Definition) Incoming(id string) []Edge {
	return d.incoming[id]
}

// StartNode returns the definition's entry node.
func (d *Definition) StartNode() Node {
	return d.nodes[d.start]
}

// Catch returns the catch node for the given error code, if the definition
// declares one.
func (d *Definition) Catch(code string) (ErrorCatch, bool) {
	for _, c := range d.ErrorCatches {
		if c.Code == code {
			return c, true
		}
	}
	return ErrorCatch{}, false
}

// Validate checks the structural integrity of the definition and builds
// its internal indexes. It must be called (typically via NewRegistry)
// before the definition is executed.
func (d *Definition) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("process definition has no key")
	}

	d.nodes = make(map[string]Node, len(d.Nodes))
	d.outgoing = make(map[string][]Edge, len(d.Nodes))
	d.incoming = make(map[string][]Edge, len(d.Nodes))

	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%s: node has no ID", d.Key)
		}
		if _, ok := d.nodes[n.ID]; ok {
			return fmt.Errorf("%s: duplicate node ID %q", d.Key, n.ID)
		}
		d.nodes[n.ID] = n
	}

	for _, e := range d.Edges {
		if _, ok := d.nodes[e.From]; !ok {
			return fmt.Errorf("%s: edge %q leaves unknown node %q", d.Key, e.Name, e.From)
		}
		if _, ok := d.nodes[e.To]; !ok {
			return fmt.Errorf("%s: edge %q enters unknown node %q", d.Key, e.Name, e.To)
		}
		d.outgoing[e.From] = append(d.outgoing[e.From], e)
		d.incoming[e.To] = append(d.incoming[e.To], e)
	}

	for _, c := range d.ErrorCatches {
		n, ok := d.nodes[c.To]
		if !ok {
			return fmt.Errorf("%s: catch for %q targets unknown node %q", d.Key, c.Code, c.To)
		}
		if n.Kind != CatchError {
			return fmt.Errorf("%s: catch for %q targets %s node %q", d.Key, c.Code, n.Kind, c.To)
		}
	}

	d.start = ""
	for _, n := range d.Nodes {
		if err := d.validateNode(n); err != nil {
			return err
		}
	}
	if d.start == "" {
		return fmt.Errorf("%s: no start node", d.Key)
	}

	return nil
}

func (d *Definition) validateNode(n Node) error {
	out := d.outgoing[n.ID]
	in := d.incoming[n.ID]

	switch n.Kind {
	case Start, MessageStart, SignalStart:
		if len(in) != 0 {
			return fmt.Errorf("%s: %s node %q has incoming edges", d.Key, n.Kind, n.ID)
		}
		if d.start != "" {
			return fmt.Errorf("%s: multiple start nodes (%q, %q)", d.Key, d.start, n.ID)
		}
		if n.Kind == MessageStart && n.Message == "" {
			return fmt.Errorf("%s: message-start node %q has no message name", d.Key, n.ID)
		}
		if n.Kind == SignalStart && n.Signal == "" {
			return fmt.Errorf("%s: signal-start node %q has no signal name", d.Key, n.ID)
		}
		d.start = n.ID
		fallthrough
	case Task, UserTask, CatchError, Timer, MessageCatch, MessageThrow, SignalThrow:
		if len(out) != 1 {
			return fmt.Errorf("%s: %s node %q must have exactly one outgoing edge, has %d", d.Key, n.Kind, n.ID, len(out))
		}
	case ExclusiveGateway:
		if len(out) == 0 {
			return fmt.Errorf("%s: gateway %q has no outgoing edges", d.Key, n.ID)
		}
	case ParallelGateway:
		if len(out) == 0 {
			return fmt.Errorf("%s: gateway %q has no outgoing edges", d.Key, n.ID)
		}
	case CallActivity:
		if n.Definition == "" {
			return fmt.Errorf("%s: call activity %q names no definition", d.Key, n.ID)
		}
		if len(out) != 1 {
			return fmt.Errorf("%s: call activity %q must have exactly one outgoing edge", d.Key, n.ID)
		}
	case EventGateway:
		if len(out) < 2 {
			return fmt.Errorf("%s: event gateway %q needs at least two branches", d.Key, n.ID)
		}
		for _, e := range out {
			t := d.nodes[e.To]
			if t.Kind != MessageCatch {
				return fmt.Errorf("%s: event gateway %q branch targets %s node %q", d.Key, n.ID, t.Kind, e.To)
			}
		}
	case ThrowError, ErrorEnd:
		if n.Error == "" {
			return fmt.Errorf("%s: %s node %q has no error code", d.Key, n.Kind, n.ID)
		}
	case End:
		if len(out) != 0 {
			return fmt.Errorf("%s: end node %q has outgoing edges", d.Key, n.ID)
		}
	default:
		return fmt.Errorf("%s: node %q has unknown kind", d.Key, n.ID)
	}

	if n.Kind == MessageCatch && n.Message == "" {
		return fmt.Errorf("%s: message-catch node %q has no message name", d.Key, n.ID)
	}
	if n.Kind == MessageThrow && n.Message == "" {
		return fmt.Errorf("%s: message-throw node %q has no message name", d.Key, n.ID)
	}
	if n.Kind == SignalThrow && n.Signal == "" {
		return fmt.Errorf("%s: signal-throw node %q has no signal name", d.Key, n.ID)
	}
	if n.Kind == Timer && n.Delay <= 0 {
		return fmt.Errorf("%s: timer node %q has no delay", d.Key, n.ID)
	}

	return nil
}
