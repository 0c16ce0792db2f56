package workflow

import (
	"fmt"

	"github.com/ferrant/orchid/pkg/models"
	"github.com/ferrant/orchid/pkg/registry"
)

// Validate checks a workflow's structure before activation: exactly one
// start node, at least one end node, every edge references existing nodes,
// every node is reachable from start, and some end node is reachable from
// every node. When a registry is given, handler-backed node types must be
// registered and their configurations must satisfy the registered schema.
//
// Loop bodies participate in reachability through the implicit loop -> body
// link; body subgraphs must close the cycle with an explicit edge back to
// their loop node.
func Validate(workflow *models.Workflow, reg *registry.Registry) error {
	var problems []string

	nodes := make(map[string]*models.Node, len(workflow.Nodes))
	starts := 0
	ends := 0

	for _, node := range workflow.Nodes {
		if _, dup := nodes[node.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))

			continue
		}

		nodes[node.ID] = node

		switch node.Type {
		case models.NodeTypeStart:
			starts++
		case models.NodeTypeEnd:
			ends++
		case models.NodeTypeLoop:
			problems = append(problems, validateLoop(node)...)
		}
	}

	if starts != 1 {
		problems = append(problems, fmt.Sprintf("workflow must have exactly one start node, found %d", starts))
	}

	if ends == 0 {
		problems = append(problems, "workflow must have at least one end node")
	}

	for _, edge := range workflow.Edges {
		if _, ok := nodes[edge.Source]; !ok {
			problems = append(problems, fmt.Sprintf("edge references unknown source node %q", edge.Source))
		}

		if _, ok := nodes[edge.Target]; !ok {
			problems = append(problems, fmt.Sprintf("edge references unknown target node %q", edge.Target))
		}

		if edge.Predicate != nil && !models.KnownOperator(edge.Predicate.Operator) {
			problems = append(problems, fmt.Sprintf("edge %s -> %s uses unsupported operator %q",
				edge.Source, edge.Target, edge.Predicate.Operator))
		}
	}

	for _, trigger := range workflow.Triggers {
		problems = append(problems, validateTrigger(trigger)...)
	}

	// Reachability only makes sense on a graph whose references resolve.
	if len(problems) == 0 && starts == 1 {
		problems = append(problems, validateReachability(workflow, nodes)...)
	}

	if reg != nil {
		problems = append(problems, validateHandlers(workflow, reg)...)
	}

	if len(problems) > 0 {
		return &ValidationError{WorkflowID: workflow.ID, Problems: problems}
	}

	return nil
}

func validateLoop(node *models.Node) []string {
	if node.Loop == nil {
		return []string{fmt.Sprintf("loop node %q has no loop specification", node.ID)}
	}

	var problems []string

	if node.Loop.Body == "" {
		problems = append(problems, fmt.Sprintf("loop node %q has no body node", node.ID))
	}

	if node.Loop.MaxIterations <= 0 {
		problems = append(problems, fmt.Sprintf("loop node %q must set a positive max_iterations", node.ID))
	}

	if !models.KnownOperator(node.Loop.Exit.Operator) {
		problems = append(problems, fmt.Sprintf("loop node %q exit predicate uses unsupported operator %q",
			node.ID, node.Loop.Exit.Operator))
	}

	return problems
}

func validateTrigger(trigger *models.Trigger) []string {
	var problems []string

	switch trigger.Type {
	case models.TriggerTypeSchedule:
		if _, err := models.ParseInterval(trigger.Schedule); err != nil {
			problems = append(problems, fmt.Sprintf("trigger %q: %v", trigger.ID, err))
		}
	case models.TriggerTypeEvent, models.TriggerTypeWebhook:
		if trigger.EventType == "" {
			problems = append(problems, fmt.Sprintf("trigger %q has no event type", trigger.ID))
		}

		for field, rule := range trigger.Filter {
			if !models.KnownOperator(rule.Operator) {
				problems = append(problems, fmt.Sprintf("trigger %q filter on %q uses unsupported operator %q",
					trigger.ID, field, rule.Operator))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("trigger %q has unsupported type %q", trigger.ID, trigger.Type))
	}

	return problems
}

func validateReachability(workflow *models.Workflow, nodes map[string]*models.Node) []string {
	adjacency := make(map[string][]string, len(nodes))

	for _, edge := range workflow.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	for _, node := range workflow.Nodes {
		if node.Type == models.NodeTypeLoop && node.Loop != nil {
			if _, ok := nodes[node.Loop.Body]; !ok {
				return []string{fmt.Sprintf("loop node %q body references unknown node %q", node.ID, node.Loop.Body)}
			}

			adjacency[node.ID] = append(adjacency[node.ID], node.Loop.Body)
		}
	}

	var problems []string

	start, _ := workflow.StartNode()
	reachable := traverse(start.ID, adjacency)

	for _, node := range workflow.Nodes {
		if _, ok := reachable[node.ID]; !ok {
			problems = append(problems, fmt.Sprintf("node %q is not reachable from start", node.ID))
		}
	}

	reverse := make(map[string][]string, len(nodes))
	for source, targets := range adjacency {
		for _, target := range targets {
			reverse[target] = append(reverse[target], source)
		}
	}

	canFinish := make(map[string]struct{})

	for _, node := range workflow.Nodes {
		if node.Type == models.NodeTypeEnd {
			for id := range traverse(node.ID, reverse) {
				canFinish[id] = struct{}{}
			}
		}
	}

	for _, node := range workflow.Nodes {
		if _, ok := canFinish[node.ID]; !ok {
			problems = append(problems, fmt.Sprintf("no end node is reachable from node %q", node.ID))
		}
	}

	return problems
}

func validateHandlers(workflow *models.Workflow, reg *registry.Registry) []string {
	var problems []string

	for _, node := range workflow.Nodes {
		if node.Type.Structural() {
			continue
		}

		if !reg.Registered(string(node.Type)) {
			problems = append(problems, fmt.Sprintf("node %q: no handler registered for type %q", node.ID, node.Type))

			continue
		}

		if err := reg.ValidateConfig(string(node.Type), node.Config); err != nil {
			problems = append(problems, fmt.Sprintf("node %q: %v", node.ID, err))
		}
	}

	return problems
}

func traverse(from string, adjacency map[string][]string) map[string]struct{} {
	visited := make(map[string]struct{})
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if _, seen := visited[current]; seen {
			continue
		}

		visited[current] = struct{}{}
		queue = append(queue, adjacency[current]...)
	}

	return visited
}
