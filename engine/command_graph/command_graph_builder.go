package command_graph

// CommandGraphBuilderOption is a functional option for configuring a CommandGraph.
type CommandGraphBuilderOption func(*commandGraph)

// WithCapacity preallocates the node and level arenas.
//
// Parameters:
//   - nodes: expected number of nodes per frame
//   - levels: expected number of levels per frame
//
// Returns:
//   - CommandGraphBuilderOption: option function to apply
func WithCapacity(nodes, levels int) CommandGraphBuilderOption {
	return func(g *commandGraph) {
		g.nodes = make([]WorkNode, 0, max(nodes, 0))
		g.levels = make([]level, 0, max(levels, 0))
	}
}
