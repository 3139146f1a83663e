package engine

import "strings"

// vertex is a named node and the names of the nodes it reads from.
type vertex struct {
	name    string
	sources []string
}

const (
	unvisited = iota
	visiting
	visited
)

// BuildDAG returns the indexes of vertices in an order where every vertex
// follows all of its sources.
//
// The traversal is depth-first, starting from each root in turn and then from
// every vertex in declaration order, so that vertices no root reaches are still
// checked. Sources are visited in declared order, which makes the result
// deterministic for a given description.
func BuildDAG(vertices []vertex, roots []string) ([]int, error) {
	byName := make(map[string]int, len(vertices))
	for i, v := range vertices {
		byName[v.name] = i
	}

	state := make([]int, len(vertices))
	order := make([]int, 0, len(vertices))
	var stack []string

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visited:
			return nil
		case visiting:
			cycle := append(append([]string(nil), stack[indexOf(stack, vertices[i].name):]...), vertices[i].name)
			return configErrorf(vertices[i].name, ErrCycle, "%s", strings.Join(cycle, " -> "))
		}

		state[i] = visiting
		stack = append(stack, vertices[i].name)
		for _, source := range vertices[i].sources {
			j, found := byName[source]
			if !found {
				return configErrorf(vertices[i].name, ErrUnresolvedInput, "source %q is not defined", source)
			}
			if err := visit(j); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = visited
		order = append(order, i)
		return nil
	}

	for _, root := range roots {
		i, found := byName[root]
		if !found {
			return nil, configErrorf(root, ErrUnresolvedInput, "node %q is not defined", root)
		}
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	for i := range vertices {
		if err := visit(i); err != nil {
			return nil, err
		}
	}

	return order, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return 0
}
