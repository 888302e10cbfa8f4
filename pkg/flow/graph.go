package flow

import "github.com/leadflowhq/leadflow/pkg/models"

// NextNodeID resolves the node that follows current in the graph. When
// branch is set (condition outcome), the matching labeled edge wins;
// otherwise the single unlabeled outgoing edge is followed. The second
// return is false when no outgoing edge applies.
func NextNodeID(currentNodeID string, edges []*models.FlowEdge, branch string) (string, bool) {
	if branch != "" {
		for _, edge := range edges {
			if edge.Source == currentNodeID && edge.Branch == branch {
				return edge.Target, true
			}
		}
	}

	for _, edge := range edges {
		if edge.Source == currentNodeID && edge.Branch == "" {
			return edge.Target, true
		}
	}

	return "", false
}
