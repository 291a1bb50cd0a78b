package agent

// buildBranchPath joins a parent branch and a child segment with a dot.
func buildBranchPath(parent, child string) string {
	if parent == "" {
		return child
	}

	if child == "" {
		return parent
	}

	return parent + "." + child
}
