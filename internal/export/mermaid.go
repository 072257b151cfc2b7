package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rock-core/tools-syskit-sub003/internal/network"
)

// GenerateMermaid produces a Mermaid graph TD diagram of the network.
// Instances are grouped by deployment; dataflow connections become arrows
// labeled with their ports.
func GenerateMermaid(g *network.Graph) string {
	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(id string) string {
		if mid, ok := nodeIDs[id]; ok {
			return mid
		}
		mid := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[id] = mid
		return mid
	}

	// Group instances by deployment.
	byDeployment := make(map[string][]*network.TaskInstance)
	var free []*network.TaskInstance
	for _, t := range g.Tasks() {
		if t.Deployment == "" {
			free = append(free, t)
			continue
		}
		byDeployment[t.Deployment] = append(byDeployment[t.Deployment], t)
	}
	deployments := make([]string, 0, len(byDeployment))
	for name := range byDeployment {
		deployments = append(deployments, name)
	}
	sort.Strings(deployments)

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, name := range deployments {
		sb.WriteString(fmt.Sprintf("  subgraph %s[\"%.40s\"]\n", getID(name+"_deployment"), name))
		for _, t := range byDeployment[name] {
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", getID(t.ID), t.Name))
		}
		sb.WriteString("  end\n")
	}
	for _, t := range free {
		sb.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", getID(t.ID), t.Name))
	}

	for _, c := range g.Connections() {
		sb.WriteString(fmt.Sprintf("  %s -->|%s:%s| %s\n",
			getID(c.SourceID), c.SourcePort, c.SinkPort, getID(c.SinkID)))
	}

	return sb.String()
}
