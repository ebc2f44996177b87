package driver

import "github.com/deepresearchhq/engine/router"

// NodeMeta documents a node for telemetry/stream labeling: its name and a
// one-line description of its contract. Per spec section 9's "graph
// builder with decorators/reflection" redesign note, this is an explicit,
// locally-constructed mapping rather than a package-level registry a node
// implementation self-registers into.
type NodeMeta struct {
	Name        router.NodeName
	Description string
}

// Graph is the fixed node/metadata mapping the driver walks. It carries no
// behavior of its own — workflow.go calls the nodes package functions
// directly in the order spec section 4 defines — but gives every stream
// event and log line a single source of truth for node names and gives a
// future caller (e.g. a UI node palette) something to introspect without
// reaching into the driver's control flow.
type Graph struct {
	Nodes map[router.NodeName]NodeMeta
}

// BuildGraph constructs the fixed research graph's metadata mapping.
func BuildGraph() *Graph {
	nodes := map[router.NodeName]NodeMeta{
		router.NodeGenerateQuery:      {Name: router.NodeGenerateQuery, Description: "derive initial search queries from the user's question"},
		router.NodePlanningMode:       {Name: router.NodePlanningMode, Description: "interpret planning commands and propose/regenerate a plan"},
		router.NodePlanningWait:       {Name: router.NodePlanningWait, Description: "suspend the run pending human plan confirmation"},
		router.NodeWebResearch:        {Name: router.NodeWebResearch, Description: "fan out one grounded search branch per pending query/step"},
		router.NodeValidateWebResults: {Name: router.NodeValidateWebResults, Description: "drop summaries irrelevant to the issued queries"},
		router.NodeReflection:         {Name: router.NodeReflection, Description: "judge evidence sufficiency and propose follow-up queries"},
		router.NodeFinalizeAnswer:     {Name: router.NodeFinalizeAnswer, Description: "synthesize the cited final answer"},
	}
	return &Graph{Nodes: nodes}
}
