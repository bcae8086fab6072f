package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for agent observability spans and metrics.
var (
	AttrSessionID = attribute.Key("agent.session_id")
	AttrModel     = attribute.Key("agent.model")
	AttrIteration = attribute.Key("agent.iteration")
	AttrRunStatus = attribute.Key("agent.status")

	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolResultLength = attribute.Key("tool.result_length")
)
