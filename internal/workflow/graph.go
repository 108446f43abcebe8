package workflow

// Step names.
const (
	StepRoute    = "route"
	StepSearch   = "search"
	StepConverse = "converse"
	StepModify   = "modify"
	StepMaintain = "maintain"
	StepPublish  = "publish"
	StepListing  = "listing"
	StepRespond  = "respond"
	StepDegraded = "degraded"
)

// Routing keys. Most keys name the step they lead to.
const (
	KeySearch   RoutingKey = "search"
	KeyConverse RoutingKey = "converse"
	KeyModify   RoutingKey = "modify"
	KeyMaintain RoutingKey = "maintain"
	KeyPublish  RoutingKey = "publish"
	KeyListing  RoutingKey = "listing"
	KeyRespond  RoutingKey = "respond"
	KeyDegraded RoutingKey = "degraded"
)

// New builds and validates the turn graph:
//
//	route    → search | converse | modify | publish | listing | maintain | degraded
//	search   → converse | degraded
//	modify   → respond | degraded
//	maintain → respond | publish | modify | degraded
//	publish  → respond | modify | degraded
//	listing  → respond | degraded
//
// converse, respond, and degraded are terminal.
func New(rt *Runtime) (*Engine, error) {
	e := NewEngine(rt.Config.MaxHops, rt.Logger)

	e.Register(StepRoute, RouteStep(rt),
		KeySearch, KeyConverse, KeyModify, KeyPublish, KeyListing, KeyMaintain, KeyDegraded)
	e.Register(StepSearch, SearchStep(rt), KeyConverse, KeyDegraded)
	e.Register(StepConverse, ConverseStep(rt))
	e.Register(StepModify, ModifyStep(rt), KeyRespond, KeyDegraded)
	e.Register(StepMaintain, MaintainStep(rt), KeyRespond, KeyPublish, KeyModify, KeyDegraded)
	e.Register(StepPublish, PublishStep(rt), KeyRespond, KeyModify, KeyDegraded)
	e.Register(StepListing, ListingStep(rt), KeyRespond, KeyDegraded)
	e.Register(StepRespond, RespondStep())
	e.Register(StepDegraded, DegradedStep())

	for _, key := range []RoutingKey{KeySearch, KeyConverse, KeyModify, KeyPublish, KeyListing, KeyMaintain, KeyDegraded} {
		e.AddEdge(StepRoute, key, string(key))
	}
	e.AddEdge(StepSearch, KeyConverse, StepConverse)
	e.AddEdge(StepSearch, KeyDegraded, StepDegraded)
	e.AddEdge(StepModify, KeyRespond, StepRespond)
	e.AddEdge(StepModify, KeyDegraded, StepDegraded)
	e.AddEdge(StepMaintain, KeyRespond, StepRespond)
	e.AddEdge(StepMaintain, KeyPublish, StepPublish)
	e.AddEdge(StepMaintain, KeyModify, StepModify)
	e.AddEdge(StepMaintain, KeyDegraded, StepDegraded)
	e.AddEdge(StepPublish, KeyRespond, StepRespond)
	e.AddEdge(StepPublish, KeyModify, StepModify)
	e.AddEdge(StepPublish, KeyDegraded, StepDegraded)
	e.AddEdge(StepListing, KeyRespond, StepRespond)
	e.AddEdge(StepListing, KeyDegraded, StepDegraded)

	e.SetEntry(StepRoute)

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}
