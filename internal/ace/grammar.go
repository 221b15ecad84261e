// Package ace holds the annotation vocabulary and the typed model built from
// annotated addon sources.
//
// Vocabulary:
//   - @AceClass marks a class whose methods are scanned.
//   - @Action, @Condition, @Trigger and @Expression mark one method each.
//   - @Param attaches metadata to one method parameter.
//
// Method markers take (displayText?: string, options?: object). @Param takes
// (options?: object). Everything built from them lives in a BuildContext that
// is created per build and discarded afterwards.
package ace

// Kind is the record family, spelled as it appears in the catalogue.
type Kind string

const (
	KindAction     Kind = "actions"
	KindCondition  Kind = "conditions"
	KindExpression Kind = "expressions"
)

// Kinds lists every kind in catalogue order.
var Kinds = []Kind{KindAction, KindCondition, KindExpression}

const (
	ContainerMarker = "AceClass"
	ParamMarker     = "Param"

	DefaultCategory = "general"
	AnyType         = "any"
)

// MethodMarker describes one method-level annotation.
type MethodMarker struct {
	Name    string
	Kind    Kind
	Trigger bool
}

var methodMarkers = map[string]MethodMarker{
	"Action":     {Name: "Action", Kind: KindAction},
	"Condition":  {Name: "Condition", Kind: KindCondition},
	"Trigger":    {Name: "Trigger", Kind: KindCondition, Trigger: true},
	"Expression": {Name: "Expression", Kind: KindExpression},
}

// LookupMethodMarker returns the method marker called name.
func LookupMethodMarker(name string) (MethodMarker, bool) {
	m, ok := methodMarkers[name]
	return m, ok
}

// Option keys of a method marker that describe the editor entry rather than
// the catalogue entry.
var (
	DisplayOnlyRecordKeys = []string{"category", "forward", "handler", "listName", "displayText", "description", "params"}
	DisplayOnlyParamKeys  = []string{"name", "desc", "items"}
)
