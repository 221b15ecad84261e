package ace

// BuildContext accumulates the records of one build across all source files.
// It is owned by a single build and must not be shared between builds.
type BuildContext struct {
	ID       string
	Model    *Model
	Dispatch *DispatchTable

	seen map[Kind]map[string]string // kind -> id -> source
}

// NewBuildContext returns an empty context tagged with a build id.
func NewBuildContext(id string) *BuildContext {
	return &BuildContext{
		ID:       id,
		Model:    NewModel(),
		Dispatch: NewDispatchTable(),
		seen:     make(map[Kind]map[string]string),
	}
}

// Register adds r to the model and the dispatch table. Ids are unique per
// kind across the whole build; a second declaration is an error.
func (bc *BuildContext) Register(r *Record) error {
	ids := bc.seen[r.Kind]
	if ids == nil {
		ids = make(map[string]string)
		bc.seen[r.Kind] = ids
	}
	if first, dup := ids[r.ID]; dup {
		return DuplicateID(r.Kind, r.ID, first)
	}
	ids[r.ID] = r.Source
	if r.Category == "" {
		r.Category = DefaultCategory
	}
	bc.Model.Category(r.Category).add(r)
	bc.Dispatch.add(r.Kind, r.ID, r.Method)
	return nil
}
