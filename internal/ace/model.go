package ace

import (
	"bytes"
	"encoding/json"
	"fmt"

	"c3addon-builder/internal/eval"
)

// Item is one entry of a combo parameter.
type Item struct {
	Key   string
	Label string
}

// ParseItems reads a combo item list in declaration order. Entries are
// single-key objects ({key: "Label"}) or bare keys, which label themselves.
func ParseItems(v any) ([]Item, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	items := make([]Item, 0, len(list))
	for i, e := range list {
		switch t := e.(type) {
		case string:
			items = append(items, Item{Key: t, Label: t})
		case *eval.Object:
			if t.Len() != 1 {
				return nil, fmt.Errorf("item %d: objects must have exactly one key", i)
			}
			key := t.Keys()[0]
			label, ok := t.GetString(key)
			if !ok {
				return nil, fmt.Errorf("item %d: label of %q must be a string", i, key)
			}
			items = append(items, Item{Key: key, Label: label})
		default:
			return nil, fmt.Errorf("item %d: unsupported value %v", i, e)
		}
	}
	return items, nil
}

// Parameter is one method parameter after defaults were applied.
type Parameter struct {
	ID           string
	Name         string
	Desc         string
	Type         string
	InitialValue any
	HasInitial   bool
	Items        []Item
	HasItems     bool
	// Options are the @Param arguments in source order, unknown keys included.
	Options *eval.Object
}

// Record is one Action, Condition or Expression.
type Record struct {
	ID          string
	Kind        Kind
	Category    string
	DisplayText string
	ListName    string
	Description string
	Params      []Parameter
	ReturnType  string
	// Options are the marker's option object in source order.
	Options *eval.Object
	// Method is the name of the instance method the record dispatches to.
	Method string
	// Source is the file the record was declared in.
	Source string
}

// Category groups the records of one category id.
type Category struct {
	ID          string
	Actions     []*Record
	Conditions  []*Record
	Expressions []*Record
}

// List returns the records of kind k.
func (c *Category) List(k Kind) []*Record {
	switch k {
	case KindAction:
		return c.Actions
	case KindCondition:
		return c.Conditions
	case KindExpression:
		return c.Expressions
	}
	return nil
}

func (c *Category) add(r *Record) {
	switch r.Kind {
	case KindAction:
		c.Actions = append(c.Actions, r)
	case KindCondition:
		c.Conditions = append(c.Conditions, r)
	case KindExpression:
		c.Expressions = append(c.Expressions, r)
	}
}

// Model maps category ids to their records. Categories keep first-use order.
type Model struct {
	order []string
	cats  map[string]*Category
}

func NewModel() *Model {
	return &Model{cats: make(map[string]*Category)}
}

// Category returns the bucket for id, creating it with empty lists on first use.
func (m *Model) Category(id string) *Category {
	if c, ok := m.cats[id]; ok {
		return c
	}
	c := &Category{ID: id}
	m.cats[id] = c
	m.order = append(m.order, id)
	return c
}

// Categories returns the buckets in first-use order.
func (m *Model) Categories() []*Category {
	out := make([]*Category, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.cats[id])
	}
	return out
}

// Records flattens the records of kind k across categories.
func (m *Model) Records(k Kind) []*Record {
	var out []*Record
	for _, id := range m.order {
		out = append(out, m.cats[id].List(k)...)
	}
	return out
}

// Len returns the total number of records.
func (m *Model) Len() int {
	n := 0
	for _, c := range m.cats {
		n += len(c.Actions) + len(c.Conditions) + len(c.Expressions)
	}
	return n
}

// DispatchEntry binds a record id to the instance method implementing it.
type DispatchEntry struct {
	ID     string
	Method string
}

// DispatchTable maps kind -> record id -> method name.
type DispatchTable struct {
	entries map[Kind][]DispatchEntry
}

func NewDispatchTable() *DispatchTable {
	return &DispatchTable{entries: make(map[Kind][]DispatchEntry)}
}

func (d *DispatchTable) add(k Kind, id, method string) {
	d.entries[k] = append(d.entries[k], DispatchEntry{ID: id, Method: method})
}

// Entries returns the entries of kind k in registration order.
func (d *DispatchTable) Entries(k Kind) []DispatchEntry {
	return d.entries[k]
}

// Binding renders the runtime expression that resolves method on an instance.
func Binding(method string) string {
	b, _ := json.Marshal(method)
	return fmt.Sprintf("(inst) => inst[%s]", b)
}

// Script renders the table as a JS object literal for the runtime loader:
// {"actions": {"doThing": {forward: (inst) => inst["doThing"]}}, ...}.
func (d *DispatchTable) Script() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range Kinds {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:{", string(k))
		for j, e := range d.entries[k] {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(e.ID)
			buf.Write(key)
			buf.WriteString(":{forward:")
			buf.WriteString(Binding(e.Method))
			buf.WriteByte('}')
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.String()
}

// MarshalJSON writes the table as data: kind -> id -> method name.
func (d *DispatchTable) MarshalJSON() ([]byte, error) {
	out := eval.NewObject()
	for _, k := range Kinds {
		ids := eval.NewObject()
		for _, e := range d.entries[k] {
			ids.Set(e.ID, e.Method)
		}
		out.Set(string(k), ids)
	}
	return out.MarshalJSON()
}
