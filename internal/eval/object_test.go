package eval

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestObjectKeepsOrder(t *testing.T) {
	o := NewObject()
	o.Set("z", 1.0)
	o.Set("a", 2.0)
	o.Set("z", 3.0)
	b, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `{"z":3,"a":2}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
	o.Delete("z")
	if diff := cmp.Diff([]string{"a"}, o.Keys()); diff != "" {
		t.Fatalf("keys after delete (-want +got):\n%s", diff)
	}
}

func TestObjectJSONRoundTrip(t *testing.T) {
	in := `{"b":{"y":1,"x":[true,null,"s"]},"a":2.5}`
	var o Object
	if err := json.Unmarshal([]byte(in), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(&o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Fatalf("round trip changed document:\n got %s\nwant %s", out, in)
	}
}

func TestObjectYAML(t *testing.T) {
	doc := "name: Demo\nversion: 1.0.0\ncount: 3\nitems:\n  - z\n  - a\nnested:\n  k2: v\n  k1: v\n"
	var o Object
	if err := yaml.Unmarshal([]byte(doc), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff([]string{"name", "version", "count", "items", "nested"}, o.Keys()); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	if v, _ := o.Get("count"); v != 3.0 {
		t.Fatalf("count = %#v", v)
	}
	nested, _ := o.Get("nested")
	if diff := cmp.Diff([]string{"k2", "k1"}, nested.(*Object).Keys()); diff != "" {
		t.Fatalf("nested keys (-want +got):\n%s", diff)
	}
}

func TestDecodeJSONArray(t *testing.T) {
	v, err := DecodeJSON(strings.NewReader(`[1,{"a":"b"}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("got %#v", v)
	}
	if s, _ := arr[1].(*Object).GetString("a"); s != "b" {
		t.Fatalf("got %q", s)
	}
}

func TestNormalizeSortsMaps(t *testing.T) {
	v := Normalize(map[string]any{"b": 1, "a": []any{int64(2)}})
	b, _ := json.Marshal(v)
	if string(b) != `{"a":[2],"b":1}` {
		t.Fatalf("got %s", b)
	}
}
