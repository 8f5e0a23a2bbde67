package models

import "testing"

func TestBagCloneIsDeep(t *testing.T) {
	t.Parallel()

	original := Bag{
		"email": "jane@example.com",
		"utm": Bag{
			"source": "landing",
		},
		"tags": []any{"priority", Bag{"score": 0.8}},
	}

	clone := original.Clone()

	clone["email"] = "other@example.com"
	clone["utm"].(Bag)["source"] = "changed"
	clone["tags"].([]any)[0] = "changed"
	clone["tags"].([]any)[1].(Bag)["score"] = 0.1

	if original["email"] != "jane@example.com" {
		t.Error("top-level scalar mutated through clone")
	}
	if original["utm"].(Bag)["source"] != "landing" {
		t.Error("nested bag mutated through clone")
	}
	if original["tags"].([]any)[0] != "priority" {
		t.Error("slice element mutated through clone")
	}
	if original["tags"].([]any)[1].(Bag)["score"] != 0.8 {
		t.Error("bag inside slice mutated through clone")
	}
}

func TestBagClonePlainMapsBecomeBags(t *testing.T) {
	t.Parallel()

	original := Bag{"meta": map[string]any{"k": "v"}}
	clone := original.Clone()

	if _, ok := clone["meta"].(Bag); !ok {
		t.Errorf("nested map cloned as %T, want Bag", clone["meta"])
	}
}

func TestBagCloneNil(t *testing.T) {
	t.Parallel()

	var b Bag
	if got := b.Clone(); got != nil {
		t.Errorf("Clone of nil bag = %v, want nil", got)
	}
}
