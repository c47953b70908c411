package redact

import "testing"

func TestMaskValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"secret", Mask},
		{[]any{"a"}, Mask},
		{42, 42},
		{3.14, 3.14},
		{true, true},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := MaskValue(tt.in); got != tt.want {
			t.Errorf("MaskValue(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "open the north door", "open the north door"},
		{"kv equals", "login password=hunter2 now", "login password=*** now"},
		{"kv colon", "Token: abc.def", "Token: ***"},
		{"email", "notify keeper@reef.example.org", "notify ***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.in); got != tt.want {
				t.Errorf("String(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetailsMasksKeys(t *testing.T) {
	in := map[string]any{
		"door":     "north",
		"Password": "hunter2",
		"depth":    40,
		"pin":      "1234",
	}
	got := Details(in, []string{"PIN"})

	if got["door"] != "north" {
		t.Errorf("expected door untouched, got %v", got["door"])
	}
	if got["Password"] != Mask {
		t.Errorf("expected password masked, got %v", got["Password"])
	}
	if got["pin"] != Mask {
		t.Errorf("expected extra key masked, got %v", got["pin"])
	}
	if got["depth"] != 40 {
		t.Errorf("expected number preserved, got %v", got["depth"])
	}
	if in["Password"] != "hunter2" {
		t.Error("expected input map not to be modified")
	}
}

func TestDetailsWalksNested(t *testing.T) {
	in := map[string]any{
		"request": map[string]any{
			"token": "abc",
			"note":  "api_key=xyz",
		},
		"contacts": []any{"keeper@reef.example.org", 7},
	}
	got := Details(in, nil)

	nested := got["request"].(map[string]any)
	if nested["token"] != Mask {
		t.Errorf("expected nested token masked, got %v", nested["token"])
	}
	if nested["note"] != "api_key=***" {
		t.Errorf("expected nested note scrubbed, got %v", nested["note"])
	}
	list := got["contacts"].([]any)
	if list[0] != Mask || list[1] != 7 {
		t.Errorf("expected list scrubbed, got %v", list)
	}
	if in["request"].(map[string]any)["token"] != "abc" {
		t.Error("expected nested input not to be modified")
	}
}

func TestDetailsNil(t *testing.T) {
	if got := Details(nil, []string{"x"}); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
