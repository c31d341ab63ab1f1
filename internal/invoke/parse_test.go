package invoke

import (
	"reflect"
	"testing"
)

func TestParseCommands(t *testing.T) {
	cases := []struct {
		input string
		want  Invocation
	}{
		{"@mcp:list", Invocation{Kind: KindList}},
		{"@mcp:manage", Invocation{Kind: KindManage}},
		{"@mcp:history", Invocation{Kind: KindHistory}},
		{"@mcp:search weather tools", Invocation{Kind: KindSearch, Query: "weather tools"}},
		{"@mcp:agent rename all test files", Invocation{Kind: KindAgent, Task: "rename all test files"}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.input)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.input, err)
			continue
		}
		if !reflect.DeepEqual(*got, tc.want) {
			t.Errorf("Parse(%q) = %+v, want %+v", tc.input, *got, tc.want)
		}
	}
}

func TestParseCallKeyValue(t *testing.T) {
	inv, err := Parse(`@mcp:echo text=hello count=3 ratio=0.5 verbose=true`)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Kind != KindCall || inv.ToolID != "echo" {
		t.Fatalf("inv = %+v", inv)
	}
	want := map[string]any{
		"text":    "hello",
		"count":   int64(3),
		"ratio":   0.5,
		"verbose": true,
	}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("args = %#v, want %#v", inv.Args, want)
	}
}

func TestParseCallJSONObject(t *testing.T) {
	inv, err := Parse(`@mcp:weather {"city": "Paris", "days": 3}`)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Args["city"] != "Paris" || inv.Args["days"] != float64(3) {
		t.Errorf("args = %#v", inv.Args)
	}
}

func TestParseCallQuotedValues(t *testing.T) {
	inv, err := Parse(`@mcp:note text="two words" tag='some thing'`)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Args["text"] != "two words" || inv.Args["tag"] != "some thing" {
		t.Errorf("args = %#v", inv.Args)
	}
}

func TestParseCallDefaultArg(t *testing.T) {
	inv, err := Parse(`@mcp:weather Paris`)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Args["_default"] != "Paris" {
		t.Errorf("args = %#v", inv.Args)
	}
}

func TestParseCallMultipleBareArgs(t *testing.T) {
	inv, err := Parse(`@mcp:convert 12 inches`)
	if err != nil {
		t.Fatal(err)
	}
	want := []any{int64(12), "inches"}
	if !reflect.DeepEqual(inv.Args["_args"], want) {
		t.Errorf("_args = %#v, want %#v", inv.Args["_args"], want)
	}
}

func TestParseCallMixedArgs(t *testing.T) {
	inv, err := Parse(`@mcp:resize image.png width=100 sizes=[4,9] tags='["a","b"]'`)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Args["_default"] != "image.png" {
		t.Errorf("_default = %v", inv.Args["_default"])
	}
	if inv.Args["width"] != int64(100) {
		t.Errorf("width = %#v", inv.Args["width"])
	}
	if !reflect.DeepEqual(inv.Args["sizes"], []any{float64(4), float64(9)}) {
		t.Errorf("sizes = %#v", inv.Args["sizes"])
	}
	if !reflect.DeepEqual(inv.Args["tags"], []any{"a", "b"}) {
		t.Errorf("tags = %#v", inv.Args["tags"])
	}
}

func TestParseCallNoArgs(t *testing.T) {
	inv, err := Parse("@mcp:current_time")
	if err != nil {
		t.Fatal(err)
	}
	if inv.Kind != KindCall || inv.ToolID != "current_time" || inv.Args != nil {
		t.Errorf("inv = %+v", inv)
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"plain text",
		"@mcp:",
		"@mcp:search",
		"@mcp:agent",
		`@mcp:echo {"broken":`,
		`@mcp:echo text="unterminated`,
	} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestIsInvocation(t *testing.T) {
	if !IsInvocation("  @mcp:list") {
		t.Error("leading whitespace should be accepted")
	}
	if IsInvocation("mcp:list") {
		t.Error("missing @ prefix should be rejected")
	}
}
