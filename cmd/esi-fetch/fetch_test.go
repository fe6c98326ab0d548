package main

import (
	"reflect"
	"testing"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"10000002", 10000002},
		{"true", true},
		{"all", "all"},
		{"3.14", "3.14"}, // floats stay strings, ESI params are int/bool/string
	}
	for _, tt := range tests {
		if got := parseValue(tt.raw); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.raw, got, got, tt.want, tt.want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs(
		[]string{"region_id=10000002", "type_id=34,35", "order_type=sell"},
		[]string{"type_id"},
	)
	if err != nil {
		t.Fatalf("parseArgs() error = %v", err)
	}

	if args["region_id"] != 10000002 {
		t.Errorf("region_id = %v", args["region_id"])
	}
	if args["order_type"] != "sell" {
		t.Errorf("order_type = %v", args["order_type"])
	}
	if !reflect.DeepEqual(args["type_id"], []any{34, 35}) {
		t.Errorf("type_id = %v, want [34 35]", args["type_id"])
	}
}

func TestParseArgs_Errors(t *testing.T) {
	if _, err := parseArgs([]string{"region_id"}, nil); err == nil {
		t.Error("malformed pair accepted")
	}
	if _, err := parseArgs([]string{"region_id=1"}, []string{"type_id"}); err == nil {
		t.Error("loop without values accepted")
	}
}
