// Copyright (C) 2026  TempTower Go Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package main

import "testing"

func TestParseArgs(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		source   string
		min, max int
		hasRange bool
		wantErr  bool
	}{
		{name: "none", args: nil},
		{name: "source only", args: []string{"t.gcode"}, source: "t.gcode"},
		{name: "range only", args: []string{"190", "210"}, min: 190, max: 210, hasRange: true},
		{name: "source and range", args: []string{"t.gcode", "190", "210"},
			source: "t.gcode", min: 190, max: 210, hasRange: true},
		{name: "bad min", args: []string{"abc", "210"}, wantErr: true},
		{name: "bad max", args: []string{"t.gcode", "190", "hot"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgs(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs: %v", err)
			}
			if got.source != tc.source || got.min != tc.min ||
				got.max != tc.max || got.hasRange != tc.hasRange {
				t.Errorf("parseArgs(%v) = %+v", tc.args, got)
			}
		})
	}
}
