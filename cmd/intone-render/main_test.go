package main

import "testing"

func TestParseEvents(t *testing.T) {
	events, err := parseEvents("60@0, 64@0.5, 67@1-2.5", 2.0)
	if err != nil {
		t.Fatalf("parseEvents: %v", err)
	}
	want := []noteEvent{
		{note: 60, onAt: 0, offAt: 2.0},
		{note: 64, onAt: 0.5, offAt: 2.5},
		{note: 67, onAt: 1, offAt: 2.5},
	}
	if len(events) != len(want) {
		t.Fatalf("len = %d, want %d", len(events), len(want))
	}
	for i, w := range want {
		if events[i] != w {
			t.Errorf("events[%d] = %+v, want %+v", i, events[i], w)
		}
	}
}

func TestParseEventsRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"60",
		"x@0",
		"200@0",
		"60@-1",
		"60@2-1",
		"60@0-abc",
	}
	for _, s := range cases {
		if _, err := parseEvents(s, 2.0); err == nil {
			t.Errorf("parseEvents(%q): expected error", s)
		}
	}
}

func TestParsePedal(t *testing.T) {
	spans, err := parsePedal("0.5-2, 3-4")
	if err != nil {
		t.Fatalf("parsePedal: %v", err)
	}
	want := []pedalSpan{{downAt: 0.5, upAt: 2}, {downAt: 3, upAt: 4}}
	if len(spans) != len(want) {
		t.Fatalf("len = %d, want %d", len(spans), len(want))
	}
	for i, w := range want {
		if spans[i] != w {
			t.Errorf("spans[%d] = %+v, want %+v", i, spans[i], w)
		}
	}
}

func TestParsePedalEmptyIsAllowed(t *testing.T) {
	spans, err := parsePedal("")
	if err != nil {
		t.Fatalf("parsePedal: %v", err)
	}
	if len(spans) != 0 {
		t.Fatalf("spans = %v, want none", spans)
	}
}

func TestParsePedalRejectsReversedSpan(t *testing.T) {
	if _, err := parsePedal("2-1"); err == nil {
		t.Fatal("expected error for reversed span")
	}
}
