package grading

import (
	"testing"
	"time"
)

func TestSummarizeFormatsSuccessRate(t *testing.T) {
	tests := []struct {
		total, ok int
		want      string
	}{
		{3, 2, "66.7%"},
		{1, 1, "100.0%"},
		{30, 0, "0.0%"},
		{7, 3, "42.9%"},
		{16, 1, "6.3%"},
		{16, 5, "31.3%"},
	}
	for _, tc := range tests {
		got := summarize(tc.total, tc.ok, time.Second)
		if got.SuccessRate != tc.want {
			t.Fatalf("summarize(%d,%d) rate = %s, want %s", tc.total, tc.ok, got.SuccessRate, tc.want)
		}
		if got.Failed != tc.total-tc.ok {
			t.Fatalf("summarize(%d,%d) failed = %d", tc.total, tc.ok, got.Failed)
		}
	}
}

func TestIndexedFillsMissingIndexes(t *testing.T) {
	subs := indexed([]Submission{{FileName: "a"}, {Index: 7, FileName: "b"}, {FileName: "c"}})
	if subs[0].Index != 1 || subs[1].Index != 7 || subs[2].Index != 3 {
		t.Fatalf("unexpected indexes %+v", subs)
	}
}
