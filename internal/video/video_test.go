package video

import "testing"

func TestSampleIndexes(t *testing.T) {
	got := sampleIndexes(300, 3)
	want := []int{0, 100, 200}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSampleIndexesShortVideo(t *testing.T) {
	got := sampleIndexes(5, 30)
	if len(got) != 5 {
		t.Fatalf("got %d indexes for a 5-frame video, want 5", len(got))
	}
	seen := map[int]bool{}
	for _, idx := range got {
		if idx < 0 || idx >= 5 {
			t.Fatalf("index %d out of range", idx)
		}
		if seen[idx] {
			t.Fatalf("duplicate index %d in %v", idx, got)
		}
		seen[idx] = true
	}
}

func TestSampleIndexesUnknownTotal(t *testing.T) {
	got := sampleIndexes(0, 10)
	if len(got) != 10 {
		t.Fatalf("got %d indexes, want 10", len(got))
	}
	for _, idx := range got {
		if idx < 0 {
			t.Fatalf("negative index in %v", got)
		}
	}
}
