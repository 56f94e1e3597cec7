package level

import "testing"

func TestGridSize(t *testing.T) {
	want := map[int]int{1: 3, 2: 3, 3: 4, 4: 4, 5: 5, 6: 5, 7: 5}
	for lv, size := range want {
		if got := GridSize(lv); got != size {
			t.Fatalf("GridSize(%d)=%d want %d", lv, got, size)
		}
	}
	if Difficulty(1) != Beginner || Difficulty(4) != Intermediate || Difficulty(7) != Advanced {
		t.Fatalf("difficulty labels mismatch")
	}
}

func TestIsLastAndFromCompleted(t *testing.T) {
	for lv := First; lv <= Last; lv++ {
		if IsLast(lv) != (lv == 7) {
			t.Fatalf("IsLast(%d)=%v", lv, IsLast(lv))
		}
	}
	cases := []struct {
		completed uint8
		want      int
	}{
		{0, 1}, {1, 2}, {6, 7}, {7, 7}, {9, 7},
	}
	for _, c := range cases {
		if got := FromCompleted(c.completed); got != c.want {
			t.Fatalf("FromCompleted(%d)=%d want %d", c.completed, got, c.want)
		}
	}
}

func TestNextMilestone(t *testing.T) {
	cases := []struct {
		completed, claimed uint8
		milestone          uint8
		available          bool
	}{
		{0, 0, 1, false},
		{1, 0, 1, true},
		{2, 1, 3, false},
		{3, 1, 3, true},
		{7, 1, 3, true},
		{6, 2, 5, true},
		{6, 3, 7, false},
		{7, 3, 7, true},
		{7, 4, 0, false},
	}
	for _, c := range cases {
		m, ok := NextMilestone(c.completed, c.claimed)
		if m != c.milestone || ok != c.available {
			t.Fatalf("NextMilestone(%d,%d)=(%d,%v) want (%d,%v)", c.completed, c.claimed, m, ok, c.milestone, c.available)
		}
	}
	if MilestoneIndex(5) != 2 || MilestoneIndex(2) != -1 {
		t.Fatalf("MilestoneIndex mismatch")
	}
	if ReachedMilestones(4) != 2 {
		t.Fatalf("ReachedMilestones(4)=%d want 2", ReachedMilestones(4))
	}
}
