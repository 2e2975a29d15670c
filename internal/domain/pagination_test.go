package domain

import "testing"

func TestPageRequestNormalize(t *testing.T) {
	cases := []struct {
		in   PageRequest
		want PageRequest
	}{
		{PageRequest{}, PageRequest{Page: 1, Limit: DefaultPageLimit}},
		{PageRequest{Page: -3, Limit: 500}, PageRequest{Page: 1, Limit: MaxPageLimit}},
		{PageRequest{Page: 2, Limit: 10}, PageRequest{Page: 2, Limit: 10}},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(); got != tc.want {
			t.Fatalf("Normalize(%+v): want=%+v got=%+v", tc.in, tc.want, got)
		}
	}
	if off := (PageRequest{Page: 3, Limit: 10}).Offset(); off != 20 {
		t.Fatalf("Offset: want=20 got=%d", off)
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2, 3, 4, 5}, 15, PageRequest{Page: 2, Limit: 10})
	if p.Pagination.Pages != 2 || p.Pagination.Total != 15 || p.Pagination.Page != 2 || p.Pagination.Limit != 10 {
		t.Fatalf("unexpected pagination: %+v", p.Pagination)
	}
	empty := NewPage[int](nil, 0, PageRequest{})
	if empty.Data == nil || len(empty.Data) != 0 || empty.Pagination.Pages != 0 {
		t.Fatalf("empty page: %+v", empty)
	}
}

func TestGenerationStatusTerminal(t *testing.T) {
	if GenerationPending.Terminal() || GenerationProcessing.Terminal() {
		t.Fatalf("pending/processing are not terminal")
	}
	if !GenerationCompleted.Terminal() || !GenerationFailed.Terminal() {
		t.Fatalf("completed/failed are terminal")
	}
}
