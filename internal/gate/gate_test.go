package gate

import (
	"context"
	"errors"
	"testing"
)

type fakeCheck struct {
	name string
	err  error
}

func (f fakeCheck) Name() string                             { return f.name }
func (f fakeCheck) Run(ctx context.Context, art Artifact) error { return f.err }

func TestSequencePassesWhenAllChecksPass(t *testing.T) {
	s := &Sequence{Name: "build", Checks: []Check{fakeCheck{name: "a"}, fakeCheck{name: "b"}}}
	result := s.Run(context.Background(), Artifact{Path: "x.go", TaskID: "t1"})
	if !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestSequenceShortCircuitsOnFirstFailure(t *testing.T) {
	s := &Sequence{Name: "build", Checks: []Check{
		fakeCheck{name: "a", err: errors.New("boom")},
		fakeCheck{name: "b"},
	}}
	result := s.Run(context.Background(), Artifact{Path: "x.go", TaskID: "t1"})
	if result.Passed {
		t.Fatal("expected failure")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one recorded error, got %d", len(result.Errors))
	}
}
