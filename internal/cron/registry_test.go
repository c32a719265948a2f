package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "a"}, nil, &stubJob{name: "b"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0].Name() != "a" || jobs[1].Name() != "b" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
	if job, ok := registry.Lookup("b"); !ok || job.Name() != "b" {
		t.Fatalf("lookup failed")
	}
	if _, ok := registry.Lookup("missing"); ok {
		t.Fatalf("unexpected lookup hit")
	}
}

func TestRegistryRejectsDuplicatesAndBlankNames(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "sweep"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := registry.Register(&stubJob{name: "sweep"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	if err := registry.Register(&stubJob{name: " "}); err == nil {
		t.Fatal("expected blank name error")
	}
	if _, err := NewRegistry(&stubJob{name: "x"}, &stubJob{name: "x"}); err == nil {
		t.Fatal("expected constructor to reject duplicates")
	}
}
