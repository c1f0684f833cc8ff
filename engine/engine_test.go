package engine

import (
	"context"
	"fmt"
	"testing"
)

// fakeEngine records every call in order.
type fakeEngine struct {
	calls []string
}

func (f *fakeEngine) Tag(ctx context.Context, source, target string) error {
	f.calls = append(f.calls, fmt.Sprintf("tag %s %s", source, target))
	return nil
}

func (f *fakeEngine) Push(ctx context.Context, ref string) error {
	f.calls = append(f.calls, "push "+ref)
	return nil
}

func (f *fakeEngine) Pull(ctx context.Context, ref string) error {
	f.calls = append(f.calls, "pull "+ref)
	return nil
}

func (f *fakeEngine) Remove(ctx context.Context, ref string) error {
	f.calls = append(f.calls, "rmi "+ref)
	return nil
}

func (f *fakeEngine) Build(ctx context.Context, args []string) error {
	f.calls = append(f.calls, "build")
	return nil
}

func TestPrepareReference(t *testing.T) {
	tests := []struct {
		ref     string
		flatten bool
		want    string
	}{
		{"myapp", false, "myapp:latest"},
		{"team/app:v1", false, "team/app:v1"},
		{"team/app:v1", true, "team-app:v1"},
	}
	for _, tt := range tests {
		got := PrepareReference(tt.ref, tt.flatten).String()
		if got != tt.want {
			t.Errorf("PrepareReference(%q, %v) = %q, want %q", tt.ref, tt.flatten, got, tt.want)
		}
	}
}

func TestPushImages(t *testing.T) {
	e := &fakeEngine{}
	err := PushImages(context.Background(), e, "localhost:5000", false, "team/app:v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"tag team/app:v1 localhost:5000/team/app:v1",
		"push localhost:5000/team/app:v1",
		"rmi localhost:5000/team/app:v1",
	}
	assertCalls(t, e.calls, want)
}

func TestPushImages_Flatten(t *testing.T) {
	e := &fakeEngine{}
	err := PushImages(context.Background(), e, "localhost:5000", true, "team/app:v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"tag team/app:v1 localhost:5000/team-app:v1",
		"push localhost:5000/team-app:v1",
		"rmi localhost:5000/team-app:v1",
	}
	assertCalls(t, e.calls, want)
}

func TestPullImages(t *testing.T) {
	e := &fakeEngine{}
	err := PullImages(context.Background(), e, "localhost:5000", false, "myapp:v2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"pull localhost:5000/myapp:v2",
		"tag localhost:5000/myapp:v2 myapp:v2",
		"rmi localhost:5000/myapp:v2",
	}
	assertCalls(t, e.calls, want)
}

func assertCalls(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}
