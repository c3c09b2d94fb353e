package task

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/adamwoolhether/asynchttp/effect"
)

func TestTask_Lazy(t *testing.T) {
	m := Monad[int]{}

	var registered atomic.Int32
	tsk := m.Flatten(m.Async(func(cb effect.Callback[Task[int]]) {
		n := registered.Add(1)
		cb(m.Unit(int(n)), nil)
	}))

	if n := registered.Load(); n != 0 {
		t.Fatalf("exp no registration before Run, got %d", n)
	}

	for i := 1; i <= 3; i++ {
		got, err := tsk.Await(t.Context())
		if err != nil {
			t.Fatalf("run %d: exp nil err, got: %v", i, err)
		}
		if got != i {
			t.Errorf("run %d: exp %d, got %d", i, i, got)
		}
	}
}

func TestMonad_Map(t *testing.T) {
	m := Monad[string]{}

	got, err := m.Map(m.Unit("a"), func(s string) string { return s + "b" }).Await(t.Context())
	if err != nil {
		t.Fatalf("exp nil err, got: %v", err)
	}
	if got != "ab" {
		t.Errorf("exp %q, got %q", "ab", got)
	}

	expErr := errors.New("boom")
	var mapped bool
	_, err = m.Map(m.Error(expErr), func(s string) string {
		mapped = true
		return s
	}).Await(t.Context())
	if !errors.Is(err, expErr) {
		t.Errorf("exp err %v, got: %v", expErr, err)
	}
	if mapped {
		t.Error("map fn must not run on failure")
	}
}

func TestMonad_AsyncAtMostOnce(t *testing.T) {
	m := Monad[int]{}

	var calls int
	m.Flatten(m.Async(func(cb effect.Callback[Task[int]]) {
		cb(m.Unit(1), nil)
		cb(m.Unit(2), nil)
		cb(Task[int]{}, errors.New("late fault"))
	})).Run(func(got int, err error) {
		calls++
		if err != nil || got != 1 {
			t.Errorf("exp (1, nil), got (%d, %v)", got, err)
		}
	})

	if calls != 1 {
		t.Errorf("exp 1 call, got %d", calls)
	}
}

func TestMonad_FlattenFailure(t *testing.T) {
	m := Monad[int]{}
	expErr := errors.New("engine fault")

	_, err := m.Flatten(m.Async(func(cb effect.Callback[Task[int]]) {
		cb(Task[int]{}, expErr)
	})).Await(t.Context())
	if !errors.Is(err, expErr) {
		t.Errorf("exp err %v, got: %v", expErr, err)
	}
}

func TestTask_ZeroValueRun(t *testing.T) {
	got, err := Task[int]{}.Await(t.Context())
	if err != nil || got != 0 {
		t.Errorf("exp (0, nil), got (%d, %v)", got, err)
	}
}
