package engine

import "testing"

func TestMakeKV_PairsAndGet(t *testing.T) {
	kv := MakeKV("gamma", 0.1, "t", 12)
	if len(kv) != 2 {
		t.Fatalf("Expected 2 pairs, got %d", len(kv))
	}
	if kv[0].Key != "gamma" || kv[1].Key != "t" {
		t.Errorf("Pairs must keep insertion order, got %v", kv)
	}

	v, ok := kv.Get("gamma")
	if !ok || v != 0.1 {
		t.Errorf("Expected gamma 0.1, got %v ok=%v", v, ok)
	}
	if _, ok := kv.Get("missing"); ok {
		t.Error("Missing key should report absent")
	}

	kv = kv.Append("gamma", 0.2)
	v, _ = kv.Get("gamma")
	if v != 0.2 {
		t.Errorf("Last entry should win, got %v", v)
	}
}

func TestKV_Args(t *testing.T) {
	kv := MakeKV("a", 1, "b", "two")
	args := kv.Args()
	want := []any{"a", 1, "b", "two"}
	if len(args) != len(want) {
		t.Fatalf("Expected %d args, got %d", len(want), len(args))
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("Arg %d: expected %v, got %v", i, want[i], args[i])
		}
	}
}

func TestMakeKV_PanicsOnOddArguments(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on odd argument count")
		}
	}()
	MakeKV("lonely")
}
