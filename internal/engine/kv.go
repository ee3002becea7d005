package engine

// KVPair is a single diagnostic emitted by a solver during a run.
type KVPair struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// KV is an ordered list of per-iteration diagnostics. Solvers attach
// values (step size, temperature, simplex spread) that the engine does
// not interpret; observers render them in insertion order.
type KV []KVPair

// MakeKV builds a KV from alternating keys and values, in the manner of
// slog attrs: MakeKV("gamma", 0.1, "t", 12). Panics on an odd number of
// arguments or a non-string key.
func MakeKV(pairs ...any) KV {
	if len(pairs)%2 != 0 {
		panic("engine: MakeKV requires an even number of arguments")
	}
	kv := make(KV, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic("engine: MakeKV keys must be strings")
		}
		kv = append(kv, KVPair{Key: key, Value: pairs[i+1]})
	}
	return kv
}

// Append adds one pair and returns the extended list.
func (kv KV) Append(key string, value any) KV {
	return append(kv, KVPair{Key: key, Value: value})
}

// Get returns the value for key and whether it was present. The last
// entry wins if a key was appended twice.
func (kv KV) Get(key string) (any, bool) {
	for i := len(kv) - 1; i >= 0; i-- {
		if kv[i].Key == key {
			return kv[i].Value, true
		}
	}
	return nil, false
}

// Args flattens the list into alternating key/value arguments for slog.
func (kv KV) Args() []any {
	out := make([]any, 0, len(kv)*2)
	for _, p := range kv {
		out = append(out, p.Key, p.Value)
	}
	return out
}
