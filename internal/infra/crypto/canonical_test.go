package crypto

import "testing"

func TestCanonicalJSON_SortsKeysRecursively(t *testing.T) {
	in := []byte(`{"b": {"z": 1, "a": 2}, "a": [true, null, "x"]}`)
	out, err := CanonicalJSON(in)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":[true,null,"x"],"b":{"a":2,"z":1}}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestCanonicalJSON_KeyOrderIndependent(t *testing.T) {
	a := []byte(`{"x": 1, "y": {"p": "q", "r": "s"}}`)
	b := []byte(`{"y": {"r": "s", "p": "q"}, "x": 1}`)
	ca, err := CanonicalJSON(a)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := CanonicalJSON(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(ca) != string(cb) {
		t.Fatalf("equal documents must canonicalize identically: %s vs %s", ca, cb)
	}
}

func TestCanonicalJSON_Numbers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`1`, `1`},
		{`1.0`, `1`},
		{`-0`, `0`},
		{`0.5`, `0.5`},
		{`1e3`, `1000`},
		{`1.5e2`, `150`},
		{`1e21`, `1e21`},
		{`0.000001`, `0.000001`},
		{`1e-7`, `1e-7`},
		{`-2.5`, `-2.5`},
	}
	for _, tc := range cases {
		out, err := CanonicalJSON([]byte(tc.in))
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if string(out) != tc.want {
			t.Errorf("%s: got %s, want %s", tc.in, out, tc.want)
		}
	}
}

func TestCanonicalJSON_StringEscapes(t *testing.T) {
	out, err := CanonicalJSON([]byte(`{"k": "line\nbreak\ttab \u0001"}`))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"k":"line\nbreak\ttab \u0001"}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestCanonicalJSON_RejectsTrailingData(t *testing.T) {
	if _, err := CanonicalJSON([]byte(`{"a":1} {"b":2}`)); err == nil {
		t.Fatal("expected trailing data to be rejected")
	}
}

func TestCanonicalAny_MapMatchesRawJSON(t *testing.T) {
	fromMap, err := CanonicalAny(map[string]any{"b": float64(2), "a": "x"})
	if err != nil {
		t.Fatal(err)
	}
	fromRaw, err := CanonicalJSON([]byte(`{"a": "x", "b": 2}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(fromMap) != string(fromRaw) {
		t.Fatalf("map and raw JSON must canonicalize identically: %s vs %s", fromMap, fromRaw)
	}
}
