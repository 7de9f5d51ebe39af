package agentsup

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Kind
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"turn/start","params":{}}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"turn/delta","params":{}}`, KindNotification},
		{"response result", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse},
		{"response error", `{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"bad"}}`, KindResponse},
		{"null id notification-like", `{"jsonrpc":"2.0","id":null,"method":"x"}`, KindNotification},
		{"neither", `{"jsonrpc":"2.0"}`, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify([]byte(tc.body))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Classify(%s) = %v, want %v", tc.body, got, tc.want)
			}
		})
	}
}

func TestClassifyMalformed(t *testing.T) {
	if _, err := Classify([]byte("not json")); err == nil {
		t.Fatal("Classify on malformed JSON returned nil error")
	}
}

func TestIDKeyNormalization(t *testing.T) {
	a := ID{Raw: float64(42)}
	b := ID{Raw: int(42)}
	if a.Key() != b.Key() {
		t.Fatalf("Key() float64(42)=%q int(42)=%q, want equal", a.Key(), b.Key())
	}

	s := ID{Raw: "abc"}
	if s.Key() != "abc" {
		t.Fatalf("Key() string = %q, want %q", s.Key(), "abc")
	}
}

func TestIDRoundTrip(t *testing.T) {
	var id ID
	if err := id.UnmarshalJSON([]byte("7")); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	out, err := id.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(out) != "7" {
		t.Fatalf("MarshalJSON = %q, want %q", out, "7")
	}
}
