package bybit

import "testing"

func TestEncodeSortedQuery_DeterministicOrder(t *testing.T) {
	params := map[string]string{
		"symbol":   "BTCUSDT",
		"category": "linear",
	}

	got := encodeSortedQuery(params)
	want := "category=linear&symbol=BTCUSDT"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEncodeSortedQuery_EscapesValues(t *testing.T) {
	params := map[string]string{"orderLinkId": "acc a_limit1_aaaa"}
	got := encodeSortedQuery(params)
	want := "orderLinkId=acc+a_limit1_aaaa"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEncodeSortedQuery_Empty(t *testing.T) {
	if got := encodeSortedQuery(nil); got != "" {
		t.Errorf("expected empty string for nil params, got %q", got)
	}
}

func TestSignature_IsDeterministicAndKeyed(t *testing.T) {
	s := &Signer{recvWindow: 5000}

	sigA := s.signature("secret-one", 1000, "api-key", []byte(`{"a":1}`))
	sigB := s.signature("secret-one", 1000, "api-key", []byte(`{"a":1}`))
	if sigA != sigB {
		t.Errorf("expected identical inputs to produce identical signatures")
	}

	sigC := s.signature("secret-two", 1000, "api-key", []byte(`{"a":1}`))
	if sigA == sigC {
		t.Errorf("expected different secrets to produce different signatures")
	}

	if len(sigA) != 64 {
		t.Errorf("expected a 64-char hex-encoded SHA-256 signature, got length %d", len(sigA))
	}
}
