package internal

import "testing"

func TestFastHash(t *testing.T) {
	if FastHash("x7k2q9") == FastHash("x7k2q8") {
		t.Error("different inputs hashed to the same fingerprint")
	}

	if FastHash("x7k2q9") != FastHash("x7k2q9") {
		t.Error("FastHash is not deterministic")
	}
}

func BenchmarkFastHash(b *testing.B) {
	for b.Loop() {
		FastHash("x7k2q9")
	}
}
