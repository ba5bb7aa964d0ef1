package utils

import "testing"

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{false, true} {
		l, err := NewLogger(debug)
		if err != nil {
			t.Fatalf("NewLogger(%v): %v", debug, err)
		}
		if l == nil {
			t.Fatalf("NewLogger(%v) returned nil", debug)
		}
		if debug != l.Core().Enabled(-1) { // -1 = DebugLevel
			t.Errorf("debug=%v but debug level enabled=%v", debug, l.Core().Enabled(-1))
		}
	}
}
