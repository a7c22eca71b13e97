package resilience

import (
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrCircuitOpen", ErrCircuitOpen},
		{"ErrBulkheadFull", ErrBulkheadFull},
		{"ErrTimeout", ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.err.Error(), "resilience: ") {
				t.Errorf("%s message %q lacks package prefix", tt.name, tt.err.Error())
			}
		})
	}
}
