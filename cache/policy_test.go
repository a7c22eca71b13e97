package cache

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Lifetime != 60*time.Second {
		t.Errorf("Lifetime = %v, want 60s", p.Lifetime)
	}
	if p.MaxBytes != 50<<20 {
		t.Errorf("MaxBytes = %d, want 50MB", p.MaxBytes)
	}
	if !p.ShouldCache() {
		t.Error("default policy should cache")
	}
}

func TestPolicy_Admit(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		conf float64
		want bool
	}{
		{0.9, true},
		{0.51, true},
		{0.5, false},
		{0.1, false},
	}
	for _, tt := range tests {
		if got := p.Admit(tt.conf); got != tt.want {
			t.Errorf("Admit(%v) = %v, want %v", tt.conf, got, tt.want)
		}
	}
	if NoCachePolicy().Admit(1) {
		t.Error("NoCachePolicy should admit nothing")
	}
}
