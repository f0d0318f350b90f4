package main

import (
	"math"
	"testing"

	"github.com/burrowdb/burrow/pkg/types"
)

func TestParseTableNumber(t *testing.T) {
	if n, err := parseTableNumber(0); err != nil || n != nil {
		t.Errorf("parseTableNumber(0) = %v, %v, want nil, nil", n, err)
	}

	n, err := parseTableNumber(10050)
	if err != nil {
		t.Fatalf("parseTableNumber(10050) failed: %v", err)
	}
	if n == nil || *n != types.TableNumber(10050) {
		t.Errorf("parseTableNumber(10050) = %v", n)
	}

	n, err = parseTableNumber(math.MaxUint32)
	if err != nil {
		t.Fatalf("parseTableNumber(MaxUint32) failed: %v", err)
	}
	if n == nil || *n != types.TableNumber(math.MaxUint32) {
		t.Errorf("parseTableNumber(MaxUint32) = %v", n)
	}

	// Values above MaxUint32 only fit in uint on 64-bit platforms.
	if ^uint(0) > math.MaxUint32 {
		big := uint(math.MaxUint32)
		big++
		if _, err := parseTableNumber(big); err == nil {
			t.Error("parseTableNumber above MaxUint32 should fail")
		}
	}
}
