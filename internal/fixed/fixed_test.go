package fixed

import (
	"math"
	"testing"
)

func TestMul(t *testing.T) {
	if v, ok := Mul(100, 10); !ok || v != 1000 {
		t.Fatalf("Mul(100,10) = %d, %v", v, ok)
	}
	if _, ok := Mul(math.MaxInt64, 2); ok {
		t.Fatal("expected overflow")
	}
	if v, ok := Mul(0, math.MaxInt64); !ok || v != 0 {
		t.Fatalf("Mul(0,max) = %d, %v", v, ok)
	}
	if _, ok := Mul(-1, 1); ok {
		t.Fatal("negative operand must fail")
	}
}

func TestMulDivFloor(t *testing.T) {
	// 1.5 * 2.0 at 1e8 scale = 3.0
	if v, ok := MulDivFloor(150_000_000, 200_000_000, 100_000_000); !ok || v != 300_000_000 {
		t.Fatalf("got %d, %v", v, ok)
	}
	// truncation: 1/3 * 1 scaled by 1 -> floor
	if v, ok := MulDivFloor(1, 1, 3); !ok || v != 0 {
		t.Fatalf("got %d, %v", v, ok)
	}
	// intermediate exceeds 64 bits but quotient fits
	if v, ok := MulDivFloor(math.MaxInt64, 100, 1000); !ok || v != math.MaxInt64/10 {
		t.Fatalf("got %d, %v", v, ok)
	}
	// quotient overflows int64
	if _, ok := MulDivFloor(math.MaxInt64, 1000, 10); ok {
		t.Fatal("expected overflow")
	}
	if _, ok := MulDivFloor(1, 1, 0); ok {
		t.Fatal("zero denominator must fail")
	}
}
