package layout

import (
	"math"
	"testing"
)

// TestPtMmRoundTrip 验证 pt↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPtMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 72, 96, 144, 1000}
	for _, pt := range samples {
		back := Length{Value: pt, Unit: UnitPT}.ToMM() * MmToPt
		if diff := math.Abs(back - pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt back=%g diff=%g", pt, back, diff)
		}
	}
	for _, mm := range samples {
		back := Length{Value: mm, Unit: UnitMM}.ToPT() * PtToMm
		if diff := math.Abs(back - mm); diff > 1e-9 {
			t.Fatalf("mm→pt→mm 往返误差过大: in=%gmm back=%g diff=%g", mm, back, diff)
		}
	}
}

func TestParseLength(t *testing.T) {
	cases := map[string]float64{
		"20mm":  20,
		"2.5cm": 25,
		"1in":   25.4,
		"12pt":  12 * PtToMm,
		"7":     7,
		"":      0,
		"wide":  0,
	}
	for in, want := range cases {
		if got := ParseLength(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("ParseLength(%q) 期望 %g，实际 %g", in, want, got)
		}
	}
	if got := ParseDimension("50%", 170); math.Abs(got-85) > 1e-9 {
		t.Fatalf("50%% of 170 期望 85，实际 %g", got)
	}
}

// TestLineHeightResolve 验证行高解析：倍数与绝对值两种语义在 mm 下的结果。
func TestLineHeightResolve(t *testing.T) {
	size := 12 * PtToMm
	lh, ok := ParseLineHeight("1.2x")
	if !ok {
		t.Fatal("1.2x 解析失败")
	}
	if got, want := lh.ResolveMM(size), size*1.2; math.Abs(got-want) > 1e-9 {
		t.Fatalf("1.2x 解析为 mm 错误: got=%g want=%g", got, want)
	}
	lh, ok = ParseLineHeight("18pt")
	if !ok {
		t.Fatal("18pt 解析失败")
	}
	if got, want := lh.ResolveMM(size), 18*PtToMm; math.Abs(got-want) > 1e-9 {
		t.Fatalf("18pt 行高解析为 mm 错误: got=%g want=%g", got, want)
	}
	if _, ok := ParseLineHeight("-1x"); ok {
		t.Fatal("负倍数应当被拒绝")
	}
}
