package geom

import "testing"

func TestRectContains(t *testing.T) {
	r := R(10, 10, 100, 50)
	if !r.Contains(Pt{10, 10}) || !r.Contains(Pt{110, 60}) || !r.Contains(Pt{50, 30}) {
		t.Fatalf("expected points inside %v", r)
	}
	if r.Contains(Pt{9.9, 10}) || r.Contains(Pt{50, 60.1}) {
		t.Fatalf("expected points outside %v", r)
	}
}

func TestRectUnion(t *testing.T) {
	a := R(0, 0, 10, 10)
	b := R(5, 5, 20, 2)
	u := a.Union(b)
	if u != (Rect{0, 0, 25, 10}) {
		t.Fatalf("union = %v", u)
	}
}

func TestRectScale(t *testing.T) {
	r := R(10, 20, 30, 40).Scale(2)
	if r != (Rect{20, 40, 60, 80}) {
		t.Fatalf("scaled = %v", r)
	}
}

func TestAnchored(t *testing.T) {
	center := Anchored(Pt{100, 100}, Size{40, 20}, 0.5, 0.5)
	if center != (Rect{80, 90, 40, 20}) {
		t.Fatalf("center anchored = %v", center)
	}
	topLeft := Anchored(Pt{100, 100}, Size{40, 20}, 0, 0)
	if topLeft != (Rect{100, 100, 40, 20}) {
		t.Fatalf("top-left anchored = %v", topLeft)
	}
}

func TestInsetCenterUnchanged(t *testing.T) {
	r := R(0, 0, 100, 100)
	in := r.Inset(10, 10)
	if in.Center() != r.Center() {
		t.Fatalf("inset moved center: %v vs %v", in.Center(), r.Center())
	}
	if in.W != 80 || in.H != 80 {
		t.Fatalf("inset size = %vx%v", in.W, in.H)
	}
}
