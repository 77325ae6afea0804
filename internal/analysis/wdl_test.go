package analysis

import (
	"math"
	"testing"
)

var allModels = []Model{ModelSF16, ModelSF15, ModelLichess}

func TestWDL_SumsToOneAndSymmetric(t *testing.T) {
	for _, m := range allModels {
		for cp := -12000; cp <= 12000; cp += 37 {
			tr := m.WDL(cp, DefaultPly)
			if math.Abs(tr.Win+tr.Draw+tr.Loss-1) > 1e-9 {
				t.Fatalf("%s cp=%d: triple %+v does not sum to 1", m, cp, tr)
			}
			if tr.Win < 0 || tr.Draw < 0 || tr.Loss < 0 {
				t.Fatalf("%s cp=%d: negative probability %+v", m, cp, tr)
			}
			mirror := m.WDL(-cp, DefaultPly)
			if tr.Win != mirror.Loss || tr.Loss != mirror.Win {
				t.Fatalf("%s cp=%d: not symmetric %+v vs %+v", m, cp, tr, mirror)
			}
			w, b := tr.Expected()
			if math.Abs(w+b-1) > 1e-9 {
				t.Fatalf("%s cp=%d: expected scores %v+%v != 1", m, cp, w, b)
			}
		}
	}
}

func TestWDL_Monotonic(t *testing.T) {
	for _, m := range allModels {
		prev := m.WDL(-20000, DefaultPly)
		for cp := -19990; cp <= 20000; cp += 10 {
			cur := m.WDL(cp, DefaultPly)
			if cur.Win < prev.Win || cur.Loss > prev.Loss {
				t.Fatalf("%s not monotonic at cp=%d: %+v after %+v", m, cp, cur, prev)
			}
			prev = cur
		}
	}
}

func TestWDL_EvenPositionIsHalf(t *testing.T) {
	for _, m := range allModels {
		w, b := m.Expected(0, DefaultPly)
		if math.Abs(w-0.5) > 1e-9 || math.Abs(b-0.5) > 1e-9 {
			t.Fatalf("%s: expected 0.5/0.5 at cp=0, got %v/%v", m, w, b)
		}
	}
}

func TestWDL_MateSaturates(t *testing.T) {
	for _, m := range allModels {
		win := m.WDL(Centipawns(MatePawns), DefaultPly)
		loss := m.WDL(Centipawns(-MatePawns), DefaultPly)
		for _, tr := range []Triple{win, loss} {
			for _, p := range []float64{tr.Win, tr.Draw, tr.Loss} {
				if math.IsNaN(p) || math.IsInf(p, 0) {
					t.Fatalf("%s: non-finite probability in %+v", m, tr)
				}
			}
		}
		if win.Win < 0.999 {
			t.Fatalf("%s: mate for White should be decisive, got %+v", m, win)
		}
		if loss.Loss < 0.999 {
			t.Fatalf("%s: mate for Black should be decisive, got %+v", m, loss)
		}
	}
}

func TestWDL_SF16KnownValues(t *testing.T) {
	// A normalized +1.00 is calibrated to roughly a coin flip between win and draw.
	cases := []struct {
		cp        int
		win, loss float64
	}{
		{0, 0.018, 0.018},
		{20, 0.039, 0.008},
		{100, 0.515, 0},
		{-280, 0, 0.999},
	}
	for _, c := range cases {
		tr := ModelSF16.WDL(c.cp, DefaultPly)
		if math.Abs(tr.Win-c.win) > 1e-9 || math.Abs(tr.Loss-c.loss) > 1e-9 {
			t.Fatalf("sf16.1 cp=%d: got %+v, want win=%v loss=%v", c.cp, tr, c.win, c.loss)
		}
	}
}

func TestParseModel(t *testing.T) {
	for in, want := range map[string]Model{"": ModelSF16, "SF16.1": ModelSF16, "sf15": ModelSF15, " lichess ": ModelLichess} {
		got, err := ParseModel(in)
		if err != nil || got != want {
			t.Fatalf("ParseModel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseModel("elo"); err == nil {
		t.Fatalf("expected error for unknown model")
	}
}
