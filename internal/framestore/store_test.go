package framestore_test

import (
	"errors"
	"image"
	"math"
	"sync"
	"testing"

	"imageseq/internal/framestore"
)

type stubDecoder struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newStubDecoder(fail ...string) *stubDecoder {
	d := &stubDecoder{calls: make(map[string]int), fail: make(map[string]bool)}
	for _, p := range fail {
		d.fail[p] = true
	}
	return d
}

func (d *stubDecoder) Decode(path string) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[path]++
	if d.fail[path] {
		return nil, errors.New("corrupt")
	}
	return image.NewGray(image.Rect(0, 0, 2, 2)), nil
}

type stubUploader struct {
	calls  int
	filter framestore.Filter
}

func (u *stubUploader) Upload(_ image.Image, f framestore.Filter) (framestore.Handle, error) {
	u.calls++
	u.filter = f
	return u.calls, nil
}

func TestBindSameIndexUploadsOnce(t *testing.T) {
	up := &stubUploader{}
	s := framestore.New(newStubDecoder(), up, nil)
	s.Append("a", "a.png", nil)
	s.Append("b", "b.png", nil)
	s.SetFilter(framestore.Filter{Min: 1, Mag: 2})

	for i := 0; i < 3; i++ {
		if err := s.Bind(1); err != nil {
			t.Fatalf("Bind: %v", err)
		}
	}
	if up.calls != 1 {
		t.Fatalf("expected one upload, got %d", up.calls)
	}
	if s.LastBound() != 1 || s.Handle() != 1 {
		t.Fatalf("unexpected binding %d/%v", s.LastBound(), s.Handle())
	}
	if up.filter != (framestore.Filter{Min: 1, Mag: 2}) || s.Filter() != up.filter {
		t.Fatalf("filter not passed through: %+v", up.filter)
	}
}

func TestLoadFailureIsSticky(t *testing.T) {
	dec := newStubDecoder("bad.png")
	s := framestore.New(dec, nil, nil)
	s.Append("good", "good.png", nil)
	s.Append("bad", "bad.png", nil)

	if err := s.Load(1); !errors.Is(err, framestore.ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if err := s.Load(1); !errors.Is(err, framestore.ErrLoadFailed) {
		t.Fatalf("expected sticky failure, got %v", err)
	}
	if dec.calls["bad.png"] != 1 {
		t.Fatalf("failed slot should not be retried, got %d decodes", dec.calls["bad.png"])
	}
	if err := s.Load(0); err != nil {
		t.Fatalf("Load(0): %v", err)
	}
	if err := s.Load(0); err != nil || dec.calls["good.png"] != 1 {
		t.Fatalf("loaded slot should not decode again")
	}
	if s.Usable() != 1 || s.FirstUsable() != 0 {
		t.Fatalf("unexpected usable counts %d/%d", s.Usable(), s.FirstUsable())
	}
}

func TestFailedBindKeepsPreviousBinding(t *testing.T) {
	up := &stubUploader{}
	s := framestore.New(newStubDecoder("bad.png"), up, nil)
	s.Append("good", "good.png", nil)
	s.Append("bad", "bad.png", nil)

	if err := s.Bind(0); err != nil {
		t.Fatalf("Bind(0): %v", err)
	}
	if err := s.Bind(1); !errors.Is(err, framestore.ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if s.LastBound() != 0 || up.calls != 1 {
		t.Fatalf("previous binding should survive, bound=%d uploads=%d", s.LastBound(), up.calls)
	}
}

func TestOutOfRange(t *testing.T) {
	s := framestore.New(newStubDecoder(), nil, nil)
	s.Append("only", "only.png", nil)

	for _, i := range []int{-1, 1, 10} {
		if err := s.Bind(i); !errors.Is(err, framestore.ErrOutOfRange) {
			t.Fatalf("Bind(%d): expected ErrOutOfRange, got %v", i, err)
		}
		if err := s.Load(i); !errors.Is(err, framestore.ErrOutOfRange) {
			t.Fatalf("Load(%d): expected ErrOutOfRange, got %v", i, err)
		}
		if _, err := s.Slot(i); !errors.Is(err, framestore.ErrOutOfRange) {
			t.Fatalf("Slot(%d): expected ErrOutOfRange, got %v", i, err)
		}
	}
	if s.LastBound() != -1 {
		t.Fatal("out of range bind must not change the binding")
	}
}

func TestInMemorySlotsAndReset(t *testing.T) {
	s := framestore.New(nil, nil, nil)
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	if idx := s.Append("000", "", img); idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
	s.Append("001", "", nil)
	s.MarkFailed(1)

	if err := s.Bind(0); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	slots := s.Slots()
	if len(slots) != 2 || !slots[0].Loaded() || !slots[1].Failed {
		t.Fatalf("unexpected slots %+v", slots)
	}

	s.Reset()
	if s.Len() != 0 || s.LastBound() != -1 || s.Handle() != nil || s.FirstUsable() != -1 {
		t.Fatal("Reset should drop slots and binding")
	}
}

func TestIndexAtPercentWraps(t *testing.T) {
	cases := []struct {
		p    float64
		want int
	}{
		{0, 0},
		{0.2, 2},
		{1.2, 2},
		{-0.3, 7},
		{0.999, 9},
		{1, 9},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tc := range cases {
		if got := framestore.IndexAtPercent(tc.p, 10); got != tc.want {
			t.Fatalf("IndexAtPercent(%v) = %d, want %d", tc.p, got, tc.want)
		}
	}
	if framestore.IndexAtPercent(0.5, 0) != 0 {
		t.Fatal("empty length must map to 0")
	}
}

func TestPercentAtIndexIsMonotonic(t *testing.T) {
	last := -1.0
	for p := 0.0; p < 1; p += 0.001 {
		got := framestore.PercentAtIndex(framestore.IndexAtPercent(p, 10), 10)
		if got < last {
			t.Fatalf("not monotonic at p=%v: %v < %v", p, got, last)
		}
		last = got
	}
	if framestore.PercentAtIndex(9, 10) != 1 || framestore.PercentAtIndex(20, 10) != 1 || framestore.PercentAtIndex(-4, 10) != 0 {
		t.Fatal("PercentAtIndex should clamp to [0,1]")
	}
	if framestore.PercentAtIndex(0, 1) != 0 {
		t.Fatal("single frame maps to 0")
	}
}
