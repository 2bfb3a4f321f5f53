package gpio

import (
	"errors"
	"testing"
)

var _ Reader = (*FakeReader)(nil)

func TestFakeReaderReadTilt(t *testing.T) {
	f := NewFakeReader([]bool{true, false, true}, nil)

	want := []bool{true, false, true, true}
	for i, w := range want {
		got, err := f.ReadTilt()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestFakeReaderScriptsAreIndependent(t *testing.T) {
	f := NewFakeReader([]bool{true, false}, []bool{false, true})

	if v, _ := f.ReadTilt(); v != true {
		t.Errorf("tilt 0: expected true")
	}
	if v, _ := f.ReadDark(); v != false {
		t.Errorf("dark 0: expected false")
	}
	if v, _ := f.ReadDark(); v != true {
		t.Errorf("dark 1: expected true")
	}
	if v, _ := f.ReadTilt(); v != false {
		t.Errorf("tilt 1: expected false")
	}

	tilt, dark := f.Reads()
	if tilt != 2 || dark != 2 {
		t.Errorf("reads: expected (2, 2), got (%d, %d)", tilt, dark)
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader(nil, nil)

	if _, err := f.ReadTilt(); err == nil {
		t.Error("expected error with no tilt samples")
	}
	if _, err := f.ReadDark(); err == nil {
		t.Error("expected error with no light samples")
	}
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader([]bool{true}, []bool{true})
	f.SetReadError(errors.New("simulated error"))

	_, err := f.ReadTilt()
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}

	f.SetReadError(nil)
	if _, err := f.ReadDark(); err != nil {
		t.Errorf("unexpected error after clearing: %v", err)
	}
}

func TestFakeReaderSetTilt(t *testing.T) {
	f := NewFakeReader([]bool{true, true, true}, nil)
	f.ReadTilt()
	f.SetTilt(false)

	for i := 0; i < 3; i++ {
		if v, _ := f.ReadTilt(); v {
			t.Errorf("read %d: expected steady false", i)
		}
	}
}

func TestFakeReaderFire(t *testing.T) {
	f := NewFakeReader([]bool{true}, nil)

	if f.Fire() {
		t.Error("Fire should report false without a handler")
	}

	calls := 0
	f.OnEdge(func() { calls++ })
	if !f.Fire() {
		t.Error("Fire should report true with a handler")
	}
	f.Fire()
	if calls != 2 {
		t.Errorf("expected 2 handler calls, got %d", calls)
	}

	f.OnEdge(nil)
	if f.Fire() {
		t.Error("Fire should report false after handler removed")
	}
}

func TestFakeReaderClose(t *testing.T) {
	f := NewFakeReader([]bool{true}, nil)

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeReaderReset(t *testing.T) {
	f := NewFakeReader([]bool{true, false}, nil)

	f.ReadTilt()
	f.Reset()

	if v, _ := f.ReadTilt(); v != true {
		t.Errorf("after reset: expected true, got %v", v)
	}
}
