package stream

import "testing"

func TestBasicPushPopClose(t *testing.T) {
	w, r := New(4)

	if n := w.Push([]byte("hello")); n != 4 {
		t.Fatalf("Push = %d, want 4 (clipped to capacity)", n)
	}
	if got := string(r.Peek()); got != "hell" {
		t.Fatalf("buffered = %q, want %q", got, "hell")
	}
	if got := w.BytesPushed(); got != 4 {
		t.Fatalf("pushed = %d, want 4", got)
	}

	if n := r.Pop(2); n != 2 {
		t.Fatalf("Pop = %d, want 2", n)
	}
	if got := string(r.Peek()); got != "ll" {
		t.Fatalf("buffered after pop = %q, want %q", got, "ll")
	}
	if got := w.AvailableCapacity(); got != 2 {
		t.Fatalf("available capacity = %d, want 2", got)
	}

	if n := w.Push([]byte("o")); n != 1 {
		t.Fatalf("Push = %d, want 1", n)
	}
	if got := string(r.Peek()); got != "llo" {
		t.Fatalf("buffered = %q, want %q", got, "llo")
	}
	if got := w.BytesPushed(); got != 5 {
		t.Fatalf("pushed = %d, want 5", got)
	}

	w.Close()
	if r.IsFinished() {
		t.Fatalf("stream should not be finished while bytes remain buffered")
	}
	r.Pop(3)
	if !r.IsFinished() {
		t.Fatalf("stream should be finished once closed and fully drained")
	}
}

func TestPushNoOpAfterClose(t *testing.T) {
	w, _ := New(8)
	w.Close()
	if n := w.Push([]byte("x")); n != 0 {
		t.Fatalf("Push after close = %d, want 0", n)
	}
}

func TestPushNoOpAfterError(t *testing.T) {
	w, r := New(8)
	w.SetError()
	if n := w.Push([]byte("x")); n != 0 {
		t.Fatalf("Push after error = %d, want 0", n)
	}
	if !r.HasError() {
		t.Fatalf("error flag should be visible from the Reader side")
	}
}

func TestInvariantBufferedEqualsPushedMinusPopped(t *testing.T) {
	w, r := New(16)
	w.Push([]byte("0123456789"))
	r.Pop(3)
	w.Push([]byte("ab"))
	r.Pop(100) // over-pop clips to buffered

	pushed := w.BytesPushed()
	popped := r.BytesPopped()
	buffered := r.BytesBuffered()
	if buffered != int(pushed-popped) {
		t.Fatalf("buffered(%d) != pushed(%d) - popped(%d)", buffered, pushed, popped)
	}
	if buffered > 16 {
		t.Fatalf("buffered(%d) exceeds capacity(16)", buffered)
	}
}

func TestErrorIsSticky(t *testing.T) {
	w, r := New(4)
	r.SetError()
	if !w.HasError() {
		t.Fatalf("error set from Reader must be visible from Writer")
	}
	r.SetError() // setting again must not panic or toggle anything off
	if !w.HasError() {
		t.Fatalf("error flag must remain set")
	}
}
