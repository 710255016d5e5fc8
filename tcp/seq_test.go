package tcp

import "testing"

func TestIsBetweenWrappedExclusiveEndpoints(t *testing.T) {
	const a Value = 1000
	if IsBetweenWrapped(a, a, a+100) {
		t.Fatal("IsBetweenWrapped(a, a, b) must be false: start is exclusive")
	}
	if IsBetweenWrapped(a, a+100, a+100) {
		t.Fatal("IsBetweenWrapped(a, b, b) must be false: end is exclusive")
	}
	if !IsBetweenWrapped(a, a+1, a+100) {
		t.Fatal("a+1 should lie strictly between a and a+100")
	}
}

func TestIsBetweenWrappedAcrossWraparound(t *testing.T) {
	const start Value = 0xFFFFFFF0
	const end Value = 0x10
	tests := []struct {
		x    Value
		want bool
	}{
		{0xFFFFFFF5, true},
		{0x5, true},
		{start, false},
		{end, false},
		{0x20, false},
		{0xFFFFFF00, false},
	}
	for _, tt := range tests {
		got := IsBetweenWrapped(start, tt.x, end)
		if got != tt.want {
			t.Errorf("IsBetweenWrapped(%#x, %#x, %#x) = %v, want %v", start, tt.x, end, got, tt.want)
		}
	}
}

func TestIsValidAck(t *testing.T) {
	const una, nxt Value = 100, 200
	tests := []struct {
		ack  Value
		want bool
	}{
		{99, false},  // at or before una
		{100, false}, // acks nothing new
		{101, true},
		{200, true}, // acks everything sent so far
		{201, false}, // acks data never sent
	}
	for _, tt := range tests {
		got := IsValidAck(una, tt.ack, nxt)
		if got != tt.want {
			t.Errorf("IsValidAck(%d, %d, %d) = %v, want %v", una, tt.ack, nxt, got, tt.want)
		}
	}
}

func TestIsAcceptableSegmentEmptySegmentZeroWindow(t *testing.T) {
	const rcvNxt Value = 500
	if !IsAcceptableSegment(rcvNxt, rcvNxt, 0, 0) {
		t.Fatal("an empty segment exactly at rcv.nxt must be acceptable even with a zero window")
	}
	if IsAcceptableSegment(rcvNxt, rcvNxt+1, 0, 0) {
		t.Fatal("an empty segment off rcv.nxt must be rejected when the window is zero")
	}
}

func TestIsAcceptableSegmentEmptySegmentOpenWindow(t *testing.T) {
	const rcvNxt Value = 500
	const wnd Size = 100
	if !IsAcceptableSegment(rcvNxt, rcvNxt, 0, wnd) {
		t.Fatal("an empty segment at rcv.nxt must be acceptable with an open window")
	}
	if !IsAcceptableSegment(rcvNxt, rcvNxt+50, 0, wnd) {
		t.Fatal("an empty segment inside the window must be acceptable")
	}
	if IsAcceptableSegment(rcvNxt, rcvNxt+Value(wnd)+1, 0, wnd) {
		t.Fatal("an empty segment past the window must be rejected")
	}
}

func TestIsAcceptableSegmentNonEmptyZeroWindow(t *testing.T) {
	if IsAcceptableSegment(500, 500, 10, 0) {
		t.Fatal("a non-empty segment must never be acceptable when rcv.wnd is zero")
	}
}

func TestIsAcceptableSegmentNonEmptyOpenWindow(t *testing.T) {
	const rcvNxt Value = 1000
	const wnd Size = 50
	tests := []struct {
		name        string
		seq, segLen Value
		want        bool
	}{
		{"starts-in-window", rcvNxt, 10, true},
		{"starts-before-ends-in-window", rcvNxt - 5, 10, true},
		{"entirely-past-window", rcvNxt + Value(wnd) + 10, 5, false},
		{"entirely-before-window", rcvNxt - 100, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsAcceptableSegment(rcvNxt, tt.seq, Size(tt.segLen), wnd)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueAddWrapsAt32Bits(t *testing.T) {
	const v Value = 0xFFFFFFFE
	if got := Add(v, 3); got != 1 {
		t.Fatalf("Add(0xFFFFFFFE, 3) = %#x, want 1", got)
	}
}

func TestValueUpdateForward(t *testing.T) {
	v := Value(10)
	v.UpdateForward(5)
	if v != 15 {
		t.Fatalf("UpdateForward: got %d, want 15", v)
	}
}

func TestSizeof(t *testing.T) {
	if got := Sizeof(100, 150); got != 50 {
		t.Fatalf("Sizeof(100, 150) = %d, want 50", got)
	}
	// Wraps the same way as subtraction on the sequence circle.
	if got := Sizeof(0xFFFFFFFE, 2); got != 4 {
		t.Fatalf("Sizeof across wraparound = %d, want 4", got)
	}
}
