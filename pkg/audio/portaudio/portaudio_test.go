package portaudio

import "testing"

func TestSampleConversionRoundTrip(t *testing.T) {
	t.Parallel()
	in := []int16{0, 1, -1, 32767, -32768, 1234}
	got := bytesToInt16(int16ToBytes(in))
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], in[i])
		}
	}
	if n := len(bytesToInt16([]byte{1, 2, 3})); n != 1 {
		t.Errorf("odd byte input produced %d samples, want 1", n)
	}
}
