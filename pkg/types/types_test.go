package types

import "testing"

func TestMakeKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		stored, input string
		same          bool
	}{
		{"Alice", "alice", true},
		{"Alice", "  ALICE ", true},
		{"Alice ", "Alice", true},
		{"Alice", "Alicia", false},
	}
	for _, tt := range tests {
		stored := SavedEntry{EnglishName: tt.stored, LocalizedName: "하린"}.Key()
		got := stored == MakeKey(tt.input, "하린")
		if got != tt.same {
			t.Errorf("key(%q) == MakeKey(%q): got %v, want %v", tt.stored, tt.input, got, tt.same)
		}
	}
	if MakeKey("Alice", "하린") == MakeKey("Alice", "아린") {
		t.Error("keys with different localized names compare equal")
	}
}
