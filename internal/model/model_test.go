package model

import "testing"

func TestNewPage(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		total    int
		wantLast int
		wantPrev bool
		wantNext bool
	}{
		{"empty listing has one page", 1, 0, 1, false, false},
		{"exactly one full page", 1, 8, 1, false, false},
		{"one over a page boundary", 1, 9, 2, false, true},
		{"middle page", 2, 20, 3, true, true},
		{"last page", 3, 20, 3, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage([]Todo{}, tt.page, 8, tt.total)
			if p.LastPage != tt.wantLast {
				t.Errorf("LastPage = %d, want %d", p.LastPage, tt.wantLast)
			}
			if p.HasPrev() != tt.wantPrev {
				t.Errorf("HasPrev() = %v, want %v", p.HasPrev(), tt.wantPrev)
			}
			if p.HasNext() != tt.wantNext {
				t.Errorf("HasNext() = %v, want %v", p.HasNext(), tt.wantNext)
			}
		})
	}
}

func TestHasCustomAvatar(t *testing.T) {
	if (&User{AvatarRef: DefaultAvatar}).HasCustomAvatar() {
		t.Error("placeholder avatar reported as custom")
	}
	if !(&User{AvatarRef: "cv37rs3pp9olc6atsptg.png"}).HasCustomAvatar() {
		t.Error("uploaded avatar not reported as custom")
	}
}
