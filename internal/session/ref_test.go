package session

import (
	"strings"
	"testing"
)

func TestSessionRefs(t *testing.T) {
	a, b := NewSessionRef(), NewSessionRef()
	if a == b {
		t.Fatal("refs collide")
	}
	url := JoinURL(a)
	if !strings.HasPrefix(url, "cardmesh://join/") {
		t.Fatalf("join url = %q", url)
	}

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: a, want: a},
		{in: url, want: a},
		{in: "  " + url + "\n", want: a},
		{in: strings.ToUpper(a), want: a},
		{in: "cardmesh://join/", wantErr: true},
		{in: "not-a-ref", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRef(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRef(%q) = %q, %v", tt.in, got, err)
		}
	}
}
