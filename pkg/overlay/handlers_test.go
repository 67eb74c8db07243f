package overlay

import (
	"testing"

	"github.com/visionkit/go-facepipe/pkg/geometry"
)

func TestHandleClientMessage_Viewport(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		want     geometry.Size
		expected bool
	}{
		{
			name:     "valid resize",
			payload:  `{"type":"viewport","width":390,"height":844}`,
			want:     geometry.Size{Width: 390, Height: 844},
			expected: true,
		},
		{
			name:     "zero dimensions ignored",
			payload:  `{"type":"viewport","width":0,"height":844}`,
			expected: false,
		},
		{
			name:     "negative dimensions ignored",
			payload:  `{"type":"viewport","width":-1,"height":844}`,
			expected: false,
		},
		{
			name:     "unknown type ignored",
			payload:  `{"type":"ping"}`,
			expected: false,
		},
		{
			name:     "malformed json ignored",
			payload:  `{"type":`,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer("0")
			var got geometry.Size
			called := false
			s.OnViewportResize = func(w, h float64) {
				called = true
				got = geometry.Size{Width: w, Height: h}
			}

			s.handleClientMessage([]byte(tt.payload))

			if called != tt.expected {
				t.Fatalf("callback invoked = %v, want %v", called, tt.expected)
			}
			if called && got != tt.want {
				t.Errorf("viewport = %+v, want %+v", got, tt.want)
			}
		})
	}
}
