package main

import "testing"

func TestNativeCaller(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantOrigin string
		wantNative bool
	}{
		{"no args", nil, "", false},
		{"chrome", []string{"chrome-extension://abcdef/"}, "chrome-extension://abcdef/", true},
		{"chrome on windows", []string{"chrome-extension://abcdef/", "--parent-window=0"}, "chrome-extension://abcdef/", true},
		{"firefox", []string{`C:\Users\me\whispering.json`, "whispering@example.org"}, "", true},
		{"firefox unix", []string{"/usr/lib/mozilla/native-messaging-hosts/whispering.JSON", "whispering@example.org"}, "", true},
		{"manifest path alone", []string{"whispering.json"}, "", false},
		{"stray argument", []string{"meeting.wav", "extra"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin, native := nativeCaller(tt.args)
			if origin != tt.wantOrigin || native != tt.wantNative {
				t.Fatalf("nativeCaller(%q) = %q, %v; want %q, %v", tt.args, origin, native, tt.wantOrigin, tt.wantNative)
			}
		})
	}
}
