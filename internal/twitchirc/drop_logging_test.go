package twitchirc

import "testing"

func TestSummarizeIRC(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		command string
		channel string
		sample  string
	}{
		{
			name:    "ping keeps trailing",
			raw:     "PING :tmi.twitch.tv",
			command: "PING",
			sample:  "tmi.twitch.tv",
		},
		{
			name:    "roomstate includes channel and sample",
			raw:     "@emote-only=0;followers-only=-1;room-id=123 :tmi.twitch.tv ROOMSTATE #chan",
			command: "ROOMSTATE",
			channel: "#chan",
			sample:  "#chan",
		},
		{
			name:    "notice trailing text",
			raw:     "@msg-id=msg_channel_suspended :tmi.twitch.tv NOTICE #chan :This channel has been suspended.",
			command: "NOTICE",
			channel: "#chan",
			sample:  "This channel has been suspended.",
		},
		{
			name:    "usernotice prefers msg-id tag",
			raw:     "@badge-info=subscriber/6;msg-id=resub :tmi.twitch.tv USERNOTICE #chan :great stream",
			command: "USERNOTICE",
			channel: "#chan",
			sample:  "msg-id=resub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := summarizeIRC(tt.raw)
			if got.command != tt.command {
				t.Fatalf("command mismatch: want %q got %q", tt.command, got.command)
			}
			if got.channel != tt.channel {
				t.Fatalf("channel mismatch: want %q got %q", tt.channel, got.channel)
			}
			if got.sample != tt.sample {
				t.Fatalf("sample mismatch: want %q got %q", tt.sample, got.sample)
			}
		})
	}
}

func TestTruncateCollapsesWhitespace(t *testing.T) {
	got := truncate("  a\r\nb   c  ", 100)
	if got != "a b c" {
		t.Fatalf("expected collapsed whitespace, got %q", got)
	}
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("expected ellipsis truncation, got %q", got)
	}
}
