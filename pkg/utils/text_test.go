package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("日本語テキスト", 3); got != "日本語..." {
		t.Errorf("multi-byte: got %s", got)
	}
}

func TestShortCommit(t *testing.T) {
	if got := ShortCommit("0123456789abcdef0123"); got != "0123456789ab" {
		t.Errorf("got %s", got)
	}
	if got := ShortCommit("HEAD~1"); got != "HEAD~1" {
		t.Errorf("short refs unchanged, got %s", got)
	}
}
