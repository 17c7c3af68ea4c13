package utils

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeWriteFile_CreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "out.csv")
	if err := SafeWriteFile(path, []byte("x,y\n")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "x,y\n" {
		t.Fatalf("content = %q, %v", b, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestSafeWrite_FailureKeepsOldFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.txt")
	if err := SafeWriteFile(path, []byte("old")); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err := SafeWrite(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "old" {
		t.Fatalf("content = %q, want old", b)
	}
}

func TestIsWithin(t *testing.T) {
	cases := []struct {
		dir, path string
		want      bool
	}{
		{"data", "data/x/original.csv", true},
		{"data", "data", false},
		{"data", "other/x.csv", false},
		{"data", "data/../etc/passwd", false},
	}
	for _, c := range cases {
		if got := IsWithin(c.dir, c.path); got != c.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", c.dir, c.path, got, c.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"sales.csv":             "sales.csv",
		`C:\Users\me\sales.csv`: "sales.csv",
		"../../etc/passwd":      "passwd",
		"  ":                    "upload.csv",
	}
	for in, want := range cases {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := PrettyJSON(map[string]any{"a": "<b>"})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), "{\n  \"a\": \"<b>\"\n}"; got != want {
		t.Fatalf("PrettyJSON = %q, want %q", got, want)
	}
}
