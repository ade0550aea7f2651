package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"pbk-go/internal/pbk"
)

func TestConfirm_AutoYes(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader(""), &out, true)

	ok, err := p.Confirm("proceed?")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected auto-yes to confirm")
	}
	if out.Len() != 0 {
		t.Errorf("auto-yes should not print a prompt, got %q", out.String())
	}
}

func TestConfirm_UserInput(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"y", true},
		{"No\n", false},
		{"\n", false},
		{"", false},
	}
	for _, c := range cases {
		var out bytes.Buffer
		p := New(strings.NewReader(c.in), &out, false)

		got, err := p.Confirm("apply changes?")
		if err != nil {
			t.Fatalf("input %q: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("input %q: got %v want %v", c.in, got, c.want)
		}
		if !strings.Contains(out.String(), "apply changes? [y/N]") {
			t.Errorf("prompt missing question; got %q", out.String())
		}
	}
}

func TestConfirm_SequentialQuestions(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("y\nn\n"), &out, false)
	confirm := p.Confirmer()

	first, err := confirm("first?")
	if err != nil || !first {
		t.Fatalf("first answer = %v, %v; want true", first, err)
	}
	second, err := confirm("second?")
	if err != nil || second {
		t.Fatalf("second answer = %v, %v; want false", second, err)
	}
}

func TestChoose(t *testing.T) {
	items := []string{"db_20240115_103000.db", "db_20240114_103000.db"}

	t.Run("valid choice", func(t *testing.T) {
		var out bytes.Buffer
		p := New(strings.NewReader("2\n"), &out, false)

		idx, err := p.Choose("Snapshots:", items)
		if err != nil {
			t.Fatalf("Choose() error = %v", err)
		}
		if idx != 1 {
			t.Errorf("Choose() = %d, want 1", idx)
		}
		if !strings.Contains(out.String(), "1. db_20240115_103000.db") {
			t.Errorf("list not printed; got %q", out.String())
		}
	})

	t.Run("retries invalid input", func(t *testing.T) {
		var out bytes.Buffer
		p := New(strings.NewReader("abc\n7\n1\n"), &out, false)

		idx, err := p.Choose("Snapshots:", items)
		if err != nil {
			t.Fatalf("Choose() error = %v", err)
		}
		if idx != 0 {
			t.Errorf("Choose() = %d, want 0", idx)
		}
		if strings.Count(out.String(), "Invalid choice") != 2 {
			t.Errorf("expected two invalid-choice messages; got %q", out.String())
		}
	})

	t.Run("q cancels", func(t *testing.T) {
		p := New(strings.NewReader("q\n"), &bytes.Buffer{}, false)

		if _, err := p.Choose("Snapshots:", items); !errors.Is(err, pbk.ErrCancelled) {
			t.Errorf("Choose() error = %v, want ErrCancelled", err)
		}
	})

	t.Run("end of input cancels", func(t *testing.T) {
		p := New(strings.NewReader(""), &bytes.Buffer{}, false)

		if _, err := p.Choose("Snapshots:", items); !errors.Is(err, pbk.ErrCancelled) {
			t.Errorf("Choose() error = %v, want ErrCancelled", err)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		p := New(strings.NewReader("1\n"), &bytes.Buffer{}, false)

		if _, err := p.Choose("Snapshots:", nil); err == nil {
			t.Error("Choose() expected error for empty list")
		}
	})
}

func TestPassphrase_NonTerminal(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("secret phrase\n"), &out, false)

	if p.IsTerminal() {
		t.Fatal("strings.Reader reported as terminal")
	}

	got, err := p.Passphrase("Passphrase")
	if err != nil {
		t.Fatalf("Passphrase() error = %v", err)
	}
	if got != "secret phrase" {
		t.Errorf("Passphrase() = %q", got)
	}
}

func TestNewPassphrase(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "matching", in: "abc\nabc\n", want: "abc"},
		{name: "mismatch", in: "abc\nabd\n", wantErr: true},
		{name: "empty", in: "\n\n", wantErr: true},
		{name: "missing repeat", in: "abc\n", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := New(strings.NewReader(tt.in), &bytes.Buffer{}, false)

			got, err := p.NewPassphrase()
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPassphrase() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NewPassphrase() = %q, want %q", got, tt.want)
			}
		})
	}
}
