package ledger

import (
	"errors"
	"testing"
)

func TestSameIdentity(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"0xAbC", "0xabc", true},
		{" 0xabc ", "0xABC", true},
		{"0xabc", "0xabd", false},
		{"", "", false},
		{"0xabc", "", false},
	}
	for _, c := range cases {
		if got := SameIdentity(c.a, c.b); got != c.want {
			t.Fatalf("SameIdentity(%q,%q)=%v want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestParseAndFormatUnits(t *testing.T) {
	v, err := ParseUnits("1.5", 18)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.Dec() != "1500000000000000000" {
		t.Fatalf("dec=%s", v.Dec())
	}
	if got := FormatUnits(v, 18, 4); got != "1.5000" {
		t.Fatalf("format=%s", got)
	}
	small, _ := ParseAmount("1000000000000000")
	if got := FormatUnits(small, 18, 4); got != "0.0010" {
		t.Fatalf("format small=%s", got)
	}
	zero, err := ParseUnits("0", 18)
	if err != nil || !zero.IsZero() {
		t.Fatalf("zero parse: %v %s", err, zero.Dec())
	}
	if _, err := ParseUnits("0.0000000000000000001", 18); err == nil {
		t.Fatalf("expected too-many-decimals error")
	}
	if _, err := ParseAmount("12x"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestErrorWrapping(t *testing.T) {
	base := errors.New("boom")
	err := WrapRead(QueryBalance, base)
	var re *ReadError
	if !errors.As(err, &re) || re.Query != QueryBalance || !errors.Is(err, base) {
		t.Fatalf("read wrap mismatch: %v", err)
	}
	if WrapRead(QueryClaimed, err) != err {
		t.Fatalf("double wrap should keep original ReadError")
	}

	werr := WrapWrite(OpPayoutLast, Reverted(OpPayoutLast, "0x1", ReasonCooldown))
	var we *WriteError
	if !errors.As(werr, &we) || we.Reason != ReasonCooldown || we.TxHash != "0x1" {
		t.Fatalf("write wrap mismatch: %v", werr)
	}
	if werr.Error() != "ledger write payoutLast tx=0x1: Cooldown active" {
		t.Fatalf("message=%q", werr.Error())
	}
}

func TestReasonCodeRoundTrip(t *testing.T) {
	for _, r := range []string{
		ReasonInsufficientBalance,
		ReasonNotLastUser,
		ReasonCooldown,
		ReasonNoReward,
		ReasonGameFinished,
		ReasonNotOwner,
	} {
		code := ReasonCode(r)
		if code == "" {
			t.Fatalf("no code for %q", r)
		}
		if back := ReasonForCode(code); back != r {
			t.Fatalf("ReasonForCode(%s)=%q want %q", code, back, r)
		}
	}
	if ReasonCode("") != "" {
		t.Fatalf("empty reason should have no code")
	}
	if ReasonCode("execution reverted") == "" {
		t.Fatalf("unknown reason should map to a fallback code")
	}
}

func TestIsAddress(t *testing.T) {
	for s, want := range map[string]bool{
		"0xAbc": true,
		"0xc6d3bba40408ad9a706fde69716c1adbdb7aea75": true,
		"0x":   false,
		"abc":  false,
		"0xg1": false,
		"0x00000000000000000000000000000000000000001": false,
	} {
		if got := IsAddress(s); got != want {
			t.Fatalf("IsAddress(%q)=%v want %v", s, got, want)
		}
	}
}
