package wsledger

import (
	"errors"
	"testing"

	"slidebounty.ai/internal/ledger"
	"slidebounty.ai/internal/protocol"
)

func TestRemoteError_Unwrap(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{protocol.ErrWrongNetwork, ledger.ErrWrongNetwork},
		{protocol.ErrBusy, ledger.ErrBusy},
	}
	for _, c := range cases {
		err := error(&RemoteError{Code: c.code, Message: "x"})
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: errors.Is(%v) = false", c.code, c.want)
		}
	}

	busy := error(&RemoteError{Code: protocol.ErrBusy})
	if errors.Is(busy, ledger.ErrClosed) {
		t.Fatalf("busy gateway reported as closed client")
	}
	if errors.Unwrap(&RemoteError{Code: protocol.ErrInternal}) != nil {
		t.Fatalf("unmapped code should not unwrap")
	}
}
