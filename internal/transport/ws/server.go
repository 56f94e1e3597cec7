package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"slidebounty.ai/internal/ledger"
	plog "slidebounty.ai/internal/persistence/log"
	"slidebounty.ai/internal/protocol"
	"slidebounty.ai/schemas"
)

// Backend hands out ledger clients that sign as identity.
type Backend interface {
	Bind(identity string) ledger.Client
	BlockNumber() uint64
}

// ReceiptWriter records the outcome of every mutation the gateway submits.
type ReceiptWriter interface {
	WriteReceipt(plog.ReceiptEntry) error
}

// Server exposes a Backend over the ledger gateway protocol. Each connection
// acts as the identity it names in HELLO.
type Server struct {
	backend  Backend
	ledgerID string
	log      *log.Logger
	receipts ReceiptWriter

	helloSchema *jsonschema.Schema
	callSchema  *jsonschema.Schema

	readTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewServer(b Backend, ledgerID string, logger *log.Logger) (*Server, error) {
	hello, err := protocol.CompileSchema(schemas.Hello)
	if err != nil {
		return nil, err
	}
	call, err := protocol.CompileSchema(schemas.Call)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		backend:     b,
		ledgerID:    ledgerID,
		log:         logger,
		helloSchema: hello,
		callSchema:  call,
		readTimeout: 10 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s, nil
}

// SetReceiptWriter must be called before serving.
func (s *Server) SetReceiptWriter(w ReceiptWriter) { s.receipts = w }

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		identity, sessionID := s.handshake(conn)
		if identity == "" {
			return
		}
		client := s.backend.Bind(identity)
		s.log.Printf("gateway session=%s identity=%s connected", sessionID, identity)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		out := make(chan []byte, 32)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCall {
				continue
			}
			var call protocol.CallMsg
			if err := json.Unmarshal(msg, &call); err != nil {
				continue
			}
			if err := protocol.ValidateRaw(s.callSchema, msg); err != nil {
				s.send(ctx, out, failure(call.ID, protocol.ErrProtoBadRequest, err.Error()))
				continue
			}
			if call.ProtocolVersion != protocol.Version {
				s.send(ctx, out, failure(call.ID, protocol.ErrProtoBadRequest, "bad protocol_version"))
				continue
			}
			s.dispatch(ctx, out, client, identity, call)
		}
		s.log.Printf("gateway session=%s identity=%s disconnected", sessionID, identity)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (identity, sessionID string) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", ""
	}
	if err := protocol.ValidateRaw(s.helloSchema, msg); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad HELLO"), time.Now().Add(time.Second))
		return "", ""
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", ""
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		Identity:        strings.TrimSpace(hello.Identity),
		LedgerID:        s.ledgerID,
		Block:           s.backend.BlockNumber(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", ""
	}
	return welcome.Identity, welcome.SessionID
}

func (s *Server) dispatch(ctx context.Context, out chan<- []byte, c ledger.Client, identity string, call protocol.CallMsg) {
	subject := strings.TrimSpace(call.Params.Identity)
	if subject == "" {
		subject = identity
	}

	switch call.Method {
	case ledger.OpPerformSlide, ledger.OpPayoutLast, ledger.OpFund:
		s.mutate(ctx, out, c, identity, call)
		return
	}

	rctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()
	v, err := read(rctx, c, call.Method, subject)
	if err != nil {
		s.send(ctx, out, failure(call.ID, codeFor(err), err.Error()))
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.send(ctx, out, failure(call.ID, protocol.ErrInternal, err.Error()))
		return
	}
	s.send(ctx, out, protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              call.ID,
		OK:              true,
		Result:          b,
	})
}

func read(ctx context.Context, c ledger.Client, method, subject string) (any, error) {
	switch method {
	case ledger.QueryCompleted:
		v, err := c.CompletedCount(ctx, subject)
		return protocol.UintValue{Value: uint64(v)}, err
	case ledger.QueryClaimed:
		v, err := c.ClaimedCount(ctx, subject)
		return protocol.UintValue{Value: uint64(v)}, err
	case ledger.QueryBounty:
		v, err := c.BountyAmount(ctx)
		return protocol.StringValue{Value: v.Dec()}, err
	case ledger.QueryBalance:
		v, err := c.Balance(ctx)
		return protocol.StringValue{Value: v.Dec()}, err
	case ledger.QueryNextMilestone:
		m, ok, err := c.NextMilestone(ctx, subject)
		return protocol.MilestoneValue{Milestone: m, Available: ok}, err
	case ledger.QueryFinished:
		v, err := c.Finished(ctx, subject)
		return protocol.BoolValue{Value: v}, err
	case ledger.QueryLastUser:
		v, err := c.LastSubmitter(ctx)
		return protocol.StringValue{Value: v}, err
	case ledger.QueryLastPayoutTime:
		v, err := c.LastPayoutTime(ctx)
		return protocol.UintValue{Value: uint64(v.Unix())}, err
	case ledger.QueryPayoutCooldown:
		v, err := c.PayoutCooldown(ctx)
		return protocol.UintValue{Value: uint64(v / time.Second)}, err
	}
	return nil, fmt.Errorf("unknown method %q", method)
}

// mutate answers with the tx hash right away and pushes a RECEIPT once the
// mutation settles, even if the caller has gone quiet in between.
func (s *Server) mutate(ctx context.Context, out chan<- []byte, c ledger.Client, identity string, call protocol.CallMsg) {
	var (
		p   ledger.Pending
		err error
	)
	switch call.Method {
	case ledger.OpPerformSlide:
		p, err = c.SubmitCompletion(ctx)
	case ledger.OpPayoutLast:
		p, err = c.SubmitClaim(ctx)
	case ledger.OpFund:
		amount, perr := ledger.ParseAmount(call.Params.Amount)
		if perr != nil {
			s.send(ctx, out, failure(call.ID, protocol.ErrBadRequest, perr.Error()))
			return
		}
		p, err = c.Fund(ctx, amount)
	}
	if err != nil {
		s.send(ctx, out, failure(call.ID, codeFor(err), err.Error()))
		return
	}
	s.send(ctx, out, protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              call.ID,
		OK:              true,
		TxHash:          p.TxHash(),
	})

	go func() {
		rc, err := p.Wait(context.Background())
		s.recordReceipt(call.Method, identity, p.TxHash(), rc, err)
		s.send(ctx, out, receiptMsg(p.TxHash(), rc, err))
	}()
}

func (s *Server) recordReceipt(op, from, txHash string, rc ledger.Receipt, err error) {
	entry := plog.ReceiptEntry{
		At:     time.Now().UTC(),
		Op:     op,
		From:   from,
		TxHash: txHash,
		OK:     err == nil,
		Block:  rc.Block,
		Events: rc.Events,
	}
	var we *ledger.WriteError
	if errors.As(err, &we) {
		entry.Reason = we.Reason
	}
	if err != nil {
		s.log.Printf("gateway op=%s from=%s tx=%s failed: %v", op, from, txHash, err)
	}
	if s.receipts == nil {
		return
	}
	if werr := s.receipts.WriteReceipt(entry); werr != nil {
		s.log.Printf("gateway receipt log: %v", werr)
	}
}

func receiptMsg(txHash string, rc ledger.Receipt, err error) protocol.ReceiptMsg {
	m := protocol.ReceiptMsg{
		Type:            protocol.TypeReceipt,
		ProtocolVersion: protocol.Version,
		TxHash:          txHash,
		OK:              err == nil,
		Block:           rc.Block,
	}
	for _, e := range rc.Events {
		m.Events = append(m.Events, protocol.ReceiptEvent{
			Name:      e.Name,
			User:      e.User,
			Total:     e.Total,
			Milestone: e.Milestone,
			Claimed:   e.Claimed,
			Amount:    e.Amount,
		})
	}
	if err != nil {
		m.Code = codeFor(err)
		m.Message = err.Error()
		var we *ledger.WriteError
		if errors.As(err, &we) {
			m.Reason = we.Reason
		}
	}
	return m
}

func codeFor(err error) string {
	var we *ledger.WriteError
	switch {
	case errors.Is(err, ledger.ErrWrongNetwork):
		return protocol.ErrWrongNetwork
	case errors.Is(err, ledger.ErrClosed), errors.Is(err, ledger.ErrBusy):
		return protocol.ErrBusy
	case errors.As(err, &we) && we.Reason != "":
		return ledger.ReasonCode(we.Reason)
	}
	return protocol.ErrInternal
}

func failure(id, code, msg string) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              id,
		OK:              false,
		Code:            code,
		Message:         msg,
	}
}

func (s *Server) send(ctx context.Context, out chan<- []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("gateway marshal: %v", err)
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
