package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/core"
	"github.com/rmacedo/salachat-server/internal/proto"
	"github.com/rmacedo/salachat-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub            *core.Hub
	allowedOrigins []string
	log            *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. With no allowed origins the
// origin check is skipped, which suits same-host deployments and local dev.
func NewWSHandler(hub *core.Hub, allowedOrigins []string, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, allowedOrigins: allowedOrigins, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	opts := &websocket.AcceptOptions{}
	if len(h.allowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.allowedOrigins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(utils.NewID())
	h.hub.RegisterClient(client)
	defer h.hub.DeregisterClient(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		env, err := proto.Decode(raw)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID()).Msg("malformed ws frame")
			if writeErr := h.writeError(ctx, conn, "bad_frame", "malformed frame"); writeErr != nil {
				return writeErr
			}
			continue
		}

		cmd, err := frameToCommand(env)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID()).Str("type", env.Type).Msg("unsupported ws frame")
			if writeErr := h.writeError(ctx, conn, "bad_frame", err.Error()); writeErr != nil {
				return writeErr
			}
			continue
		}

		h.hub.Submit(client, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case frame, ok := <-client.Out():
			if !ok {
				return nil
			}
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID()).Msg("write ws frame")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	frame, err := proto.Encode(proto.TypeError, proto.ErrorData{Code: code, Msg: msg})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}

// frameToCommand maps an inbound envelope to a hub command.
func frameToCommand(env *proto.Envelope) (core.Command, error) {
	switch env.Type {
	case proto.TypeIdentify:
		var data proto.IdentifyData
		if err := proto.DecodeData(env, &data); err != nil {
			return core.Command{}, err
		}
		return core.Command{Kind: core.CmdIdentify, Username: data.Username}, nil
	case proto.TypeSend:
		var data proto.SendData
		if err := proto.DecodeData(env, &data); err != nil {
			return core.Command{}, err
		}
		return core.Command{
			Kind:   core.CmdSend,
			Text:   data.Text,
			Avatar: data.Avatar,
			Color:  data.Color,
		}, nil
	case proto.TypeLeave:
		return core.Command{Kind: core.CmdLeave}, nil
	default:
		return core.Command{}, fmt.Errorf("unsupported frame type %q", env.Type)
	}
}
