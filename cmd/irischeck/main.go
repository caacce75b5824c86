// Command irischeck probes an Iris bridge: it reads /config, optionally posts a
// rendered opening board to -room and prints WebSocket traffic for a while.
// With -animate it first prints the timed animation frames of one opening move.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/Cheese-Mancala-bot/internal/config"
	"github.com/park285/Cheese-Mancala-bot/internal/irisfast"
	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
	"github.com/park285/Cheese-Mancala-bot/internal/obslog"
	"github.com/park285/Cheese-Mancala-bot/internal/render"
	"github.com/park285/Cheese-Mancala-bot/internal/session"
)

func main() {
	room := flag.String("room", "", "room to send a sample board to")
	listen := flag.Duration("listen", 10*time.Second, "how long to print WebSocket messages")
	animate := flag.String("animate", "", "opening pit (a1..a6) whose animation frames are printed")
	flag.Parse()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(obslog.Options{Level: "debug", Format: "console", Console: true}); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	if *animate != "" {
		if err := printAnimation(context.Background(), *animate, logger); err != nil {
			logger.Error("animate_error", zap.String("pit", *animate), zap.Error(err))
		}
	}

	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(cfg.Headers),
		irisfast.WithTimeout(8*time.Second),
		irisfast.WithLogger(logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ic, err := client.GetConfig(ctx); err != nil {
		logger.Error("iris_config_error", zap.Error(err))
	} else {
		logger.Info("iris_config_ok",
			zap.Int("port", ic.Port),
			zap.Int("polling_speed", ic.PollingSpeed),
			zap.Int("message_rate", ic.MessageRate),
			zap.String("endpoint", ic.WebserverEndpoint),
		)
	}

	if *room != "" {
		if err := sendSample(ctx, client, *room); err != nil {
			logger.Error("iris_send_error", zap.String("room", *room), zap.Error(err))
		}
	}

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 1, logger)
	ws.SetHeaderProvider(cfg.Headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("iris_ws_state", zap.String("state", state.String()))
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		fmt.Printf("room=%s from=%s text=%q\n", msg.Room, msg.SenderName(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		logger.Error("iris_ws_connect_error", zap.Error(err))
		return
	}
	time.Sleep(*listen)
	_ = ws.Close(context.Background())
}

// printAnimation plays pit from the opening board on a TimedHost and prints
// every frame as it is shown.
func printAnimation(ctx context.Context, name string, logger *zap.Logger) error {
	pit, err := mancala.ParsePit(name)
	if err != nil {
		return err
	}
	host := session.NewTimedHost(ctx, func(_ *session.Animation, st session.Step) {
		fmt.Printf("%s %s (+%s)\n%s\n\n", st.Kind, mancala.PitName(st.Slot), st.Delay, render.Text(st.Board))
	})
	sess := session.New(session.ModeLocalPvP, session.WithHost(host), session.WithLogger(logger))
	if _, err := sess.RequestMove(session.SourceLocal, pit); err != nil {
		return err
	}
	host.Wait()
	fmt.Printf("final\n%s\n", render.Text(sess.Board()))
	return nil
}

func sendSample(ctx context.Context, client *irisfast.Client, room string) error {
	b := mancala.NewBoard()
	if err := client.SendText(ctx, room, "irischeck\n"+render.Text(b)); err != nil {
		return err
	}
	png, err := render.NewRenderer().RenderPNG(ctx, b, render.Options{Title: "irischeck"})
	if err != nil {
		return err
	}
	return client.SendImage(ctx, room, base64.StdEncoding.EncodeToString(png))
}
