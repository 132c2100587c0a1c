package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"cosmo/internal/assist"
	"cosmo/internal/audio"
	"cosmo/internal/bus"
	"cosmo/internal/directions"
	"cosmo/internal/hazards"
	"cosmo/internal/ipc"
	"cosmo/internal/listen"
	"cosmo/internal/locate"
	"cosmo/internal/nlu"
	"cosmo/internal/notify"
	"cosmo/internal/places"
	"cosmo/internal/proxy"
	"cosmo/internal/speech"
	"cosmo/internal/transcribe"
	"cosmo/pkg/geo"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS5 proxy address for API traffic")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	whisperModel := cli.StringP("whisper", "w", "", "Whisper model path for offline transcription")
	busAddr := cli.StringP("bus", "b", ":8092", "Websocket bus listen address")
	socketPath := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	chimePath := cli.StringP("chime", "c", "chime.mp3", "Attention chime file")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	openaiKey := os.Getenv("OPENAI_API_KEY")
	mapsKey := os.Getenv("MAPS_API_KEY")
	speechKey := os.Getenv("SPEECH_API_KEY")
	if openaiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}
	if mapsKey == "" {
		log.Error("MAPS_API_KEY not set")
		os.Exit(1)
	}

	var httpClient *http.Client
	if *proxyAddr != "" {
		var err error
		httpClient, err = proxy.NewSocksClient(*proxyAddr, 120*time.Second)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		log.Debug("Loaded proxy")
	}

	aiOpts := []option.RequestOption{option.WithAPIKey(openaiKey)}
	if httpClient != nil {
		aiOpts = append(aiOpts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(aiOpts...)

	rec := audio.NewRecorder("")
	if err := rec.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer rec.Close()
	log.Debug("Loaded recorder")

	var transcriber transcribe.Transcriber
	if *whisperModel != "" {
		local, err := transcribe.NewLocal(*whisperModel)
		if err != nil {
			log.Error("Failed to init whisper", "model", *whisperModel, "err", err)
			os.Exit(1)
		}
		defer local.Close()
		transcriber = local
		log.Debug("Loaded whisper", "model", *whisperModel)
	} else {
		if speechKey == "" {
			log.Error("SPEECH_API_KEY not set (or pass --whisper for offline transcription)")
			os.Exit(1)
		}
		transcriber = transcribe.NewRemote(httpClient, speechKey)
		log.Debug("Loaded remote transcription")
	}

	feed := locate.NewFeed()
	chain := nlu.NewChain(nlu.NewOpenAI(client), nil)

	var core *assist.Core
	hub := bus.NewHub(
		func(lat, lon, heading, speed float64) {
			feed.Update(locate.Position{
				Point:   geo.Point{Lon: lon, Lat: lat},
				Heading: heading,
				Speed:   speed,
			})
		},
		func(cmd, arg string) {
			if msg, ok := core.HandleCommand(cmd, arg); !ok {
				log.Warn("bus command rejected", "cmd", cmd, "msg", msg)
			}
		},
	)

	loop := listen.NewLoop(rec, listen.DefaultClipLen, func(clip audio.Clip) {
		core.HandleClip(clip)
	})
	ctrl := listen.NewController(loop, listen.DefaultActiveWindow)

	deps := assist.Deps{
		Listener:    ctrl,
		Transcriber: transcriber,
		Resolver:    chain,
		Places:      places.NewClient(httpClient, mapsKey),
		Directions:  directions.NewClient(httpClient, mapsKey),
		Hazards:     hazards.NewClient(httpClient),
		Position:    feed,
		Publish:     hub.Broadcast,
	}
	if chime, err := notify.Load(*chimePath); err != nil {
		log.Warn("Chime unavailable", "path", *chimePath, "err", err)
	} else {
		deps.Chime = chime
	}
	core = assist.NewCore(deps)

	// Expiry timers must not touch the controller from the timer goroutine;
	// route the callback through the session loop.
	ctrl.SetSchedule(func(d time.Duration, fn func()) func() {
		t := time.AfterFunc(d, func() { core.Post(fn) })
		return func() { t.Stop() }
	})

	coord := speech.NewCoordinator(speech.NewEspeak(), ctrl, core.Post)
	coord.SetDucker(speech.NewDucker([]string{"cosmo", "espeak"}, 0.3, 10))
	core.SetSpeech(coord)

	ipcSrv, err := ipc.NewServer(*socketPath, func(req ipc.Request) ipc.Response {
		if req.Cmd == "status" {
			// One loop round trip serves both the printable message and the
			// structured state.
			s := core.Status()
			return ipc.Response{OK: true, Message: s.String(), State: s}
		}
		msg, ok := core.HandleCommand(req.Cmd, req.Arg)
		return ipc.Response{OK: ok, Message: msg}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer ipcSrv.Close()

	go func() {
		log.Info("Bus listening", "addr", *busAddr)
		if err := http.ListenAndServe(*busAddr, hub); err != nil {
			log.Error("Bus server failed", "err", err)
		}
	}()

	log.Info("Boot up - successful")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	core.Run(ctx)
	log.Info("Shutting down")
}
