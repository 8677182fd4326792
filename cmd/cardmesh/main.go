// Command cardmesh hosts or joins a card game played over direct links between players.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cardmesh/internal/app"
	"cardmesh/internal/bot"
	"cardmesh/internal/config"
	"cardmesh/internal/domain"
	"cardmesh/internal/platform/logging"
	"cardmesh/internal/platform/otel"
	"cardmesh/internal/ports"
	"cardmesh/internal/session"
	"cardmesh/internal/signaling"

	"github.com/gin-gonic/gin"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/pterm/pterm"
	"go.opentelemetry.io/otel/attribute"
)

const usage = `usage:
  cardmesh [--autoplay] [--bot-level standard|aggressive] host
  cardmesh [--autoplay] [--bot-level standard|aggressive] join <ref or cardmesh://join/ref>`

func main() {
	autoplay := flag.Bool("autoplay", false, "let a bot play your turns")
	botLevel := flag.String("bot-level", "standard", "bot strategy for --autoplay")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 || (args[0] == "join" && len(args) != 2) || (args[0] != "join" && args[0] != "host") {
		flag.Usage()
		os.Exit(2)
	}

	gin.SetMode(gin.ReleaseMode)

	env, err := config.LoadEnv()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	gameCfg, err := config.LoadGameConfig(env.GameConfigPath)
	if err != nil {
		config.Exitf("config: %v", err)
	}
	var brain bot.Brain
	if *autoplay {
		level, err := bot.ParseLevel(*botLevel)
		if err != nil {
			config.Exitf("bot: %v", err)
		}
		if brain, err = bot.NewBrain(level); err != nil {
			config.Exitf("bot: %v", err)
		}
	}
	logger := logging.NewPterm(env.LogLevel, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "cardmesh", attribute.String("cardmesh.role", args[0]))
	if err != nil {
		logger.Warn("main: tracing disabled: %v", err)
	}

	err = run(ctx, args, env, gameCfg, brain, logger)
	_ = shutdown(context.Background())
	if err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, env config.Env, gameCfg config.GameConfig, brain bot.Brain, logger runtime.Logger) error {
	sig, err := signaling.Connect(ctx, env.SignalingURL, signaling.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("signaling: %w", err)
	}

	home := make(chan struct{})
	var homeOnce sync.Once
	deps := session.Deps{
		Signaling: sig,
		Rules:     app.NewService(nil, gameCfg.HandSize),
		Navigator: ports.NavigatorFunc(func() {
			homeOnce.Do(func() { close(home) })
		}),
		Config:         gameCfg,
		AdvertiseHosts: env.AdvertiseHosts,
		DisplayName:    env.DisplayName,
		LinkSecret:     env.LinkSecret,
		Logger:         logger,
		OnCountdown: func(remaining int) {
			pterm.Warning.Printfln("The host is gone. Returning home in %d...", remaining)
		},
	}

	s, err := open(ctx, args, env, deps)
	if err != nil {
		_ = sig.Close()
		return err
	}
	defer s.Close()

	events, unsubscribe := s.Feedback()
	defer unsubscribe()
	go func() {
		for ev := range events {
			printFeedback(s, ev)
		}
	}()
	if brain != nil {
		go autoplayLoop(ctx, s, brain, logger)
	}
	go watchEnd(ctx, s)

	printTable(s)
	pterm.Println(helpText)
	lines := readLines(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-home:
			pterm.Info.Println("Back to the start screen. Bye!")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := execute(ctx, s, line); quit {
				return nil
			}
		}
	}
}

func open(ctx context.Context, args []string, env config.Env, deps session.Deps) (*session.Session, error) {
	if args[0] == "host" {
		l, err := net.Listen("tcp", env.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("listen on %s: %w", env.ListenAddr, err)
		}
		deps.Listener = l
		s, err := session.HostSession(ctx, deps)
		if err != nil {
			_ = l.Close()
			return nil, err
		}
		pterm.Success.Printfln("Hosting session %s", s.Ref())
		pterm.Info.Printfln("Invite players with %s", s.JoinURL())
		return s, nil
	}

	spinner, _ := pterm.DefaultSpinner.Start("Joining the session...")
	s, err := session.Join(ctx, deps, args[1])
	var rejected *session.AdmissionError
	switch {
	case errors.As(err, &rejected):
		spinner.Fail("The host turned you away")
		return nil, fmt.Errorf("cannot join: %s", rejectionText(rejected.Reason))
	case err != nil:
		spinner.Fail()
		return nil, err
	}
	spinner.Success(fmt.Sprintf("Joined as player %d", s.MyParticipantID()))
	return s, nil
}

func rejectionText(reason string) string {
	switch reason {
	case session.ReasonAlreadyStarted:
		return "the game has already started"
	case session.ReasonFull:
		return "the table is full"
	default:
		return reason
	}
}

// execute runs one typed command and reports whether the user asked to quit.
func execute(ctx context.Context, s *session.Session, line string) bool {
	cmd, err := parseCommand(line)
	switch {
	case errors.Is(err, errEmptyCommand):
		return false
	case err != nil:
		pterm.Error.Println(err)
		return false
	}

	switch cmd.kind {
	case cmdQuit:
		return true
	case cmdHelp:
		pterm.Println(helpText)
	case cmdHand:
		printHand(s)
	case cmdState:
		printTable(s)
	case cmdAction:
		if err := submit(ctx, s, cmd.action); err != nil {
			pterm.Error.Println(err)
		}
	}
	return false
}

func submit(ctx context.Context, s *session.Session, action domain.Action) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.SubmitAction(ctx, action)
}

// autoplayLoop plays this peer's turns with brain until the game ends.
func autoplayLoop(ctx context.Context, s *session.Session, brain bot.Brain, logger runtime.Logger) {
	agent := &bot.Agent{ID: s.MyParticipantID(), Name: "autoplay", Strategy: brain}
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		view := s.View()
		if view.Status == domain.StatusEnded {
			return
		}
		if view.Seq == lastSeq {
			continue
		}
		action, ok, err := agent.Play(view)
		if !ok {
			continue
		}
		if err != nil {
			logger.Warn("autoplayLoop: %v, drawing instead", err)
		}
		lastSeq = view.Seq
		if err := submit(ctx, s, action); err != nil {
			logger.Warn("autoplayLoop: %s refused: %v", action.Kind, err)
		}
	}
}

// watchEnd announces the end of the game once.
func watchEnd(ctx context.Context, s *session.Session) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if view := s.View(); view.Status == domain.StatusEnded {
			pterm.Warning.Println(endMessage(view))
			return
		}
	}
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
