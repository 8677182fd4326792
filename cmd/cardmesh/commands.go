package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cardmesh/internal/domain"
)

var (
	errEmptyCommand   = errors.New("empty command")
	errUnknownCommand = errors.New("unknown command")
)

type commandKind int

const (
	cmdAction commandKind = iota
	cmdHand
	cmdState
	cmdHelp
	cmdQuit
)

type command struct {
	kind   commandKind
	action domain.Action
}

// parseCommand reads one line typed at the prompt.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return command{}, errEmptyCommand
	}

	switch fields[0] {
	case "start":
		return command{kind: cmdAction, action: domain.Action{Kind: domain.ActionStart}}, nil
	case "draw", "d":
		return command{kind: cmdAction, action: domain.Action{Kind: domain.ActionDraw}}, nil
	case "ready":
		return command{kind: cmdAction, action: domain.Action{Kind: domain.ActionReady}}, nil
	case "play", "p":
		return parsePlay(fields[1:])
	case "hand", "h":
		return command{kind: cmdHand}, nil
	case "state", "s":
		return command{kind: cmdState}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("%w: %q", errUnknownCommand, fields[0])
	}
}

func parsePlay(args []string) (command, error) {
	if len(args) == 0 || len(args) > 2 {
		return command{}, errors.New("usage: play <card id> [red|yellow|green|blue]")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return command{}, fmt.Errorf("card id %q: %w", args[0], err)
	}
	action := domain.Action{Kind: domain.ActionPlay, CardID: id}
	if len(args) == 2 {
		color, ok := domain.ParseColor(args[1])
		if !ok {
			return command{}, fmt.Errorf("unknown colour %q", args[1])
		}
		action.Color = color
	}
	return command{kind: cmdAction, action: action}, nil
}

const helpText = `commands:
  start                 start the game (host only)
  play <id> [colour]    play a card, naming a colour for wilds
  draw                  draw a card and pass
  ready                 tell the host you are ready
  hand                  show your hand
  state                 show the table
  quit                  leave the session`
