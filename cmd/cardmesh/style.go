package main

import (
	"fmt"
	"strconv"

	"cardmesh/internal/domain"
	"cardmesh/internal/feedback"
	"cardmesh/internal/session"

	"github.com/pterm/pterm"
)

// endMessages is what players read when a game ends.
var endMessages = map[domain.EndType]string{
	domain.EndTypeWin:                 "%s wins the game!",
	domain.EndTypeInsufficientPlayers: "Too many players left. The game is over.",
	domain.EndTypeHostDisconnected:    "The host left. The game is over.",
}

func nameOf(roster domain.Roster, id domain.ParticipantID) string {
	if m, ok := roster.Get(id); ok && m.DisplayName != "" {
		return m.DisplayName
	}
	return "player " + strconv.Itoa(int(id))
}

func endMessage(view domain.Snapshot) string {
	format, ok := endMessages[view.EndType]
	if !ok {
		return "The game is over."
	}
	if view.EndType == domain.EndTypeWin {
		return fmt.Sprintf(format, nameOf(view.Roster, view.Winner))
	}
	return format
}

func colorize(c domain.Card) string {
	switch c.Color {
	case domain.ColorRed:
		return pterm.LightRed(c.String())
	case domain.ColorYellow:
		return pterm.LightYellow(c.String())
	case domain.ColorGreen:
		return pterm.LightGreen(c.String())
	case domain.ColorBlue:
		return pterm.LightBlue(c.String())
	default:
		return pterm.LightMagenta(c.String())
	}
}

func printTable(s *session.Session) {
	view := s.View()
	data := pterm.TableData{{"", "Id", "Player", "Link", "Cards"}}
	for _, m := range view.Roster {
		marker := ""
		if m.ID == view.CurrentTurn {
			marker = ">"
		}
		name := m.DisplayName
		if m.IsHost {
			name += " (host)"
		}
		if m.ID == s.MyParticipantID() {
			name += " (you)"
		}
		cards := "-"
		if n, ok := view.CardCounts[m.ID]; ok {
			cards = strconv.Itoa(n)
		}
		data = append(data, []string{marker, strconv.Itoa(int(m.ID)), name, string(m.Connection), cards})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	switch view.Status {
	case domain.StatusLobby:
		pterm.Info.Printfln("Waiting in the lobby. Share %s", s.JoinURL())
	case domain.StatusPlaying:
		if top, ok := view.TopCard(); ok {
			pterm.Info.Printfln("Top card %s, colour %s", colorize(top), view.ActiveColor)
		}
	case domain.StatusEnded:
		pterm.Warning.Println(endMessage(view))
	}
}

func printHand(s *session.Session) {
	hand := s.Hand()
	if len(hand) == 0 {
		pterm.Info.Println("Your hand is empty.")
		return
	}
	items := make([]pterm.BulletListItem, 0, len(hand))
	for _, c := range hand {
		items = append(items, pterm.BulletListItem{Level: 0, Text: fmt.Sprintf("%3d  %s", c.ID, colorize(c))})
	}
	_ = pterm.DefaultBulletList.WithItems(items).Render()
}

func printFeedback(s *session.Session, ev feedback.Event) {
	roster := s.Roster()
	switch ev.Kind {
	case feedback.KindYourTurn:
		pterm.Success.Println("Your turn!")
	case feedback.KindCardDiscarded:
		pterm.Info.Printfln("%s was played [%s]", colorize(ev.Card), ev.SoundClass)
	case feedback.KindCardDrawn:
		pterm.Info.Printfln("%s drew %d", nameOf(roster, ev.Participant), ev.Count)
	}
}
