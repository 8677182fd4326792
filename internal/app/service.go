package app

import (
	"errors"
	"math/rand"
	"time"

	"cardmesh/internal/domain"
)

// Service is the default rule engine: a colour/value shedding game. It implements
// ports.RuleEngine.
type Service struct {
	rng      *rand.Rand
	handSize int
}

// NewService constructs a Service with provided rng or a time-seeded default.
// handSize <= 0 selects domain.DefaultHandSize.
func NewService(rng *rand.Rand, handSize int) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if handSize <= 0 {
		handSize = domain.DefaultHandSize
	}
	return &Service{rng: rng, handSize: handSize}
}

var (
	ErrNotInLobby     = errors.New("game not in lobby")
	ErrNotPlaying     = errors.New("game not in playing phase")
	ErrTooFewPlayers  = errors.New("not enough players to start")
	ErrUnknownPlayer  = errors.New("player not found")
	ErrCardNotInHand  = errors.New("card not in hand")
	ErrIllegalCard    = errors.New("card does not match colour or value")
	ErrColorRequired  = errors.New("a colour must be declared for wild cards")
	ErrUnknownAction  = errors.New("unknown action")
	ErrEmptyDrawPile  = errors.New("no cards left to draw")
	ErrNoStartingCard = errors.New("deck has no number card to start with")
)

// Validate applies action for participant to a copy of game.
func (s *Service) Validate(game *domain.Game, participant domain.ParticipantID, action domain.Action) (*domain.Game, error) {
	switch action.Kind {
	case domain.ActionStart:
		return s.startGame(game, participant)
	case domain.ActionPlay:
		return s.playCard(game, participant, action)
	case domain.ActionDraw:
		return s.drawCard(game, participant)
	case domain.ActionReady:
		next := game.Clone()
		next.LastAction = &domain.ActionRecord{Actor: participant, Kind: domain.ActionReady}
		return next, nil
	default:
		return nil, ErrUnknownAction
	}
}

// TurnOrderNext returns the next active participant after the current turn holder.
func (s *Service) TurnOrderNext(game *domain.Game) domain.ParticipantID {
	return nextActive(game, game.CurrentTurn)
}

// startGame deals a hand to every connected member and flips the starting card.
func (s *Service) startGame(game *domain.Game, actor domain.ParticipantID) (*domain.Game, error) {
	if game.Status != domain.StatusLobby {
		return nil, ErrNotInLobby
	}
	var seats []domain.ParticipantID
	for _, m := range game.Roster {
		if m.Connection == domain.Connected {
			seats = append(seats, m.ID)
		}
	}
	if len(seats) < MinPlayersToStartGame {
		return nil, ErrTooFewPlayers
	}

	next := game.Clone()
	deck := domain.ShuffleDeck(domain.NewDeck(), s.rng)

	next.Hands = make(map[domain.ParticipantID][]domain.Card, len(seats))
	cardIdx := 0
	for _, id := range seats {
		next.Hands[id] = append([]domain.Card{}, deck[cardIdx:cardIdx+s.handSize]...)
		cardIdx += s.handSize
	}
	deck = deck[cardIdx:]

	// The starting card must be a plain number so no action effect applies to the
	// first player.
	starterIdx := -1
	for i, c := range deck {
		if c.Value <= 9 {
			starterIdx = i
			break
		}
	}
	if starterIdx < 0 {
		return nil, ErrNoStartingCard
	}
	starter := deck[starterIdx]
	deck = append(deck[:starterIdx:starterIdx], deck[starterIdx+1:]...)

	next.DrawPile = deck
	next.DiscardPile = []domain.Card{starter}
	next.ActiveColor = starter.Color
	next.Direction = domain.Clockwise
	next.Status = domain.StatusPlaying
	next.EndType = domain.EndTypeNone
	next.Winner = domain.NoParticipant
	next.CurrentTurn = seats[0]
	next.LastAction = &domain.ActionRecord{Actor: actor, Kind: domain.ActionStart}
	return next, nil
}

// playCard discards a card and resolves its effect on turn order.
func (s *Service) playCard(game *domain.Game, actor domain.ParticipantID, action domain.Action) (*domain.Game, error) {
	if game.Status != domain.StatusPlaying {
		return nil, ErrNotPlaying
	}
	hand, ok := game.Hands[actor]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	card, ok := domain.FindCard(hand, action.CardID)
	if !ok {
		return nil, ErrCardNotInHand
	}
	top, _ := game.TopCard()
	if !domain.CanPlayOn(card, top, game.ActiveColor) {
		return nil, ErrIllegalCard
	}
	color := card.Color
	if card.IsWild() {
		declared, ok := domain.ParseColor(string(action.Color))
		if !ok {
			return nil, ErrColorRequired
		}
		color = declared
	}

	next := game.Clone()
	next.Hands[actor] = domain.RemoveCard(hand, card.ID)
	next.DiscardPile = append(next.DiscardPile, card)
	next.ActiveColor = color
	played := card
	next.LastAction = &domain.ActionRecord{Actor: actor, Kind: domain.ActionPlay, Card: &played}

	if len(next.Hands[actor]) == 0 {
		next.End(domain.EndTypeWin, actor)
		return next, nil
	}

	skip := domain.SkipsNext(card)
	if card.Value == domain.ValueReverse {
		next.Direction = -next.Direction
		// With two players a reverse hands the turn straight back.
		if countActive(next) == 2 {
			skip = true
		}
	}

	victim := nextActive(next, actor)
	if penalty := domain.DrawPenalty(card); penalty > 0 {
		drawn := s.draw(next, penalty)
		next.Hands[victim] = append(next.Hands[victim], drawn...)
	}
	if skip {
		next.CurrentTurn = nextActive(next, victim)
	} else {
		next.CurrentTurn = victim
	}
	return next, nil
}

// drawCard draws one card for actor and passes the turn.
func (s *Service) drawCard(game *domain.Game, actor domain.ParticipantID) (*domain.Game, error) {
	if game.Status != domain.StatusPlaying {
		return nil, ErrNotPlaying
	}
	if _, ok := game.Hands[actor]; !ok {
		return nil, ErrUnknownPlayer
	}
	next := game.Clone()
	drawn := s.draw(next, 1)
	if len(drawn) == 0 {
		return nil, ErrEmptyDrawPile
	}
	next.Hands[actor] = append(next.Hands[actor], drawn...)
	next.LastAction = &domain.ActionRecord{Actor: actor, Kind: domain.ActionDraw, Drawn: len(drawn)}
	next.CurrentTurn = nextActive(next, actor)
	return next, nil
}

// draw takes up to n cards from the draw pile. When it runs out, the cards discarded
// since the last reshuffle, minus the top card, are shuffled into a new draw pile.
func (s *Service) draw(game *domain.Game, n int) []domain.Card {
	var out []domain.Card
	for len(out) < n {
		if len(game.DrawPile) == 0 {
			under := len(game.DiscardPile) - 1
			if under <= game.Recycled {
				break
			}
			game.DrawPile = domain.ShuffleDeck(game.DiscardPile[game.Recycled:under], s.rng)
			game.Recycled = under
		}
		out = append(out, game.DrawPile[0])
		game.DrawPile = game.DrawPile[1:]
	}
	return out
}

// isActive reports whether a member is still taking turns.
func isActive(game *domain.Game, m domain.Member) bool {
	if m.Connection != domain.Connected {
		return false
	}
	_, ok := game.Hands[m.ID]
	return ok
}

func countActive(game *domain.Game) int {
	n := 0
	for _, m := range game.Roster {
		if isActive(game, m) {
			n++
		}
	}
	return n
}

// nextActive walks the roster one step in the game's direction, skipping members that
// are disconnected or hold no hand. It returns from when nobody else is active.
func nextActive(game *domain.Game, from domain.ParticipantID) domain.ParticipantID {
	n := len(game.Roster)
	if n == 0 {
		return from
	}
	idx := game.Roster.IndexOf(from)
	if idx < 0 {
		idx = 0
	}
	dir := game.Direction
	if dir == 0 {
		dir = domain.Clockwise
	}
	for i := 1; i <= n; i++ {
		j := ((idx+dir*i)%n + n) % n
		if isActive(game, game.Roster[j]) {
			return game.Roster[j].ID
		}
	}
	return from
}
