// Package blackjack is the shell's card game. Cards are drawn with
// replacement; aces count 11 and drop to 1 while the hand is over 21.
package blackjack

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/rama-kairi/minios/internal/console"
)

// cardValues lists the face values a draw can return; the four 10s stand
// for ten, jack, queen and king
var cardValues = []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 10, 10, 10, 11}

// dealerStandsOn is the total at which the dealer stops hitting
const dealerStandsOn = 17

// Dealer supplies cards
type Dealer interface {
	Draw() int
}

// RandomDealer draws uniformly from cardValues
type RandomDealer struct {
	rng *rand.Rand
}

// NewRandomDealer creates a dealer; a nil rng uses a randomly seeded source
func NewRandomDealer(rng *rand.Rand) *RandomDealer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomDealer{rng: rng}
}

// Draw returns the value of one card
func (d *RandomDealer) Draw() int {
	return cardValues[d.rng.IntN(len(cardValues))]
}

// Hand is the cards held by one side
type Hand []int

// Total sums the hand, demoting aces from 11 to 1 while it busts
func (h Hand) Total() int {
	total, aces := 0, 0
	for _, card := range h {
		total += card
		if card == 11 {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// String formats the hand like "[10, 7]"
func (h Hand) String() string {
	parts := make([]string, len(h))
	for i, card := range h {
		parts[i] = strconv.Itoa(card)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Outcome is the result of one round
type Outcome int

const (
	PlayerBust Outcome = iota
	DealerBust
	PlayerWins
	DealerWins
	Tie
)

// Game runs rounds on a console
type Game struct {
	dealer  Dealer
	console *console.Console
}

// NewGame creates a game
func NewGame(dealer Dealer, con *console.Console) *Game {
	return &Game{dealer: dealer, console: con}
}

// Play runs rounds until the player declines another. It returns only
// console errors, such as io.EOF at end of input.
func (g *Game) Play() error {
	g.console.Println("Welcome to Blackjack!")

	for {
		if _, err := g.Round(); err != nil {
			return err
		}

		again, err := g.console.ReadLine("\nWould you like to play again? (yes/no): ")
		if err != nil {
			return err
		}
		if strings.ToLower(strings.TrimSpace(again)) != "yes" {
			break
		}
	}

	g.console.Println("Thanks for playing Blackjack!")
	return nil
}

// Round deals and plays a single hand
func (g *Game) Round() (Outcome, error) {
	player := Hand{g.dealer.Draw(), g.dealer.Draw()}
	dealer := Hand{g.dealer.Draw(), g.dealer.Draw()}

	g.console.Printf("Your hand: %s, total: %d\n", player, player.Total())
	g.console.Printf("Dealer's visible card: %d\n", dealer[0])

	for {
		choice, err := g.console.ReadLine("Would you like to 'hit' or 'stand'? ")
		if err != nil {
			return 0, err
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "hit":
			player = append(player, g.dealer.Draw())
			g.console.Printf("Your hand: %s, total: %d\n", player, player.Total())
			if player.Total() > 21 {
				g.console.Println("Bust! You went over 21. Dealer wins!")
				return PlayerBust, nil
			}
			continue
		case "stand":
		default:
			g.console.Println("Invalid choice. Please type 'hit' or 'stand'.")
			continue
		}
		break
	}

	g.console.Printf("\nDealer's hand: %s, total: %d\n", dealer, dealer.Total())
	for dealer.Total() < dealerStandsOn {
		dealer = append(dealer, g.dealer.Draw())
		g.console.Printf("Dealer hits: %s, total: %d\n", dealer, dealer.Total())
		if dealer.Total() > 21 {
			g.console.Println("Dealer busts! You win!")
			return DealerBust, nil
		}
	}

	playerTotal, dealerTotal := player.Total(), dealer.Total()
	g.console.Printf("\nFinal hands:\n  Your total: %d\n  Dealer's total: %d\n", playerTotal, dealerTotal)

	switch {
	case playerTotal > dealerTotal:
		g.console.Println("You win!")
		return PlayerWins, nil
	case playerTotal < dealerTotal:
		g.console.Println("Dealer wins!")
		return DealerWins, nil
	default:
		g.console.Println("It's a tie!")
		return Tie, nil
	}
}
