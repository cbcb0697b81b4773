// internal/console/console.go
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/stranded/internal/difficulty"
	"github.com/jason-s-yu/stranded/internal/narrator"
	"github.com/jason-s-yu/stranded/internal/resolution"
)

// The console game runs on a 0-100 health scale.
const (
	MaxHealth       = 100
	StartingFood    = 3
	StartingWater   = 3
	BaseDailyDamage = 2
	ShortageDamage  = 10
	MinJudgedHP     = -40
	MaxJudgedHP     = 20
	MaxJudgedSupply = 3
	recentOutcomes  = 3
	quitCommand     = "quit"
	promptText      = "What do you do?"
	gameOverText    = "GAME OVER"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FAF5F"))

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AF5F5F"))
)

// fallbackJudgement is used when the narrator cannot rate an action.
var fallbackJudgement = narrator.Judgement{
	Difficulty:  string(difficulty.Moderate),
	Success:     "It takes most of the day, but you manage it.",
	Failure:     "It does not go your way, and the effort leaves you drained.",
	HPOnSuccess: 0,
	HPOnFailure: -5,
}

// State is the single survivor's condition.
type State struct {
	Day    int
	Health int
	Food   int
	Water  int
	Recent []string
}

func NewState() State {
	return State{Day: 1, Health: MaxHealth, Food: StartingFood, Water: StartingWater}
}

func (s State) Alive() bool { return s.Health > 0 }

// Turn is what one action did.
type Turn struct {
	Judgement narrator.Judgement
	Roll      difficulty.Roll
	Fallback  bool
	Outcome   string
}

// Game is the single-player loop.
type Game struct {
	Name     string
	State    State
	narrator *narrator.Narrator
	resolver *difficulty.Resolver
	policy   resolution.RetryPolicy
	logger   *logrus.Logger
}

func NewGame(name string, n *narrator.Narrator, resolver *difficulty.Resolver, policy resolution.RetryPolicy, logger *logrus.Logger) *Game {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if strings.TrimSpace(name) == "" {
		name = "You"
	}
	return &Game{
		Name:     strings.TrimSpace(name),
		State:    NewState(),
		narrator: n,
		resolver: resolver,
		policy:   policy,
		logger:   logger,
	}
}

// Run reads actions from in until quit, death or end of input. All three
// are a normal exit.
func (g *Game) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		g.printStatus(out)
		fmt.Fprintf(out, "%s\n> ", promptStyle.Render(promptText))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		action := strings.TrimSpace(scanner.Text())
		if action == "" {
			continue
		}
		if strings.EqualFold(action, quitCommand) {
			fmt.Fprintln(out, "You stop here. The island keeps its secrets.")
			return nil
		}

		turn := g.Play(ctx, action)
		style := failureStyle
		if turn.Roll.Success {
			style = successStyle
		}
		fmt.Fprintf(out, "\n[%s, rolled %.2f against %.2f]\n", turn.Roll.Label, turn.Roll.Roll, turn.Roll.Threshold)
		fmt.Fprintln(out, style.Render(turn.Outcome))
		fmt.Fprintln(out)

		if !g.State.Alive() {
			fmt.Fprintln(out, headerStyle.Render(gameOverText))
			fmt.Fprintf(out, "%s survived %d days.\n", g.Name, g.State.Day-1)
			return nil
		}
	}
}

// Play judges one action, rolls for it, applies the result and the daily cost.
func (g *Game) Play(ctx context.Context, action string) Turn {
	req := narrator.JudgeRequest{
		Day:    g.State.Day,
		Name:   g.Name,
		Health: g.State.Health,
		Food:   g.State.Food,
		Water:  g.State.Water,
		Action: action,
		Recent: g.State.Recent,
	}
	log := g.logger.WithField("day", g.State.Day)
	j, fellBack := resolution.CallWithRetry(ctx, g.policy, log,
		func(ctx context.Context) narrator.Result[narrator.Judgement] { return g.narrator.Judge(ctx, req) },
		func() narrator.Judgement { return fallbackJudgement },
	)

	label, err := difficulty.ParseLabel(j.Difficulty)
	if err != nil {
		label = difficulty.Moderate
	}
	roll, _ := g.resolver.Resolve(label)

	turn := Turn{Judgement: j, Roll: roll, Fallback: fellBack}
	hp := j.HPOnFailure
	turn.Outcome = j.Failure
	if roll.Success {
		hp = j.HPOnSuccess
		turn.Outcome = j.Success
	}

	s := &g.State
	s.Health = clamp(s.Health+clamp(hp, MinJudgedHP, MaxJudgedHP), 0, MaxHealth)
	s.Food = max(s.Food+clamp(j.Food, -MaxJudgedSupply, MaxJudgedSupply), 0)
	s.Water = max(s.Water+clamp(j.Water, -MaxJudgedSupply, MaxJudgedSupply), 0)
	s.Recent = append(s.Recent, turn.Outcome)
	if len(s.Recent) > recentOutcomes {
		s.Recent = s.Recent[len(s.Recent)-recentOutcomes:]
	}
	if s.Alive() {
		s.endDay()
	}
	return turn
}

// endDay eats one ration of each kind. Every missing ration costs health on
// top of the base daily cost.
func (s *State) endDay() {
	damage := BaseDailyDamage
	if s.Food == 0 {
		damage += ShortageDamage
	}
	if s.Water == 0 {
		damage += ShortageDamage
	}
	s.Food = max(s.Food-1, 0)
	s.Water = max(s.Water-1, 0)
	s.Health = clamp(s.Health-damage, 0, MaxHealth)
	s.Day++
}

func (g *Game) printStatus(out io.Writer) {
	s := g.State
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Day %d", s.Day)))
	fmt.Fprintln(out, statStyle.Render(fmt.Sprintf("%s  health %d/%d", g.Name, s.Health, MaxHealth)))
	fmt.Fprintln(out, statStyle.Render(fmt.Sprintf("food %d  water %d", s.Food, s.Water)))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
