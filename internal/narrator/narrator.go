// internal/narrator/narrator.go
package narrator

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/stranded/internal/difficulty"
)

//go:generate mockgen -source=narrator.go -destination=mock/completer.go -package=mock

//go:embed prompts/resolve_day.txt
var resolveDayPrompt string

//go:embed prompts/prologue.txt
var prologuePrompt string

//go:embed prompts/judge_action.txt
var judgeActionPrompt string

var (
	resolveDayTmpl  = template.Must(template.New("resolve_day").Funcs(promptFuncs).Parse(resolveDayPrompt))
	prologueTmpl    = template.Must(template.New("prologue").Funcs(promptFuncs).Parse(prologuePrompt))
	judgeActionTmpl = template.Must(template.New("judge_action").Funcs(promptFuncs).Parse(judgeActionPrompt))
)

var promptFuncs = template.FuncMap{
	"join": strings.Join,
}

// Completer is the generation boundary: one prompt in, raw model text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Narrator turns game requests into prompts and model text into typed results.
type Narrator struct {
	completer Completer
	logger    *logrus.Logger
}

func New(c Completer, logger *logrus.Logger) *Narrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Narrator{completer: c, logger: logger}
}

// ResolveDay asks the model for one day's outcome. Coverage of the player set
// is checked by the caller; this only guarantees the shape.
func (n *Narrator) ResolveDay(ctx context.Context, req DayRequest) Result[DayOutcome] {
	text, res, ok := complete[DayOutcome](ctx, n, resolveDayTmpl, req)
	if !ok {
		return res
	}
	var out DayOutcome
	if err := decodeJSON(text, &out); err != nil {
		return ParseError[DayOutcome](err)
	}
	if strings.TrimSpace(out.Narration) == "" {
		return ParseError[DayOutcome](fmt.Errorf("response has no narration"))
	}
	return OK(out)
}

// Prologue asks for the opening narration of a game.
func (n *Narrator) Prologue(ctx context.Context, req PrologueRequest) Result[string] {
	text, res, ok := complete[string](ctx, n, prologueTmpl, req)
	if !ok {
		return res
	}
	text = strings.TrimSpace(stripFences(text))
	if text == "" {
		return ParseError[string](fmt.Errorf("empty prologue"))
	}
	return OK(text)
}

// Judge rates a single-player action and writes both of its possible outcomes.
func (n *Narrator) Judge(ctx context.Context, req JudgeRequest) Result[Judgement] {
	text, res, ok := complete[Judgement](ctx, n, judgeActionTmpl, req)
	if !ok {
		return res
	}
	var j Judgement
	if err := decodeJSON(text, &j); err != nil {
		return ParseError[Judgement](err)
	}
	label, err := difficulty.ParseLabel(j.Difficulty)
	if err != nil {
		return ParseError[Judgement](err)
	}
	j.Difficulty = string(label)
	if strings.TrimSpace(j.Success) == "" || strings.TrimSpace(j.Failure) == "" {
		return ParseError[Judgement](fmt.Errorf("judgement is missing outcome text"))
	}
	return OK(j)
}

// complete renders the template and calls the boundary. When ok is false the
// returned result already carries the failure.
func complete[T any](ctx context.Context, n *Narrator, tmpl *template.Template, data interface{}) (string, Result[T], bool) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", CallError[T](fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)), false
	}
	text, err := n.completer.Complete(ctx, buf.String())
	if err != nil {
		n.logger.Warnf("narrator: %s call failed: %v", tmpl.Name(), err)
		return "", CallError[T](err), false
	}
	return text, Result[T]{}, true
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// Drop the language tag line.
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func decodeJSON(text string, v interface{}) error {
	clean := stripFences(text)
	if start := strings.IndexByte(clean, '{'); start > 0 {
		clean = clean[start:]
	}
	if end := strings.LastIndexByte(clean, '}'); end >= 0 && end < len(clean)-1 {
		clean = clean[:end+1]
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}
