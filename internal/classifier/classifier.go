// Package classifier wraps the Gemini text-generation API to classify a
// citizen manifestation into one of the fixed categories and to judge
// whether the text carries personally identifying information.
//
// The classifier never returns an error: classification is an advisory
// signal, so every failure is absorbed into a deterministic fail-closed
// result (assume PII present) and the submission proceeds.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/participa-df/ouvidoria-server/internal/models"
	"go.uber.org/zap"
)

// PII confidence levels carried on a Result.
const (
	ConfidenceLow    = "low"    // short-circuited, no remote call
	ConfidenceHigh   = "high"   // remote model answered
	ConfidenceFailed = "failed" // remote call failed, fail-closed fallback
)

// Result is the outcome of one classification call. It lives only for the
// duration of a submission request and is never persisted.
type Result struct {
	OriginalType  string `json:"originalType"`
	SuggestedType string `json:"suggestedType"`
	Matches       bool   `json:"matches"`
	Reasoning     string `json:"reasoning"`
	HasPII        bool   `json:"hasPii"`
	PIIConfidence string `json:"piiConfidence"`
	PIIAnalysis   string `json:"piiAnalysis,omitempty"`
}

// TextGenerator is the single capability the classifier needs from the
// remote model. Tests substitute a fake; production uses GeminiGenerator.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options tune the retry behavior. Zero values fall back to the defaults
// the service has always run with.
type Options struct {
	MinTextLength int           // below this many characters, skip the remote call entirely
	MaxAttempts   int           // total attempts against the remote model
	RetryDelay    time.Duration // wait between attempts when no server hint exists
	RetryBuffer   time.Duration // safety margin added to a server-provided hint
}

func (o Options) withDefaults() Options {
	if o.MinTextLength <= 0 {
		o.MinTextLength = 5
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 10 * time.Second
	}
	if o.RetryBuffer <= 0 {
		o.RetryBuffer = time.Second
	}
	return o
}

// Classifier turns free text into a Result.
type Classifier struct {
	gen    TextGenerator
	opts   Options
	logger *zap.SugaredLogger
}

// New creates a classifier around the given generator.
func New(gen TextGenerator, opts Options, logger *zap.SugaredLogger) *Classifier {
	return &Classifier{gen: gen, opts: opts.withDefaults(), logger: logger}
}

// modelPayload is the strict JSON shape the prompt demands from the model.
// HasPII is a pointer so an absent key is distinguishable from false.
type modelPayload struct {
	SuggestedType string `json:"suggestedType"`
	Reasoning     string `json:"reasoning"`
	HasPII        *bool  `json:"hasPii"`
	PIIAnalysis   string `json:"piiAnalysis"`
}

// Analyze classifies text against the user's declared category. It never
// fails: rate limits are retried up to MaxAttempts, everything else lands
// on the fail-closed fallback.
func (c *Classifier) Analyze(ctx context.Context, text, userType string) Result {
	if utf8.RuneCountInString(text) < c.opts.MinTextLength {
		return Result{
			OriginalType:  userType,
			SuggestedType: userType,
			Matches:       true,
			Reasoning:     "Texto muito curto.",
			HasPII:        false,
			PIIConfidence: ConfidenceLow,
		}
	}

	prompt := buildPrompt(text)

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		c.logger.Debugw("Classifier attempt", "attempt", attempt, "max", c.opts.MaxAttempts)

		raw, err := c.gen.Generate(ctx, prompt)
		if err == nil {
			res, perr := c.parse(raw, userType)
			if perr == nil {
				c.logger.Infow("Classification complete",
					"suggested", res.SuggestedType,
					"matches", res.Matches,
					"has_pii", res.HasPII,
				)
				return res
			}
			// Malformed model output is not retryable; fail closed.
			c.logger.Warnw("Classifier response unparseable", "error", perr)
			return c.fallback(userType, "Resposta da IA inválida.")
		}

		if !IsRateLimit(err) {
			c.logger.Warnw("Classifier call failed", "attempt", attempt, "error", err)
			return c.fallback(userType, "Erro na análise IA.")
		}

		if attempt == c.opts.MaxAttempts {
			break
		}

		wait := c.opts.RetryDelay
		if hint, ok := RetryHint(err); ok {
			wait = hint + c.opts.RetryBuffer
		}
		c.logger.Infow("Classifier rate limited, waiting", "attempt", attempt, "wait", wait)

		select {
		case <-ctx.Done():
			return c.fallback(userType, "Análise cancelada.")
		case <-time.After(wait):
		}
	}

	c.logger.Errorw("Classifier retries exhausted", "attempts", c.opts.MaxAttempts)
	return c.fallback(userType, "Erro na análise IA.")
}

// fallback assumes PII is present so nothing ambiguous ever reaches the
// public feed.
func (c *Classifier) fallback(userType, reasoning string) Result {
	return Result{
		OriginalType:  userType,
		SuggestedType: userType,
		Matches:       true,
		Reasoning:     reasoning,
		HasPII:        true,
		PIIConfidence: ConfidenceFailed,
	}
}

// parse validates the model response. The model is not contractually
// guaranteed to omit code fences, so they are stripped first.
func (c *Classifier) parse(raw, userType string) (Result, error) {
	jsonStr := stripFences(raw)

	var payload modelPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return Result{}, fmt.Errorf("decode model response: %w", err)
	}
	if payload.SuggestedType == "" {
		return Result{}, fmt.Errorf("model response missing suggestedType")
	}
	if payload.HasPII == nil {
		return Result{}, fmt.Errorf("model response missing hasPii")
	}

	return Result{
		OriginalType:  userType,
		SuggestedType: payload.SuggestedType,
		Matches:       Matches(payload.SuggestedType, userType),
		Reasoning:     payload.Reasoning,
		HasPII:        *payload.HasPII,
		PIIConfidence: ConfidenceHigh,
		PIIAnalysis:   payload.PIIAnalysis,
	}, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// buildPrompt renders the IZA classification prompt for one report.
func buildPrompt(text string) string {
	return fmt.Sprintf(`Você é a IZA, a inteligência artificial da Ouvidoria do DF.
Sua missão é classificar as manifestações e proteger a privacidade dos cidadãos.

Analise o seguinte relato:
"%s"

Tarefas:
1. Classifique em: %s.
2. Verifique se há DADOS PESSOAIS identificáveis no texto (ex: Nome completo, CPF, Telefone, Email, Endereço residencial preciso, Placa de carro vinculada a pessoa).
   - Menções a figuras públicas (Governador, Administrador) ou lugares genéricos NÃO contam como dado pessoal.
   - Autoidentificação ("Eu sou João") CONTA como dado pessoal.

Responda APENAS um JSON:
{
    "suggestedType": "Tipo",
    "reasoning": "Explicação breve.",
    "hasPii": true/false,
    "piiAnalysis": "O que foi encontrado (sem repetir o dado) ou 'Nenhum dado pessoal encontrado'."
}`, text, strings.Join(models.Categories(), ", "))
}
