package classifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// fakeGenerator scripts the remote model for tests and counts calls.
type fakeGenerator struct {
	calls     int
	responses []string
	errs      []error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", fmt.Errorf("unscripted call %d", i)
}

func newTestClassifier(gen TextGenerator) *Classifier {
	return New(gen, Options{
		MinTextLength: 5,
		MaxAttempts:   3,
		RetryDelay:    time.Millisecond,
		RetryBuffer:   time.Millisecond,
	}, zap.NewNop().Sugar())
}

func rateLimitErr() error {
	return genai.APIError{Code: 429, Message: "quota exceeded", Status: "RESOURCE_EXHAUSTED"}
}

func TestAnalyzeShortTextSkipsRemoteCall(t *testing.T) {
	// The threshold counts characters, not bytes; accented inputs sit
	// below it even when their UTF-8 encoding does not.
	for _, text := range []string{"oi", "nãoé", "áéíó"} {
		gen := &fakeGenerator{}
		c := newTestClassifier(gen)

		res := c.Analyze(context.Background(), text, "Elogio")

		assert.Equal(t, 0, gen.calls, "short text %q must not hit the model", text)
		assert.Equal(t, "Elogio", res.SuggestedType)
		assert.True(t, res.Matches)
		assert.False(t, res.HasPII)
		assert.Equal(t, ConfidenceLow, res.PIIConfidence)
	}
}

func TestAnalyzeThresholdCountsRunes(t *testing.T) {
	// Five characters is enough even when they span more than five bytes.
	gen := &fakeGenerator{responses: []string{
		`{"suggestedType": "Elogio", "reasoning": "ok", "hasPii": false}`,
	}}
	c := newTestClassifier(gen)

	res := c.Analyze(context.Background(), "ótimo", "Elogio")

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, ConfidenceHigh, res.PIIConfidence)
}

func TestAnalyzeSuccess(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		userType    string
		wantType    string
		wantMatches bool
		wantPII     bool
	}{
		{
			name:        "clean match",
			response:    `{"suggestedType": "Reclamação", "reasoning": "Relato de problema.", "hasPii": false, "piiAnalysis": "Nenhum dado pessoal encontrado"}`,
			userType:    "Reclamação",
			wantType:    "Reclamação",
			wantMatches: true,
			wantPII:     false,
		},
		{
			name:        "case-insensitive match",
			response:    `{"suggestedType": "denúncia", "reasoning": "ok", "hasPii": false}`,
			userType:    "Denúncia",
			wantType:    "denúncia",
			wantMatches: true,
			wantPII:     false,
		},
		{
			name:        "mismatch carries suggestion through",
			response:    `{"suggestedType": "Denúncia", "reasoning": "Relata irregularidade.", "hasPii": false}`,
			userType:    "Elogio",
			wantType:    "Denúncia",
			wantMatches: false,
			wantPII:     false,
		},
		{
			name:        "pii flagged",
			response:    `{"suggestedType": "Reclamação", "reasoning": "ok", "hasPii": true, "piiAnalysis": "Nome completo presente"}`,
			userType:    "Reclamação",
			wantType:    "Reclamação",
			wantMatches: true,
			wantPII:     true,
		},
		{
			name:        "code-fenced response",
			response:    "```json\n{\"suggestedType\": \"Sugestão\", \"reasoning\": \"ok\", \"hasPii\": false}\n```",
			userType:    "Sugestão",
			wantType:    "Sugestão",
			wantMatches: true,
			wantPII:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{responses: []string{tt.response}}
			c := newTestClassifier(gen)

			res := c.Analyze(context.Background(), "A rua está cheia de buracos há meses.", tt.userType)

			require.Equal(t, 1, gen.calls)
			assert.Equal(t, tt.wantType, res.SuggestedType)
			assert.Equal(t, tt.wantMatches, res.Matches)
			assert.Equal(t, tt.wantPII, res.HasPII)
			assert.Equal(t, ConfidenceHigh, res.PIIConfidence)
			assert.Equal(t, tt.userType, res.OriginalType)
		})
	}
}

func TestAnalyzeRateLimitExhaustionFailsClosed(t *testing.T) {
	gen := &fakeGenerator{errs: []error{rateLimitErr(), rateLimitErr(), rateLimitErr()}}
	c := newTestClassifier(gen)

	res := c.Analyze(context.Background(), "Servidor da administração cobrou propina.", "Denúncia")

	assert.Equal(t, 3, gen.calls, "should retry up to MaxAttempts")
	assert.Equal(t, "Denúncia", res.SuggestedType)
	assert.True(t, res.Matches)
	assert.True(t, res.HasPII, "exhaustion must fail closed")
	assert.Equal(t, ConfidenceFailed, res.PIIConfidence)
}

func TestAnalyzeRecoverAfterRateLimit(t *testing.T) {
	gen := &fakeGenerator{
		errs:      []error{rateLimitErr(), nil},
		responses: []string{"", `{"suggestedType": "Elogio", "reasoning": "ok", "hasPii": false}`},
	}
	c := newTestClassifier(gen)

	res := c.Analyze(context.Background(), "Atendimento excelente na unidade.", "Elogio")

	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, ConfidenceHigh, res.PIIConfidence)
	assert.False(t, res.HasPII)
}

func TestAnalyzeNonRetryableErrorNoRetry(t *testing.T) {
	gen := &fakeGenerator{errs: []error{fmt.Errorf("connection refused")}}
	c := newTestClassifier(gen)

	res := c.Analyze(context.Background(), "Texto longo o suficiente para análise.", "Informação")

	assert.Equal(t, 1, gen.calls, "non-rate-limit errors are not retried")
	assert.True(t, res.HasPII)
	assert.Equal(t, ConfidenceFailed, res.PIIConfidence)
}

func TestAnalyzeParseFailureFailsClosed(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"prose instead of JSON", "A manifestação parece ser uma reclamação."},
		{"missing suggestedType", `{"reasoning": "ok", "hasPii": false}`},
		{"missing hasPii", `{"suggestedType": "Elogio", "reasoning": "ok"}`},
		{"truncated JSON", `{"suggestedType": "Elogio", "hasPii":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{responses: []string{tt.response}}
			c := newTestClassifier(gen)

			res := c.Analyze(context.Background(), "Texto longo o suficiente para análise.", "Elogio")

			assert.Equal(t, 1, gen.calls, "parse failures are not retried")
			assert.True(t, res.HasPII)
			assert.Equal(t, ConfidenceFailed, res.PIIConfidence)
			assert.Equal(t, "Elogio", res.SuggestedType)
		})
	}
}

func TestAnalyzeContextCancelledDuringWait(t *testing.T) {
	gen := &fakeGenerator{errs: []error{rateLimitErr(), rateLimitErr(), rateLimitErr()}}
	c := New(gen, Options{
		MinTextLength: 5,
		MaxAttempts:   3,
		RetryDelay:    time.Hour, // would block forever without cancellation
	}, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Analyze(ctx, "Texto longo o suficiente para análise.", "Sugestão")

	assert.Equal(t, 1, gen.calls)
	assert.True(t, res.HasPII)
	assert.Equal(t, ConfidenceFailed, res.PIIConfidence)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFences(tt.in))
	}
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, IsRateLimit(genai.APIError{Code: 429}))
	assert.True(t, IsRateLimit(genai.APIError{Status: "RESOURCE_EXHAUSTED"}))
	assert.True(t, IsRateLimit(fmt.Errorf("http status 429 from upstream")))
	assert.False(t, IsRateLimit(fmt.Errorf("connection refused")))
	assert.False(t, IsRateLimit(nil))
}

func TestRetryHint(t *testing.T) {
	err := genai.APIError{
		Code: 429,
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "17s"},
		},
	}
	d, ok := RetryHint(err)
	require.True(t, ok)
	assert.Equal(t, 17*time.Second, d)

	_, ok = RetryHint(genai.APIError{Code: 429})
	assert.False(t, ok)

	_, ok = RetryHint(fmt.Errorf("plain error"))
	assert.False(t, ok)
}
