// Package resolver renders platform credentials into test commands and
// substitutes them into agent environment variable templates.
//
// Every function here is pure: nothing is persisted and no network I/O happens.
package resolver

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/router-for-me/APIConsole/internal/envvars"
	"github.com/router-for-me/APIConsole/internal/models"
)

// Placeholder tokens recognised in env var templates. Matching is literal and case-sensitive.
const (
	TokenBaseURL = "$BASE_URL"
	TokenAPIKey  = "$API_KEY"
	TokenModel   = "$MODEL"
)

// ChatCompletionsPath is appended to the platform base URL.
const ChatCompletionsPath = "/chat/completions"

// Greeting is the fixed prompt used by generated commands and test calls.
const Greeting = "Hello, please introduce yourself."

// Target is the credential/model triple a template is resolved against.
type Target struct {
	BaseURL string
	APIKey  string
	Model   string
}

// TargetFor builds a Target from a stored platform and the selected model.
func TargetFor(p *models.Platform, model string) Target {
	if p == nil {
		return Target{Model: model}
	}
	return Target{BaseURL: p.APIBaseURL, APIKey: p.APIKey, Model: model}
}

// placeholder maps one token to the Target field it expands to.
type placeholder struct {
	token string
	value func(Target) string
}

var placeholders = []placeholder{
	{token: TokenBaseURL, value: func(t Target) string { return t.BaseURL }},
	{token: TokenAPIKey, value: func(t Target) string { return t.APIKey }},
	{token: TokenModel, value: func(t Target) string { return t.Model }},
}

// replacerFor builds a single-pass replacer. strings.Replacer scans left to
// right and never rescans its own output, so substituted text cannot expand again.
func replacerFor(t Target) *strings.Replacer {
	pairs := make([]string, 0, 2*len(placeholders))
	for _, p := range placeholders {
		pairs = append(pairs, p.token, p.value(t))
	}
	return strings.NewReplacer(pairs...)
}

// Substitute replaces every placeholder occurrence in template.
func Substitute(template string, t Target) string {
	return replacerFor(t).Replace(template)
}

// ResolveVars returns a new map with placeholders substituted in every string
// value. Non-string values are copied unchanged and vars is not modified.
func ResolveVars(t Target, vars envvars.Map) envvars.Map {
	out := make(envvars.Map, len(vars))
	r := replacerFor(t)
	for key, value := range vars {
		if s, ok := value.Str(); ok {
			out[key] = envvars.String(r.Replace(s))
			continue
		}
		out[key] = value
	}
	return out
}

// Endpoint returns the chat completions URL for baseURL; trailing slashes are dropped
// so the path separator appears exactly once.
func Endpoint(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + ChatCompletionsPath
}

// ChatMessage is one entry of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the outbound chat completion body.
type ChatRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// GreetingRequest returns the fixed single-message request for model.
func GreetingRequest(model string) ChatRequest {
	return ChatRequest{
		Model:    model,
		Messages: []ChatMessage{{Role: "user", Content: Greeting}},
	}
}

// Command renders a copy-pasteable curl invocation for t.
func Command(t Target) string {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	enc.SetIndent("  ", "  ")
	// Encoding a struct of strings cannot fail.
	_ = enc.Encode(GreetingRequest(t.Model))
	payload := strings.TrimRight(body.String(), "\n")

	var b strings.Builder
	b.WriteString(`curl -X POST "` + shellDoubleQuoted(Endpoint(t.BaseURL)) + "\" \\\n")
	b.WriteString("  -H \"Content-Type: application/json\" \\\n")
	b.WriteString(`  -H "Authorization: Bearer ` + shellDoubleQuoted(t.APIKey) + "\" \\\n")
	b.WriteString("  -d '" + shellSingleQuoted(payload) + "'")
	return b.String()
}

// shellDoubleQuoted escapes characters that keep their meaning inside double quotes.
func shellDoubleQuoted(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`").Replace(s)
}

// shellSingleQuoted closes, escapes and reopens the quote around embedded single quotes.
func shellSingleQuoted(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}
