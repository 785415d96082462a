package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/Movenanter/Rescue/internal/session"
)

// DefaultRemoteTimeout bounds one remote classification attempt. On timeout
// the tiered classifier falls through to the rule strategy; losing a beat of
// responsiveness here is acceptable, blocking transcript handling is not.
const DefaultRemoteTimeout = 2500 * time.Millisecond

const systemPrompt = `You classify one utterance spoken by a CPR rescuer into exactly one intent.
The rescuer is guided through phases: welcome, safety_check, responsiveness_check, compressions, settings.
Pick from this closed vocabulary only:
start, confirm_safety, hazard_present, emergency_called, responsive_yes, responsive_no, check_hands, change_bpm, open_settings, back_to_compressions, unknown.
Context matters: inside responsiveness_check a plain "no" means responsive_no and a plain "yes" means responsive_yes.
If the utterance does not clearly match an intent, answer unknown.`

// intentSchema is the strict structured-response contract for the remote
// classifier. Anything outside it is treated as a failed attempt.
var intentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"intent": map[string]any{
			"type": "string",
			"enum": []string{
				"start", "confirm_safety", "hazard_present", "emergency_called",
				"responsive_yes", "responsive_no", "check_hands", "change_bpm",
				"open_settings", "back_to_compressions", "unknown",
			},
		},
		"direction": map[string]any{
			"type": "string",
			"enum": []string{"up", "down", "none"},
		},
	},
	"required":             []string{"intent", "direction"},
	"additionalProperties": false,
}

type remoteResult struct {
	Intent    string `json:"intent"`
	Direction string `json:"direction"`
}

// Remote classifies against a chat-completions endpoint with a JSON-schema
// response format. All failures are swallowed: the caller falls back to the
// rule strategy and the rescuer never hears about a classification error.
type Remote struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewRemote builds the remote strategy. Returns nil when no API key is
// configured, which simply drops the strategy from the tier.
func NewRemote(apiKey, baseURL, model string, timeout time.Duration) *Remote {
	if apiKey == "" || model == "" {
		return nil
	}
	// No retries: a second attempt would arrive too late to matter and
	// the rule strategy is always there to catch the fall-through.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Remote{client: openai.NewClient(opts...), model: model, timeout: timeout}
}

func (r *Remote) Classify(ctx context.Context, utterance string, phase session.Phase) (session.Intent, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("phase: %s\nutterance: %s", phase, utterance)),
		},
		MaxTokens:   openai.Int(64),
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "cpr_intent",
					Schema: intentSchema,
					Strict: param.NewOpt(true),
				},
			},
		},
	}
	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Printf("remote classify failed: %v", err)
		return session.Unknown(), false
	}
	if len(resp.Choices) == 0 {
		return session.Unknown(), false
	}
	var res remoteResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &res); err != nil {
		log.Printf("remote classify: bad response shape: %v", err)
		return session.Unknown(), false
	}
	kind, ok := session.ParseIntentKind(strings.TrimSpace(res.Intent))
	if !ok || kind == session.IntentUnknown {
		// Out-of-vocabulary or unknown: let the rules have a go.
		return session.Unknown(), false
	}
	in := session.Intent{Kind: kind}
	if kind == session.IntentChangeBpm && (res.Direction == "up" || res.Direction == "down") {
		in.Slots = map[string]string{"direction": res.Direction}
	}
	return in, true
}
