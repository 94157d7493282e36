package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zanzhit/voice_recorder/internal/config"
	"github.com/zanzhit/voice_recorder/internal/domain/errs"
)

// Client submits one audio artifact to the remote speech recognition
// service. Calls are bounded by a hard wall-clock deadline; exceeding it is
// a classified failure, never a retry.
type Client struct {
	endpoint    string
	apiKey      string
	language    string
	altLanguage string
	timeout     time.Duration
	httpClient  *http.Client
}

// profile pins the recognition parameters for a container/codec pair.
type profile struct {
	Encoding   string
	SampleRate int
	Model      string
}

var profiles = map[string]profile{
	".opus": {Encoding: "OGG_OPUS", SampleRate: 48000, Model: "latest_short"},
	".wav":  {Encoding: "LINEAR16", SampleRate: 16000, Model: "default"},
}

func New(cfg config.Speech) *Client {
	return &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		language:    cfg.Language,
		altLanguage: cfg.AltLanguage,
		timeout:     cfg.Timeout,
		httpClient:  &http.Client{},
	}
}

type recognizeRequest struct {
	Config recognizeConfig `json:"config"`
	Audio  recognizeAudio  `json:"audio"`
}

type recognizeConfig struct {
	Encoding                   string   `json:"encoding"`
	SampleRateHertz            int      `json:"sampleRateHertz"`
	LanguageCode               string   `json:"languageCode"`
	AlternativeLanguageCodes   []string `json:"alternativeLanguageCodes,omitempty"`
	EnableAutomaticPunctuation bool     `json:"enableAutomaticPunctuation"`
	Model                      string   `json:"model,omitempty"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Recognize returns the recognized text for the artifact at path, possibly
// empty. All result fragments are concatenated, never just the first one,
// so long recordings come back whole.
func (c *Client) Recognize(ctx context.Context, path string) (string, error) {
	const op = "speech.Recognize"

	if strings.TrimSpace(c.apiKey) == "" {
		return "", fmt.Errorf("%s: %w: api key is not configured", op, errs.ErrTranscriptionRemote)
	}

	prof, ok := profiles[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%s: %w: unsupported audio container %q", op, errs.ErrTranscriptionRemote, filepath.Ext(path))
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", op, errs.ErrTranscriptionRemote, err)
	}

	body, err := json.Marshal(recognizeRequest{
		Config: recognizeConfig{
			Encoding:                   prof.Encoding,
			SampleRateHertz:            prof.SampleRate,
			LanguageCode:               c.language,
			AlternativeLanguageCodes:   altLanguages(c.altLanguage),
			EnableAutomaticPunctuation: true,
			Model:                      prof.Model,
		},
		Audio: recognizeAudio{Content: base64.StdEncoding.EncodeToString(audio)},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s: %w: no response within %s", op, errs.ErrTranscriptionTimeout, c.timeout)
		}

		return "", fmt.Errorf("%s: %w: %s", op, errs.ErrTranscriptionRemote, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s: %w: no response within %s", op, errs.ErrTranscriptionTimeout, c.timeout)
		}

		return "", fmt.Errorf("%s: %w: %s", op, errs.ErrTranscriptionRemote, err)
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("%s: %w: malformed response", op, errs.ErrTranscriptionRemote)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("%s: %w: %s", op, errs.ErrTranscriptionRemote, parsed.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %w: unexpected status %s", op, errs.ErrTranscriptionRemote, resp.Status)
	}

	var fragments []string
	for _, result := range parsed.Results {
		if len(result.Alternatives) == 0 {
			continue
		}

		fragments = append(fragments, result.Alternatives[0].Transcript)
	}

	return strings.TrimSpace(strings.Join(fragments, " ")), nil
}

func altLanguages(alt string) []string {
	if alt == "" {
		return nil
	}

	return []string{alt}
}
