package bot

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/onnwee/chat-relay/config"
)

const ttsOutputFormat = "audio-16khz-32kbitrate-mono-mp3"

// SpeechClient synthesizes speech through the Azure cognitive TTS REST
// endpoint. Audio files are content-addressed by an MD5 of the input text so
// repeated requests for the same phrase reuse the cached mp3.
type SpeechClient struct {
	key       string
	endpoint  string
	assetsDir string
	http      *http.Client
}

func NewSpeechClient(cfg *config.Config) *SpeechClient {
	return &SpeechClient{
		key:       cfg.AzureTTSKey,
		endpoint:  fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.AzureTTSRegion),
		assetsDir: cfg.AssetsDir,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// WithEndpoint overrides the REST endpoint. Test hook.
func (s *SpeechClient) WithEndpoint(endpoint string) *SpeechClient {
	s.endpoint = endpoint
	return s
}

// Synthesize returns the file name of the mp3 for text, synthesizing and
// caching it under the assets directory on first use. The name (not a full
// path) is what goes on the wire; clients fetch it from static assets.
func (s *SpeechClient) Synthesize(ctx context.Context, text string) (string, error) {
	name := fmt.Sprintf("%X.mp3", md5.Sum([]byte(text)))
	path := filepath.Join(s.assetsDir, name)
	if _, err := os.Stat(path); err == nil {
		return name, nil
	}

	audio, err := s.fetch(ctx, text)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.assetsDir, 0o755); err != nil {
		return "", fmt.Errorf("create assets dir: %w", err)
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return name, nil
}

func (s *SpeechClient) fetch(ctx context.Context, text string) ([]byte, error) {
	body := ssmlDocument(text)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", ttsOutputFormat)
	req.Header.Set("User-Agent", "chat-relay")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts request: status %d: %s", resp.StatusCode, snippet)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts response: empty audio")
	}
	return audio, nil
}

// ssmlDocument wraps text in the synthesis request markup: the Xiaoxiao
// voice, cheerful style, rate slowed 20%.
func ssmlDocument(text string) string {
	return `<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xmlns:mstts='https://www.w3.org/2001/mstts' xml:lang='zh-CN'>` +
		`<voice name='zh-CN-XiaoxiaoNeural'>` +
		`<mstts:express-as style='cheerful'>` +
		`<prosody rate='-20%' pitch='medium'>` + xmlEscape(text) + `</prosody>` +
		`</mstts:express-as>` +
		`</voice>` +
		`</speak>`
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
