package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"

	"github.com/MrWong99/lexivox/pkg/types"
)

// accentLanguages maps the accent label of premade voices, which carry no
// language label, to a language tag.
var accentLanguages = map[string]string{
	"american":   "en-US",
	"british":    "en-GB",
	"australian": "en-AU",
	"irish":      "en-IE",
}

type voiceList struct {
	Voices []struct {
		ID       string            `json:"voice_id"`
		Name     string            `json:"name"`
		Category string            `json:"category"`
		Labels   map[string]string `json:"labels"`
	} `json:"voices"`
}

// ListVoices returns the voices the API key may use, premade and cloned.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	var list voiceList
	if err := p.getJSON(ctx, "/v1/voices", &list); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}

	profiles := make([]types.VoiceProfile, 0, len(list.Voices))
	for _, v := range list.Voices {
		meta := maps.Clone(v.Labels)
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		profiles = append(profiles, types.VoiceProfile{
			ID:       v.ID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Language: labelLanguage(v.Labels),
			Metadata: meta,
		})
	}
	return profiles, nil
}

// getJSON performs an authenticated GET on the REST API and decodes the body
// into v.
func (p *Provider) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.httpBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// labelLanguage prefers an explicit language label. An unknown accent still
// means an English voice.
func labelLanguage(labels map[string]string) string {
	if lang := labels["language"]; lang != "" {
		return lang
	}
	accent := strings.ToLower(labels["accent"])
	if accent == "" {
		return ""
	}
	if lang, ok := accentLanguages[accent]; ok {
		return lang
	}
	return "en"
}
