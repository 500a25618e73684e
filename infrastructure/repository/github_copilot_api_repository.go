package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/domain/entity"
	"github.com/ca-srg/copilot-exporter/domain/repository"
)

const (
	githubAPIVersion = "2022-11-28"
	githubMediaType  = "application/vnd.github+json"

	// maxErrorBodyBytes bounds how much of a failed response ends up in logs
	maxErrorBodyBytes = 64 << 10
	// maxUsageBodyBytes bounds the decoded usage payload (28 days of breakdowns)
	maxUsageBodyBytes = 32 << 20
)

// GitHubCopilotAPIRepository implements the repository.CopilotUsageRepository interface
type GitHubCopilotAPIRepository struct {
	httpClient   *http.Client
	baseURL      string
	organization string
}

// NewGitHubCopilotAPIRepository creates a new GitHubCopilotAPIRepository instance.
// The token is attached by an oauth2 transport using GitHub's "token" scheme.
func NewGitHubCopilotAPIRepository(baseURL, organization, token string, timeout time.Duration) repository.CopilotUsageRepository {
	return newGitHubCopilotAPIRepository(baseURL, organization, token, timeout, http.DefaultTransport)
}

func newGitHubCopilotAPIRepository(baseURL, organization, token string, timeout time.Duration, base http.RoundTripper) *GitHubCopilotAPIRepository {
	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "token",
	})

	baseURL = strings.TrimRight(baseURL, "/")
	return &GitHubCopilotAPIRepository{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: source,
				Base:   base,
			},
			CheckRedirect: sameHostRedirectPolicy(baseURL),
		},
		baseURL:      baseURL,
		organization: organization,
	}
}

// sameHostRedirectPolicy refuses redirects that leave the API host.
// oauth2.Transport sets Authorization on every hop, so the client's
// cross-host header stripping never applies.
func sameHostRedirectPolicy(baseURL string) func(*http.Request, []*http.Request) error {
	var host string
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Host
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if !strings.EqualFold(req.URL.Host, host) {
			return fmt.Errorf("refusing redirect to %s: host differs from %s", req.URL.Host, host)
		}
		return nil
	}
}

// API response structures

type copilotUsageResponse struct {
	Day                   string                  `json:"day"`
	TotalSuggestionsCount int64                   `json:"total_suggestions_count"`
	TotalAcceptancesCount int64                   `json:"total_acceptances_count"`
	TotalLinesSuggested   int64                   `json:"total_lines_suggested"`
	TotalLinesAccepted    int64                   `json:"total_lines_accepted"`
	TotalActiveUsers      int64                   `json:"total_active_users"`
	TotalChatAcceptances  int64                   `json:"total_chat_acceptances"`
	TotalChatTurns        int64                   `json:"total_chat_turns"`
	TotalActiveChatUsers  int64                   `json:"total_active_chat_users"`
	Breakdown             []copilotBreakdownEntry `json:"breakdown"`
}

type copilotBreakdownEntry struct {
	Language         string `json:"language"`
	Editor           string `json:"editor"`
	SuggestionsCount int64  `json:"suggestions_count"`
	AcceptancesCount int64  `json:"acceptances_count"`
	LinesSuggested   int64  `json:"lines_suggested"`
	LinesAccepted    int64  `json:"lines_accepted"`
	ActiveUsers      int64  `json:"active_users"`
}

// Organization returns the organization the repository is scoped to
func (r *GitHubCopilotAPIRepository) Organization() string {
	return r.organization
}

// GetDailyUsage retrieves the organization's Copilot usage summary
func (r *GitHubCopilotAPIRepository) GetDailyUsage(ctx context.Context) ([]entity.DailyUsageRecord, error) {
	path := fmt.Sprintf("/orgs/%s/copilot/usage", url.PathEscape(r.organization))

	resp, err := r.makeAPIRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxUsageBodyBytes))
	var result []copilotUsageResponse
	if err := dec.Decode(&result); err != nil {
		return nil, domain.ErrDecode("copilot usage response", err)
	}
	// The body must hold exactly one JSON value
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after top-level array")
		}
		return nil, domain.ErrDecode("copilot usage response", err)
	}

	return toDailyUsageRecords(result), nil
}

// makeAPIRequest performs an authenticated request and rejects non-2xx responses
func (r *GitHubCopilotAPIRepository) makeAPIRequest(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, nil)
	if err != nil {
		return nil, domain.ErrGitHubAPIWithCause("create request", err)
	}

	req.Header.Set("Accept", githubMediaType)
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", r.organization+"-copilot-metrics-exporter")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrGitHubAPIWithCause("execute request", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_ = resp.Body.Close()
		return nil, domain.ErrGitHubAPI(path, resp.StatusCode, string(body))
	}

	return resp, nil
}

// toDailyUsageRecords converts the payload, dropping elements without a day
// (a JSON null element decodes to the zero value)
func toDailyUsageRecords(items []copilotUsageResponse) []entity.DailyUsageRecord {
	if len(items) == 0 {
		return nil
	}

	records := make([]entity.DailyUsageRecord, 0, len(items))
	for _, item := range items {
		if item.Day == "" {
			continue
		}
		record := entity.DailyUsageRecord{
			Day:                   item.Day,
			TotalSuggestionsCount: item.TotalSuggestionsCount,
			TotalAcceptancesCount: item.TotalAcceptancesCount,
			TotalLinesSuggested:   item.TotalLinesSuggested,
			TotalLinesAccepted:    item.TotalLinesAccepted,
			TotalActiveUsers:      item.TotalActiveUsers,
			TotalChatAcceptances:  item.TotalChatAcceptances,
			TotalChatTurns:        item.TotalChatTurns,
			TotalActiveChatUsers:  item.TotalActiveChatUsers,
		}
		for _, b := range item.Breakdown {
			record.Breakdown = append(record.Breakdown, entity.BreakdownEntry{
				Language:         b.Language,
				Editor:           b.Editor,
				SuggestionsCount: b.SuggestionsCount,
				AcceptancesCount: b.AcceptancesCount,
				LinesSuggested:   b.LinesSuggested,
				LinesAccepted:    b.LinesAccepted,
				ActiveUsers:      b.ActiveUsers,
			})
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil
	}
	return records
}
