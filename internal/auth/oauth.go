package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIURL = "https://api.github.com"

// GitHubUser is the part of GitHub's GET /user response we keep.
type GitHubUser struct {
	ID        int64  `json:"id"`    // stable numeric ID, the account link key
	Login     string `json:"login"` // may change; used only as the initial username
	Email     string `json:"email"` // empty when the user hides it
	AvatarURL string `json:"avatar_url"`
}

// GitHubProvider runs the OAuth 2.0 authorization-code flow against GitHub.
// The code-for-token exchange happens server to server with the client
// secret; the browser only ever sees the short-lived code.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// NewGitHubProvider requests "read:user" and "user:email". callbackURL must
// match the OAuth app's registered callback exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiURL: githubAPIURL,
	}
}

// newGitHubProviderWithURLs points the token endpoint and API at a test
// server.
func newGitHubProviderWithURLs(tokenURL, apiURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:  apiURL + "/login/oauth/authorize",
				TokenURL: tokenURL,
			},
		},
		apiURL: apiURL,
	}
}

// AuthURL is where the login handler redirects the browser. state is echoed
// back on the callback and must match the value stored in the state cookie.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for an access token and fetches the
// GitHub profile with it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <token>" itself.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, nil
}
