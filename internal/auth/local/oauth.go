package local

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// OAuthConfigs builds client configs for the providers that have a client id. The redirect URL is
// set per sign-in.
func OAuthConfigs(googleID, googleSecret, githubID, githubSecret string) map[string]*oauth2.Config {
	out := make(map[string]*oauth2.Config)
	if googleID != "" {
		out["google"] = &oauth2.Config{
			ClientID:     googleID,
			ClientSecret: googleSecret,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		}
	}
	if githubID != "" {
		out["github"] = &oauth2.Config{
			ClientID:     githubID,
			ClientSecret: githubSecret,
			Endpoint:     endpoints.GitHub,
			Scopes:       []string{"read:user", "user:email"},
		}
	}
	return out
}
