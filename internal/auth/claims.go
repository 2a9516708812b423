package auth

// Claims is the profile part of an ID token
type Claims struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	ProviderID    string `json:"providerId,omitempty"`
}

// ClaimsFromMap summarizes a raw claims map such as session.Snapshot.Claims
func ClaimsFromMap(claims map[string]any) Claims {
	c := Claims{
		UID:           getStringClaim(claims, "user_id"),
		Email:         getStringClaim(claims, "email"),
		EmailVerified: getBoolClaim(claims, "email_verified"),
		Name:          getStringClaim(claims, "name"),
		Picture:       getStringClaim(claims, "picture"),
	}
	if c.UID == "" {
		c.UID = getStringClaim(claims, "sub")
	}
	if fb, ok := claims["firebase"].(map[string]any); ok {
		c.ProviderID = getStringClaim(fb, "sign_in_provider")
	}
	return c
}

// getStringClaim safely extracts a string claim from the claims map
func getStringClaim(claims map[string]any, key string) string {
	val, ok := claims[key]
	if !ok {
		return ""
	}
	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}

// getBoolClaim safely extracts a boolean claim from the claims map
func getBoolClaim(claims map[string]any, key string) bool {
	val, ok := claims[key]
	if !ok {
		return false
	}
	b, ok := val.(bool)
	if !ok {
		return false
	}
	return b
}
