package types

// Cookie matches the Playwright storage-state cookie shape.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  float64 `json:"expires"` // -1 means session cookie
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
	SameSite string `json:"sameSite,omitempty"` // Strict|Lax|None
}

// LocalStorageEntry is one key/value pair within an origin's local storage.
type LocalStorageEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Origin groups local storage entries under one origin.
type Origin struct {
	Origin       string              `json:"origin"`
	LocalStorage []LocalStorageEntry `json:"localStorage"`
}

// SessionBlobPayload is the Playwright-compatible storage-state payload.
type SessionBlobPayload struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

// SessionBlob is a persisted browser session bound to a login credential.
type SessionBlob struct {
	CredentialID string             `json:"credential_id"`
	Service      string             `json:"service"`
	Payload      SessionBlobPayload `json:"payload"`
	UpdatedAt    int64              `json:"updated_at"`
	ExpiresAt    int64              `json:"expires_at"`
}
